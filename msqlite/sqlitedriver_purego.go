//go:build purego || !cgo

package msqlite

import (
	"errors"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

const (
	sqliteDriverType = "sqlite"
	sqliteBuildType  = "purego"
)

func isUniqueConstraintError(e error) bool {
	var sErr *sqlite.Error
	if !errors.As(e, &sErr) {
		return false
	}

	// The mattn/go-sqlite3 library separates the plain and extended error codes,
	// but the pure Go version only exposes the extended code, under the "Code()" function.
	return sErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
		sErr.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
}
