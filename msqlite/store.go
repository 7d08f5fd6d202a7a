// Package msqlite provides the SQLite-backed certification store,
// satisfying both halves of [mcertstore.Store].
//
// Use the build tag "purego" to force the non-cgo driver,
// which is otherwise selected automatically when cgo is unavailable.
package msqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/trace"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcertstore"
	"github.com/cardano-scaling/mithril/mcrypto"
)

// Store is a single type satisfying all the [mcertstore] interfaces.
type Store struct {
	// The string "purego" or "cgo" depending on build tags.
	BuildType string

	// Due to transaction locking behaviors of sqlite
	// (see: https://www.sqlite.org/lang_transaction.html),
	// and the way they interact with the Go SQL drivers,
	// it is better to maintain two separate connection pools.
	ro, rw *sql.DB

	reg *mcrypto.Registry
}

func NewOnDiskStore(
	ctx context.Context,
	dbPath string,
	reg *mcrypto.Registry,
) (*Store, error) {
	dbPath = filepath.Clean(dbPath)
	if _, err := os.Stat(dbPath); err != nil {
		// Create a file for the database;
		// if no file exists, then our startup pragma commands fail.
		if os.IsNotExist(err) {
			// The file did not exist so we need to create it.
			// We don't use os.Create since that will truncate an existing file.
			f, err := os.OpenFile(dbPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
			if err != nil {
				return nil, fmt.Errorf("failed to create empty database file: %w", err)
			}
			if err := f.Close(); err != nil {
				return nil, fmt.Errorf("failed to close new empty database file: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to stat path %q: %w", dbPath, err)
		}
	}

	// In contrast to the in-memory store,
	// we only have to mark this connection mode as read-write.
	// In combination with the SetMaxOpenConns(1) call,
	// this allows only a single writer at a time;
	// instead of other writers getting an ephemeral "table is locked"
	// or "database is locked" error, they will simply block
	// while contending for the single available connection.
	uri := "file:" + dbPath + "?mode=rw"

	// The driver type comes from the sqlitedriver_*.go file
	// chosen based on build tags.
	rw, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-write database: %w", err)
	}

	rw.SetMaxOpenConns(1)

	// Unlike other pragmas, this is persistent,
	// and it is only relevant to on-disk databases.
	if _, err := rw.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return nil, fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}

	if err := pragmasRW(ctx, rw); err != nil {
		return nil, err
	}

	if err := migrate(ctx, rw); err != nil {
		return nil, err
	}

	// Change mode=rw to mode=ro (since we know that was the final query parameter).
	uri = uri[:len(uri)-1] + "o"
	ro, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-only database: %w", err)
	}
	if err := pragmasRO(ctx, ro); err != nil {
		return nil, err
	}

	return &Store{
		BuildType: sqliteBuildType,

		rw: rw,
		ro: ro,

		reg: reg,
	}, nil
}

var inMemNameCounter uint32

func NewInMemStore(ctx context.Context, reg *mcrypto.Registry) (*Store, error) {
	dbName := fmt.Sprintf("db%0000d", atomic.AddUint32(&inMemNameCounter, 1))
	uri := "file:" + dbName +
		// Give the "file" a unique name so that multiple connections within one process
		// can use the same in-memory database.
		// Standard query parameter: https://www.sqlite.org/uri.html#recognized_query_parameters
		"?mode=memory" +
		// The cache can only be shared or private.
		// A private cache means every connection would see a unique database,
		// so this must be shared.
		"&cache=shared" +
		// Both SQLite wrappers support _txlock.
		// Immediate effectively takes a write lock on the database
		// at the beginning of every transaction.
		// https://www.sqlite.org/lang_transaction.html#deferred_immediate_and_exclusive_transactions
		"&_txlock=immediate"

	// The driver type comes from the sqlitedriver_*.go file
	// chosen based on build tags.
	rw, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-write database: %w", err)
	}

	// Without limiting it to one open connection,
	// we would get frequent "table is locked" errors.
	// These errors do not automatically resolve with the busy timeout handler,
	// so only allow one active write connection to the database at a time.
	rw.SetMaxOpenConns(1)

	// We don't set journal mode to WAL with the in-memory store,
	// like we do at this point in the on-disk store.

	if err := pragmasRW(ctx, rw); err != nil {
		return nil, err
	}

	if err := migrate(ctx, rw); err != nil {
		return nil, err
	}

	// It would be nice if there was a way to mark this connection as read-only,
	// but that does not appear possible with the drivers available
	// (you have to connect to an on-disk database for that).
	// We use an identical connection URI except for removing the txlock directive.
	var ok bool
	uri, ok = strings.CutSuffix(uri, "&_txlock=immediate")
	if !ok {
		panic(fmt.Errorf("BUG: failed to cut _txlock suffix from uri %q", uri))
	}
	ro, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-only database: %w", err)
	}
	if err := pragmasRO(ctx, ro); err != nil {
		return nil, err
	}

	return &Store{
		BuildType: sqliteBuildType,

		rw: rw,
		ro: ro,

		reg: reg,
	}, nil
}

func (s *Store) Close() error {
	errRO := s.ro.Close()
	if errRO != nil {
		errRO = fmt.Errorf("error closing read-only database: %w", errRO)
	}
	errRW := s.rw.Close()
	if errRW != nil {
		errRW = fmt.Errorf("error closing read-write database: %w", errRW)
	}

	return errors.Join(errRO, errRW)
}

func (s *Store) CreateOpenMessage(ctx context.Context, msg mcert.OpenMessage) error {
	defer trace.StartRegion(ctx, "CreateOpenMessage").End()

	pm, err := marshalProtocolMessage(msg.ProtocolMessage)
	if err != nil {
		return err
	}

	_, err = s.rw.ExecContext(
		ctx,
		`INSERT INTO open_messages(
  entity_key, uuid, kind, entity_epoch, entity_block_number,
  epoch, protocol_message, created_at, status, certificate_hash
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.SignedEntityType.Key(),
		msg.ID.String(),
		msg.SignedEntityType.Kind,
		msg.SignedEntityType.Epoch,
		msg.SignedEntityType.BlockNumber,
		msg.Epoch,
		pm,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		msg.Status,
		msg.CertificateHash,
	)
	if err == nil {
		return nil
	}
	if !isUniqueConstraintError(err) {
		return fmt.Errorf("failed to insert open message: %w", err)
	}

	existing, lookupErr := s.GetOpenMessage(ctx, msg.SignedEntityType)
	if lookupErr != nil {
		return fmt.Errorf("failed to load conflicting open message: %w", lookupErr)
	}
	return mcertstore.OpenMessageExistsError{Existing: existing}
}

func (s *Store) GetOpenMessage(
	ctx context.Context, entity mcert.SignedEntityType,
) (mcert.OpenMessage, error) {
	defer trace.StartRegion(ctx, "GetOpenMessage").End()

	var (
		rowID     int64
		rawUUID   string
		pm        []byte
		createdAt string
		msg       mcert.OpenMessage
	)
	if err := s.ro.QueryRowContext(
		ctx,
		`SELECT id, uuid, epoch, protocol_message, created_at, status, certificate_hash
FROM open_messages WHERE entity_key = ?`,
		entity.Key(),
	).Scan(
		&rowID, &rawUUID, &msg.Epoch, &pm, &createdAt, &msg.Status, &msg.CertificateHash,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mcert.OpenMessage{}, mcertstore.ErrOpenMessageNotFound
		}
		return mcert.OpenMessage{}, fmt.Errorf("failed to select open message: %w", err)
	}

	msg.SignedEntityType = entity

	var err error
	if msg.ID, err = uuid.Parse(rawUUID); err != nil {
		return mcert.OpenMessage{}, fmt.Errorf("failed to parse open message uuid: %w", err)
	}
	if msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return mcert.OpenMessage{}, fmt.Errorf("failed to parse open message creation time: %w", err)
	}
	if msg.ProtocolMessage, err = unmarshalProtocolMessage(pm); err != nil {
		return mcert.OpenMessage{}, err
	}

	if msg.SingleSignatures, err = s.selectSignatures(ctx, rowID); err != nil {
		return mcert.OpenMessage{}, err
	}
	return msg, nil
}

func (s *Store) selectSignatures(ctx context.Context, openMessageID int64) ([]mcert.SingleSignature, error) {
	rows, err := s.ro.QueryContext(
		ctx,
		`SELECT party_id, signature, won_indexes
FROM single_signatures WHERE open_message_id = ? ORDER BY id ASC`,
		openMessageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select single signatures: %w", err)
	}
	defer rows.Close()

	var sigs []mcert.SingleSignature
	for rows.Next() {
		var (
			sig        mcert.SingleSignature
			wonIndexes []byte
		)
		if err := rows.Scan(&sig.PartyID, &sig.Signature, &wonIndexes); err != nil {
			return nil, fmt.Errorf("failed to scan single signature: %w", err)
		}
		if sig.WonIndexes, err = unmarshalWonIndexes(wonIndexes); err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failure iterating single signatures: %w", err)
	}
	return sigs, nil
}

func (s *Store) AppendSignature(
	ctx context.Context, entity mcert.SignedEntityType, sig mcert.SingleSignature,
) error {
	defer trace.StartRegion(ctx, "AppendSignature").End()

	wonIndexes, err := marshalWonIndexes(sig.WonIndexes)
	if err != nil {
		return err
	}

	tx, err := s.rw.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	if err := tx.QueryRowContext(
		ctx, `SELECT id FROM open_messages WHERE entity_key = ?`, entity.Key(),
	).Scan(&rowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mcertstore.ErrOpenMessageNotFound
		}
		return fmt.Errorf("failed to select open message: %w", err)
	}

	// OR IGNORE backs the idempotent duplicate-party registration:
	// the first signature from a party wins.
	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO single_signatures(
  open_message_id, party_id, signature, won_indexes
) VALUES (?, ?, ?, ?)`,
		rowID, sig.PartyID, sig.Signature, wonIndexes,
	); err != nil {
		return fmt.Errorf("failed to insert single signature: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit single signature: %w", err)
	}
	return nil
}

func (s *Store) SetOpenMessageStatus(
	ctx context.Context,
	entity mcert.SignedEntityType,
	status mcert.OpenMessageStatus,
	certificateHash string,
) error {
	defer trace.StartRegion(ctx, "SetOpenMessageStatus").End()

	res, err := s.rw.ExecContext(
		ctx,
		`UPDATE open_messages SET status = ?, certificate_hash = ? WHERE entity_key = ?`,
		status, certificateHash, entity.Key(),
	)
	if err != nil {
		return fmt.Errorf("failed to update open message status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected row count: %w", err)
	}
	if n == 0 {
		return mcertstore.ErrOpenMessageNotFound
	}
	return nil
}

func (s *Store) ExpireOpenMessagesBeforeEpoch(
	ctx context.Context, epoch mcert.Epoch,
) (int, error) {
	defer trace.StartRegion(ctx, "ExpireOpenMessagesBeforeEpoch").End()

	res, err := s.rw.ExecContext(
		ctx,
		`UPDATE open_messages SET status = ? WHERE epoch < ? AND status = ?`,
		mcert.StatusExpired, epoch, mcert.StatusOpen,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire open messages: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected row count: %w", err)
	}
	return int(n), nil
}

func (s *Store) SaveCertificate(ctx context.Context, cert mcert.Certificate) error {
	defer trace.StartRegion(ctx, "SaveCertificate").End()

	body, err := s.marshalCertificate(cert)
	if err != nil {
		return err
	}

	if _, err := s.rw.ExecContext(
		ctx,
		`INSERT INTO certificates(hash, epoch, body) VALUES (?, ?, ?)`,
		cert.Hash, cert.Epoch, body,
	); err != nil {
		if isUniqueConstraintError(err) {
			return mcertstore.CertificateExistsError{Hash: cert.Hash}
		}
		return fmt.Errorf("failed to insert certificate: %w", err)
	}
	return nil
}

func (s *Store) GetCertificate(ctx context.Context, hash string) (mcert.Certificate, error) {
	defer trace.StartRegion(ctx, "GetCertificate").End()

	var body []byte
	if err := s.ro.QueryRowContext(
		ctx, `SELECT body FROM certificates WHERE hash = ?`, hash,
	).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mcert.Certificate{}, mcertstore.ErrCertificateNotFound
		}
		return mcert.Certificate{}, fmt.Errorf("failed to select certificate: %w", err)
	}

	return s.unmarshalCertificate(body)
}

func (s *Store) GetLatestCertificates(ctx context.Context, n int) ([]mcert.Certificate, error) {
	defer trace.StartRegion(ctx, "GetLatestCertificates").End()

	rows, err := s.ro.QueryContext(
		ctx, `SELECT body FROM certificates ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select latest certificates: %w", err)
	}
	defer rows.Close()

	var certs []mcert.Certificate
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		cert, err := s.unmarshalCertificate(body)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failure iterating certificates: %w", err)
	}
	return certs, nil
}

func (s *Store) GetLatestCertificateAtEpoch(
	ctx context.Context, epoch mcert.Epoch,
) (mcert.Certificate, error) {
	defer trace.StartRegion(ctx, "GetLatestCertificateAtEpoch").End()

	var body []byte
	if err := s.ro.QueryRowContext(
		ctx,
		`SELECT body FROM certificates WHERE epoch <= ? ORDER BY id DESC LIMIT 1`,
		epoch,
	).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mcert.Certificate{}, mcertstore.ErrCertificateNotFound
		}
		return mcert.Certificate{}, fmt.Errorf("failed to select certificate: %w", err)
	}

	return s.unmarshalCertificate(body)
}

func pragmasRW(ctx context.Context, db *sql.DB) error {
	defer trace.StartRegion(ctx, "pragmasRW").End()

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("failed to set foreign keys on: %w", err)
	}

	// https://www.sqlite.org/lang_analyze.html#periodically_run_pragma_optimize_
	// "Applications that use long-lived database connections should run `PRAGMA optimize=0x10002;`
	// when the connection is first opened,
	// and then also run `PRAGMA optimize;` periodically,
	// perhaps once per day, or more if the database is evolving rapidly."
	if _, err := db.ExecContext(ctx, `PRAGMA optimize(0x10002);`); err != nil {
		return fmt.Errorf("failed to run startup PRAGMA optimize: %w", err)
	}

	return nil
}

func pragmasRO(ctx context.Context, db *sql.DB) error {
	defer trace.StartRegion(ctx, "pragmasRO").End()

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("failed to set foreign keys on: %w", err)
	}

	// Skip PRAGMA optimize for the read-only pragmas.

	return nil
}
