package mcertmemstore_test

import (
	"testing"

	"github.com/cardano-scaling/mithril/mcertstore"
	"github.com/cardano-scaling/mithril/mcertstore/mcertmemstore"
	"github.com/cardano-scaling/mithril/mcertstore/mcertstoretest"
)

func TestOpenMessageStoreCompliance(t *testing.T) {
	t.Parallel()

	mcertstoretest.TestOpenMessageStoreCompliance(t, func(func(func())) (mcertstore.OpenMessageStore, error) {
		return mcertmemstore.NewStore(), nil
	})
}

func TestCertificateStoreCompliance(t *testing.T) {
	t.Parallel()

	mcertstoretest.TestCertificateStoreCompliance(t, func(func(func())) (mcertstore.CertificateStore, error) {
		return mcertmemstore.NewStore(), nil
	})
}
