package testsupport

import (
	"context"
	"testing"

	"slidecast/internal/config"
	"slidecast/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewPresentation creates a presentation row for tests using the provided store.
func NewPresentation(t testing.TB, st *store.Store, title, fingerprint string) *store.Presentation {
	t.Helper()

	pres, err := st.NewPresentation(context.Background(), title, title+".dsh", fingerprint)
	if err != nil {
		t.Fatalf("store.NewPresentation: %v", err)
	}
	return pres
}
