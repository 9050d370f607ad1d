package testsupport

import (
	"testing"

	"alchemist/internal/config"
	"alchemist/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...store.Option) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}
