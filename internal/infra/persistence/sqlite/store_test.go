package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"wildlifecore/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		c, e := tx.CreateCategory(domain.Category{Name: "Birds"})
		if e != nil {
			return e
		}
		f, e := tx.CreateField(domain.Field{Name: "Status", Type: domain.FieldEnum, Options: []string{"common", "rare"}})
		if e != nil {
			return e
		}
		_, e = tx.AttachField(f.ID, c.ID)
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	_ = reloaded.View(context.Background(), func(v domain.TransactionView) error {
		f, ok := v.FindFieldByName("Status")
		if !ok || len(f.Options) != 2 {
			t.Fatalf("expected enum field with options after reload, got %+v", f)
		}
		if len(v.ListAssociations()) != 1 {
			t.Fatalf("expected association after reload")
		}
		return nil
	})
	if _, err := reloaded.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		c, e := tx.CreateCategory(domain.Category{Name: "Fish"})
		if e == nil && c.ID != 2 {
			t.Fatalf("expected id sequence to continue, got %d", c.ID)
		}
		return e
	}); err != nil {
		t.Fatalf("create after reload: %v", err)
	}
}

func TestSQLiteStoreFailedTransactionNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, e := tx.CreateCategory(domain.Category{Name: "Birds"}); e != nil {
			return e
		}
		_, e := tx.CreateCategory(domain.Category{Name: "Birds"})
		return e
	})
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var rows int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected nothing persisted, got %d buckets", rows)
	}
	_ = store.Close()
}

func TestSQLiteStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES('categories', '{not json')`); err != nil {
		t.Fatalf("seed invalid: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path, nil); err == nil || !strings.Contains(err.Error(), "decode categories") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestSQLiteStorePersistFailsAfterClose(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "closed.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	_ = store.Close()
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateCategory(domain.Category{Name: "Ghost"})
		return e
	})
	if err == nil {
		t.Fatalf("expected persist failure on closed database")
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		if len(v.ListCategories()) != 0 {
			t.Fatalf("failed persist must not commit")
		}
		return nil
	})
}
