package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recordingObserver captures every touched set it is notified with.
type recordingObserver struct {
	mu    sync.Mutex
	calls []schema.TableSet
}

func (o *recordingObserver) Notify(touched schema.TableSet) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, touched)
}

func (o *recordingObserver) snapshot() []schema.TableSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]schema.TableSet(nil), o.calls...)
}

func testItem(name string, stock int64) model.Item {
	return model.Item{Name: name, Price: 10, Stock: stock, Category: "General", ReorderPoint: 2}
}

// mustInsert inserts v in its own atomic unit and returns its id.
func mustInsert[T any](t *testing.T, s *Store, repo Repo[T], v T) int64 {
	t.Helper()
	var id int64
	_, err := s.RunAtomic(context.Background(), func(tx *Tx) error {
		var err error
		id, err = repo.Insert(context.Background(), tx, v)
		return err
	})
	if err != nil {
		t.Fatalf("insert into %s failed: %v", repo.Table(), err)
	}
	return id
}
