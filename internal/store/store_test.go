package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kirana/internal/schema"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	assert.Equal(t, path, s.Path())
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, tbl := range schema.Default.Tables() {
		var name string
		err := s.reader.Get(&name, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", string(tbl.ID))
		assert.NoError(t, err, "table %q missing after repeated opens", tbl.ID)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "got %v", err)
}

func TestOpen_RejectsMemory(t *testing.T) {
	_, err := Open(":memory:")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.writer.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestClose_MultipleCalls(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	// Second close must not panic.
	_ = s.Close()
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t, WithBusyTimeout(2500*time.Millisecond))

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "2500"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pragma(s.writer, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	fk, err := pragma(s.reader, "foreign_keys")
	require.NoError(t, err)
	assert.Equal(t, "1", fk)
	qo, err := pragma(s.reader, "query_only")
	require.NoError(t, err)
	assert.Equal(t, "1", qo)
}

func TestReaderPool_RejectsWrites(t *testing.T) {
	s := createTestStore(t)

	_, err := s.reader.Exec("INSERT INTO reminders (title, type, dueAt) VALUES ('x', 'GENERAL', 0)")
	assert.Error(t, err)
}

func TestSchema_IndexesExist(t *testing.T) {
	s := createTestStore(t)

	for _, tbl := range schema.Default.Tables() {
		for _, idx := range tbl.Indexes {
			var name string
			err := s.reader.Get(&name, "SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx.Name)
			assert.NoError(t, err, "index %s missing", idx.Name)
		}
	}
}

func TestStatementsPrepared(t *testing.T) {
	s := createTestStore(t)
	assert.Equal(t, len(schema.Default.Statements()), s.stmts.len())

	_, err := s.stmts.get("items.nope")
	assert.Error(t, err)
}
