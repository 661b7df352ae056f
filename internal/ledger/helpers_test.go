package ledger

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/store"
	"github.com/roach88/kirana/internal/testutil"
)

const wait = 2 * time.Second

// newTestLedger opens a ledger on a fresh database with a stepping clock,
// sequential op ids and UTC display times.
func newTestLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	clk := testutil.NewStepClock(time.Time{}, time.Minute)
	base := []Option{
		WithClock(clk.Now),
		WithLocation(time.UTC),
		WithOpIDGenerator(NewSequenceGenerator("op")),
		WithCoalesceWindow(0),
	}
	l, err := Open(filepath.Join(t.TempDir(), "kirana.db"), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func addItem(t *testing.T, l *Ledger, name string, price float64, stock int64) int64 {
	t.Helper()
	id, err := l.AddItem(context.Background(), model.Item{Name: name, Price: price, Stock: stock, Category: "Grocery", ReorderPoint: 2})
	require.NoError(t, err)
	return id
}

func addParty(t *testing.T, l *Ledger, name string, typ model.PartyType) int64 {
	t.Helper()
	id, err := l.AddParty(context.Background(), model.Party{Name: name, Phone: "98450" + name, Type: typ})
	require.NoError(t, err)
	return id
}

// outbox returns every outbox row, oldest first.
func outbox(t *testing.T, l *Ledger) []model.OutboxEntry {
	t.Helper()
	rows, err := store.Outbox.Select(context.Background(), l.Store().Reader(), "ORDER BY id ASC")
	require.NoError(t, err)
	return rows
}

func lastOutbox(t *testing.T, l *Ledger) model.OutboxEntry {
	t.Helper()
	rows := outbox(t, l)
	require.NotEmpty(t, rows)
	return rows[len(rows)-1]
}

func decodePayload(t *testing.T, e model.OutboxEntry) map[string]any {
	t.Helper()
	require.NotNil(t, e.PayloadJSON)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(*e.PayloadJSON), &m))
	return m
}
