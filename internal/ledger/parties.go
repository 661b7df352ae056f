package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
	"github.com/roach88/kirana/internal/store"
)

type balanceDelta struct {
	ID    int64   `json:"id"`
	Delta float64 `json:"balanceDelta"`
}

// AddParty inserts a customer or vendor and returns its id. Name and phone
// are trimmed and must not be blank; an empty GST number is stored as NULL.
func (l *Ledger) AddParty(ctx context.Context, p model.Party) (int64, error) {
	if err := cleanParty(&p); err != nil {
		return 0, err
	}
	var id int64
	err := l.atomic(ctx, "add party", func(w *Writer) error {
		var err error
		if id, err = store.Parties.Insert(ctx, w.Tx(), p); err != nil {
			return err
		}
		p.ID = id
		return w.Enqueue(ctx, model.EntityParty, &id, model.OpUpsert, p)
	})
	return id, err
}

// UpdateParty overwrites name, phone, type and GST number by id. The balance
// only changes through AdjustBalance and the payment operations.
func (l *Ledger) UpdateParty(ctx context.Context, p model.Party) error {
	if err := cleanParty(&p); err != nil {
		return err
	}
	return l.atomic(ctx, "update party", func(w *Writer) error {
		if err := store.Parties.Update(ctx, w.Tx(), p); err != nil {
			return err
		}
		return w.Enqueue(ctx, model.EntityParty, &p.ID, model.OpUpsert, p)
	})
}

// AdjustBalance adds delta to the party's balance.
func (l *Ledger) AdjustBalance(ctx context.Context, partyID int64, delta float64) error {
	return l.atomic(ctx, "adjust balance", func(w *Writer) error {
		if err := w.AdjustBalance(ctx, partyID, delta); err != nil {
			return err
		}
		return w.Enqueue(ctx, model.EntityParty, &partyID, model.OpUpsert, balanceDelta{ID: partyID, Delta: delta})
	})
}

// DeleteParties hard-deletes the parties in ids. Transactions and items that
// referenced them keep their rows with the reference cleared. Unknown ids are
// ignored.
func (l *Ledger) DeleteParties(ctx context.Context, ids []int64) error {
	return l.deleteAll(ctx, "delete parties", store.Parties, model.EntityParty, ids)
}

func cleanParty(p *model.Party) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.Name == "" || p.Phone == "" {
		return store.NewConstraintError("party", schema.Parties, "party name and phone are required")
	}
	if p.Type != model.Customer && p.Type != model.Vendor {
		return store.NewConstraintError("party", schema.Parties, fmt.Sprintf("unknown party type %q", p.Type))
	}
	if p.GSTNumber != nil {
		if gst := strings.TrimSpace(*p.GSTNumber); gst != "" {
			p.GSTNumber = &gst
		} else {
			p.GSTNumber = nil
		}
	}
	return nil
}
