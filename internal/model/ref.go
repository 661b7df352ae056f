package model

import "fmt"

// RefKind tags what a [Ref] points at.
type RefKind int

const (
	RefNone RefKind = iota
	RefItem
	RefTransaction
	RefParty
)

func (k RefKind) String() string {
	switch k {
	case RefNone:
		return "none"
	case RefItem:
		return "item"
	case RefTransaction:
		return "transaction"
	case RefParty:
		return "party"
	default:
		return fmt.Sprintf("RefKind(%d)", int(k))
	}
}

// Ref is a typed pointer to another row. The zero value is RefNone.
type Ref struct {
	Kind RefKind
	ID   int64
}

func (r Ref) IsNone() bool { return r.Kind == RefNone }

func (r Ref) String() string {
	if r.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}
