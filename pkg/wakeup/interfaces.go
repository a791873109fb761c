package wakeup

import (
	"context"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// AccountStore is the registration persistence adapter. Lookup returns
// ErrAccountNotFound when the identifier is unknown; Persist writes the
// account back as a whole (read-modify-write semantics).
type AccountStore interface {
	Lookup(ctx context.Context, id urn.URN) (*Account, error)
	Persist(ctx context.Context, account *Account) error
}

// PushGateway is the provider client consumed by a sender. Submit blocks
// until the provider reports a structured Outcome or the call itself fails;
// the sender makes it asynchronous. A returned error is a transport failure
// and means no Outcome was produced.
type PushGateway interface {
	Submit(ctx context.Context, msg Message) (Outcome, error)
	Shutdown()
}

// Metrics is the process-wide counter handle injected into each component.
// MarkOutbound is incremented at submission time on the caller's goroutine;
// the remaining marks happen on the reconciliation worker.
type Metrics interface {
	MarkOutbound(kind Kind)
	MarkSuccess()
	MarkFailure()
	MarkUnregistered()
	MarkCanonical()
}
