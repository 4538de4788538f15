// Package ledger reads accounts, transactions, bills and transfers from the
// bookkeeping service. Every method returns fully paginated results.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cleared-dev/forecast/internal/model"
)

// ErrUpstream wraps every failure to query or decode ledger data.
var ErrUpstream = errors.New("ledger: upstream failure")

// Client is the read-only view of the ledger used by the projection.
type Client interface {
	// AssetAccounts lists all asset accounts, credit cards included.
	AssetAccounts(ctx context.Context) ([]model.Account, error)
	// Transactions lists the splits booked on one account.
	Transactions(ctx context.Context, accountID string, q TransactionQuery) ([]model.Transaction, error)
	// Bills lists bills for the window. Bills without a match in the window
	// are still returned.
	Bills(ctx context.Context, start, end time.Time) ([]model.Bill, error)
	// Transfers lists transfer splits dated within [start, end].
	Transfers(ctx context.Context, start, end time.Time) ([]model.Transfer, error)
}

// TransactionQuery filters Transactions. Zero fields do not filter.
type TransactionQuery struct {
	Type  model.TransactionType
	Start time.Time
	End   time.Time
}

func (q TransactionQuery) matches(t model.Transaction) bool {
	if q.Type != "" && t.Type != q.Type {
		return false
	}
	return inWindow(t.Date, q.Start, q.End)
}

func inWindow(d, start, end time.Time) bool {
	day := dateOnly(d)
	if !start.IsZero() && day.Before(dateOnly(start)) {
		return false
	}
	if !end.IsZero() && day.After(dateOnly(end)) {
		return false
	}
	return true
}

// dateOnly compares dates in the ledger's own timezone offsets.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
