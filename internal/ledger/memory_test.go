package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/forecast/internal/model"
)

const fixtureYAML = `accounts:
  - id: "1"
    name: Sparkasse giro
    balance: "1520.37"
    updated_at: 2023-10-12T08:30:00Z
  - id: "7"
    name: Visa
    role: ccAsset
    credit_card_type: monthlyFull
    balance: "312.10"
    updated_at: 2023-10-11T20:00:00Z
    monthly_payment_date: 2023-01-10
transactions:
  - account: "1"
    type: deposit
    date: 2023-09-28
    amount: "4900.00"
  - type: transfer
    date: 2023-10-10
    amount: "312.10"
    source: "1"
    destination: "7"
bills:
  - name: Rent
    next_expected: 2023-11-01
    amount_max: "950.00"
    repeat_freq: monthly
  - name: Dormant
    amount_max: "10"
    repeat_freq: yearly
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFixture(t *testing.T) {
	m, err := LoadFixture(writeFixture(t, fixtureYAML))
	require.NoError(t, err)
	ctx := context.Background()

	accts, err := m.AssetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accts, 2)
	assert.Equal(t, model.RoleDefault, accts[0].Role)
	assert.True(t, accts[0].CurrentBalance.Equal(dec("1520.37")))

	card, ok := accts[1].CreditCard()
	require.True(t, ok)
	assert.Equal(t, 10, card.SettlementDay)

	deposits, err := m.Transactions(ctx, "1", TransactionQuery{Type: model.TypeDeposit})
	require.NoError(t, err)
	require.Len(t, deposits, 1)

	transfers, err := m.Transfers(ctx, day(2023, 10, 9), day(2023, 10, 16))
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "7", transfers[0].DestinationID)

	onCard, err := m.Transactions(ctx, "7", TransactionQuery{})
	require.NoError(t, err)
	assert.Len(t, onCard, 1, "transfers are listed on both legs")

	bills, err := m.Bills(ctx, day(2023, 10, 12), day(2023, 11, 5))
	require.NoError(t, err)
	require.Len(t, bills, 2)
	require.NotNil(t, bills[0].NextExpected)
	assert.Nil(t, bills[1].NextExpected)
}

func TestLoadFixture_Errors(t *testing.T) {
	_, err := LoadFixture(writeFixture(t, "transactions:\n  - type: refund\n    date: 2023-10-01\n    amount: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")

	_, err = LoadFixture(writeFixture(t, "transactions:\n  - type: deposit\n    date: 2023-10-01\n    amount: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account is required")

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMemory_ErrAndCalls(t *testing.T) {
	m := NewMemory()
	m.Err = errors.New("connection refused")

	_, err := m.Bills(context.Background(), day(2023, 1, 1), day(2023, 2, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, 1, m.Calls["Bills"])
}

func TestTransactionQueryWindow(t *testing.T) {
	q := TransactionQuery{Type: model.TypeDeposit, Start: day(2023, 10, 18), End: day(2023, 10, 28)}

	assert.True(t, q.matches(model.Transaction{Type: model.TypeDeposit, Date: day(2023, 10, 18)}))
	assert.True(t, q.matches(model.Transaction{Type: model.TypeDeposit, Date: day(2023, 10, 28)}))
	assert.False(t, q.matches(model.Transaction{Type: model.TypeDeposit, Date: day(2023, 10, 29)}))
	assert.False(t, q.matches(model.Transaction{Type: model.TypeWithdrawal, Date: day(2023, 10, 20)}))
}
