package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/forecast/internal/config"
	"github.com/cleared-dev/forecast/internal/ledger"
	"github.com/cleared-dev/forecast/internal/model"
)

const (
	mainID   = "1"
	mainName = "Sparkasse giro"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func testSettings() Settings {
	return Settings{
		MainAccountName: mainName,
		Salary: SalarySettings{
			Amount:        dec("4900"),
			DayOfMonth:    28,
			ProximityDays: 10,
			LookbackDays:  10,
			ToleranceLow:  dec("0.8"),
			ToleranceHigh: dec("1.2"),
		},
	}
}

// newLedger returns a ledger holding only the main account.
func newLedger(balance string, asOf time.Time) *ledger.Memory {
	m := ledger.NewMemory()
	m.Accounts = append(m.Accounts, model.Account{
		ID:             mainID,
		Name:           mainName,
		Type:           model.AccountTypeAsset,
		Role:           model.RoleDefault,
		CurrentBalance: dec(balance),
		UpdatedAt:      asOf,
	})
	return m
}

func addCard(m *ledger.Memory, id, name, balance string, settlementDay int) {
	pay := day(2023, 1, settlementDay)
	m.Accounts = append(m.Accounts, model.Account{
		ID:                 id,
		Name:               name,
		Type:               model.AccountTypeAsset,
		Role:               model.RoleCreditCard,
		CardType:           model.CardMonthlyFull,
		CurrentBalance:     dec(balance),
		UpdatedAt:          day(2023, 10, 1),
		MonthlyPaymentDate: &pay,
	})
}

func transfer(date time.Time, amount, from, to string) model.Transfer {
	return model.Transfer{Amount: dec(amount), Date: date, Type: model.TypeTransfer, SourceID: from, DestinationID: to}
}

func newEngine(m ledger.Client, now time.Time) *Engine {
	return NewEngine(m, testSettings(), WithClock(func() time.Time { return now }))
}

func TestProject_PastTargetReturnsSnapshot(t *testing.T) {
	asOf := time.Date(2023, 10, 12, 8, 30, 0, 0, time.UTC)
	m := newLedger("1520.37", asOf)
	addCard(m, "7", "Visa", "312.10", 10)
	m.BillList = []model.Bill{{Name: "Rent", NextExpected: ptr(day(2023, 9, 1)), AmountMax: dec("950"), RepeatFrequency: model.RepeatMonthly}}

	for _, target := range []time.Time{day(2023, 10, 12), day(2023, 10, 1), day(2022, 12, 31)} {
		got, err := newEngine(m, asOf).Project(context.Background(), target)
		require.NoError(t, err)

		assert.True(t, got.Past)
		assert.True(t, got.Balance.Equal(dec("1520.37")), "target %s: %s", target, got.Balance)
		assert.Equal(t, asOf, got.BasisDate)
		assert.Empty(t, got.Checkpoints)
	}
	assert.Zero(t, m.Calls["Bills"])
	assert.Equal(t, 3, m.Calls["AssetAccounts"], "main account lookup only")
	assert.Zero(t, m.Calls["Transactions"])
}

func TestProject_FullPipeline(t *testing.T) {
	asOf := time.Date(2023, 10, 12, 8, 30, 0, 0, time.UTC)
	m := newLedger("1520.37", asOf)
	addCard(m, "7", "Visa", "312.10", 10)
	addCard(m, "8", "Amex", "80.00", 3)
	m.BillList = []model.Bill{
		{Name: "Rent", NextExpected: ptr(day(2023, 11, 1)), AmountMax: dec("950.00"), RepeatFrequency: model.RepeatMonthly},
		{Name: "Internet", NextExpected: ptr(day(2023, 10, 20)), AmountMax: dec("39.99"), RepeatFrequency: model.RepeatMonthly},
		{Name: "Insurance", NextExpected: ptr(day(2023, 10, 30)), AmountMax: dec("120.50"), RepeatFrequency: model.RepeatYearly},
		{Name: "Dormant", AmountMax: dec("999"), RepeatFrequency: model.RepeatMonthly},
	}
	m.TransferList = []model.Transfer{transfer(day(2023, 10, 10), "312.10", mainID, "7")}

	got, err := newEngine(m, asOf).Project(context.Background(), day(2023, 11, 5))
	require.NoError(t, err)

	assert.False(t, got.Past)
	assert.Equal(t, asOf, got.BasisDate)
	assert.Equal(t, day(2023, 11, 5), got.TargetDate)
	assert.Equal(t, "5229.88", got.Balance.StringFixed(2))

	require.Len(t, got.Checkpoints, 4)
	want := []struct{ step, delta, running string }{
		{model.StepBalance, "1520.37", "1520.37"},
		{model.StepSalary, "4900.00", "6420.37"},
		{model.StepBills, "-1110.49", "5309.88"},
		{model.StepCreditCards, "-80.00", "5229.88"},
	}
	for i, w := range want {
		cp := got.Checkpoints[i]
		assert.Equal(t, w.step, cp.Step)
		assert.Equal(t, w.delta, cp.Delta.StringFixed(2), "delta of %s", w.step)
		assert.Equal(t, w.running, cp.Running.StringFixed(2), "running after %s", w.step)
	}
}

func TestProject_Idempotent(t *testing.T) {
	asOf := time.Date(2023, 10, 12, 8, 30, 0, 0, time.UTC)
	m := newLedger("1520.37", asOf)
	addCard(m, "7", "Visa", "312.10", 10)
	m.BillList = []model.Bill{{Name: "Rent", NextExpected: ptr(day(2023, 11, 1)), AmountMax: dec("950"), RepeatFrequency: model.RepeatMonthly}}
	eng := newEngine(m, asOf)

	first, err := eng.Project(context.Background(), day(2024, 1, 15))
	require.NoError(t, err)
	second, err := eng.Project(context.Background(), day(2024, 1, 15))
	require.NoError(t, err)

	assert.True(t, first.Balance.Equal(second.Balance))
	assert.Equal(t, first.BasisDate, second.BasisDate)
	assert.Equal(t, first.Checkpoints, second.Checkpoints)
}

func TestProject_CentPrecision(t *testing.T) {
	asOf := day(2023, 10, 29)
	m := newLedger("0.10", asOf)
	for i := 0; i < 30; i++ {
		m.BillList = append(m.BillList, model.Bill{
			Name: "Micro", NextExpected: ptr(day(2023, 11, 1)), AmountMax: dec("0.10"), RepeatFrequency: model.RepeatWeekly,
		})
	}
	eng := NewEngine(m, Settings{
		MainAccountName: mainName,
		Salary: SalarySettings{
			Amount: dec("1000.01"), DayOfMonth: 28, ProximityDays: 10, LookbackDays: 10,
			ToleranceLow: dec("0.8"), ToleranceHigh: dec("1.2"),
		},
	}, WithClock(func() time.Time { return asOf }))

	got, err := eng.Project(context.Background(), day(2023, 11, 10))
	require.NoError(t, err)
	// 0.10 - 30 x 0.10 + 0 salary (Oct paid, Nov 28 after target)
	assert.Equal(t, "-2.9", got.Balance.String())
	assert.True(t, got.Balance.Equal(dec("-2.90")))
}

func TestProject_MainAccountNotFound(t *testing.T) {
	m := newLedger("1.00", day(2023, 10, 12))
	eng := NewEngine(m, Settings{MainAccountName: "Girokonto"})

	_, err := eng.Project(context.Background(), day(2023, 11, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMainAccountNotFound)
	assert.Contains(t, err.Error(), "Girokonto")
}

func TestProject_UpstreamFailurePropagates(t *testing.T) {
	m := newLedger("1.00", day(2023, 10, 12))
	m.Err = errors.New("connection refused")

	_, err := newEngine(m, day(2023, 10, 12)).Project(context.Background(), day(2023, 11, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrUpstream)
}

// failingBills fails only the bills query, after the salary step succeeded.
type failingBills struct{ *ledger.Memory }

func (f failingBills) Bills(context.Context, time.Time, time.Time) ([]model.Bill, error) {
	return nil, ledger.ErrUpstream
}

func TestProject_FailureMidPipelineReturnsNothing(t *testing.T) {
	m := newLedger("100.00", day(2023, 10, 12))
	got, err := newEngine(failingBills{m}, day(2023, 10, 12)).Project(context.Background(), day(2023, 11, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrUpstream)
	assert.Contains(t, err.Error(), "summing bills")
	assert.True(t, got.Balance.IsZero())
	assert.Empty(t, got.Checkpoints)
}

func TestSettingsFrom(t *testing.T) {
	cfg := config.Default()
	cfg.MainAccountName = mainName
	cfg.Salary.Amount = dec("4900")
	cfg.Salary.DayOfMonth = 28

	s := SettingsFrom(cfg)
	assert.Equal(t, mainName, s.MainAccountName)
	assert.Equal(t, 28, s.Salary.DayOfMonth)
	assert.Equal(t, 10, s.Salary.ProximityDays)
	assert.True(t, s.Salary.ToleranceHigh.Equal(dec("1.2")))
}
