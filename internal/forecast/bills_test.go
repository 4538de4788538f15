package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/forecast/internal/model"
)

func totalDue(t *testing.T, bills []model.Bill, balanceDate, target time.Time) string {
	t.Helper()
	m := newLedger("0", balanceDate)
	m.BillList = bills
	amortizer := &BillAmortizer{client: m, log: discardLogger()}

	got, err := amortizer.TotalDue(context.Background(), target, balanceDate)
	require.NoError(t, err)
	return got.StringFixed(2)
}

func TestBills_MonthlyTwoOccurrences(t *testing.T) {
	bill := model.Bill{Name: "Gym", NextExpected: ptr(day(2025, 1, 15)), AmountMax: dec("100"), RepeatFrequency: model.RepeatMonthly}

	// Jan 15 and Feb 15 fall before the target; Mar 15 does not.
	assert.Equal(t, "200.00", totalDue(t, []model.Bill{bill}, day(2025, 1, 1), day(2025, 3, 15)))
	assert.Equal(t, "300.00", totalDue(t, []model.Bill{bill}, day(2025, 1, 1), day(2025, 3, 16)))
}

func TestBills_OneOff(t *testing.T) {
	bill := model.Bill{Name: "Insurance", NextExpected: ptr(day(2023, 10, 30)), AmountMax: dec("120.50"), RepeatFrequency: model.RepeatYearly}

	assert.Equal(t, "120.50", totalDue(t, []model.Bill{bill}, day(2023, 10, 12), day(2023, 10, 31)))
	assert.Equal(t, "120.50", totalDue(t, []model.Bill{bill}, day(2023, 10, 12), day(2024, 12, 31)), "counted once however far")
	assert.Equal(t, "0.00", totalDue(t, []model.Bill{bill}, day(2023, 10, 12), day(2023, 10, 30)), "due on target")
	assert.Equal(t, "0.00", totalDue(t, []model.Bill{bill}, day(2023, 10, 12), day(2023, 10, 20)))
}

func TestBills_Skip(t *testing.T) {
	bill := model.Bill{Name: "Water", NextExpected: ptr(day(2023, 1, 15)), AmountMax: dec("45.10"), RepeatFrequency: model.RepeatMonthly, Skip: 1}

	// Jan 15, Mar 15, May 15.
	assert.Equal(t, "135.30", totalDue(t, []model.Bill{bill}, day(2023, 1, 1), day(2023, 6, 1)))
}

func TestBills_NoNextExpected(t *testing.T) {
	bill := model.Bill{Name: "Old", AmountMax: dec("10"), RepeatFrequency: model.RepeatMonthly}
	assert.Equal(t, "0.00", totalDue(t, []model.Bill{bill}, day(2023, 1, 1), day(2024, 1, 1)))
}

func TestBills_Sum(t *testing.T) {
	bills := []model.Bill{
		{Name: "Rent", NextExpected: ptr(day(2023, 11, 1)), AmountMax: dec("950.00"), RepeatFrequency: model.RepeatMonthly},
		{Name: "Phone", NextExpected: ptr(day(2023, 10, 31)), AmountMax: dec("19.99"), RepeatFrequency: model.RepeatMonthly},
		{Name: "Tax", NextExpected: ptr(day(2023, 12, 1)), AmountMax: dec("300"), RepeatFrequency: model.RepeatQuarterly},
	}
	// Rent Nov 1, Dec 1; Phone Oct 31, Nov 30; Tax Dec 1.
	assert.Equal(t, "2239.98", totalDue(t, bills, day(2023, 10, 12), day(2023, 12, 15)))
}

func TestOccurrences_MonthEnd(t *testing.T) {
	bill := model.Bill{NextExpected: ptr(day(2023, 1, 31)), AmountMax: dec("1"), RepeatFrequency: model.RepeatMonthly}

	got := occurrences(bill, day(2023, 5, 1))
	require.Len(t, got, 3)
	assert.Equal(t, day(2023, 1, 31), got[0])
	assert.Equal(t, day(2023, 3, 31), got[1])
	assert.Equal(t, day(2023, 4, 30), got[2])
}

func TestOccurrences_FirstOfMonthTerminates(t *testing.T) {
	bill := model.Bill{NextExpected: ptr(day(2023, 10, 1)), AmountMax: dec("1"), RepeatFrequency: model.RepeatMonthly}

	got := occurrences(bill, day(2024, 1, 15))
	assert.Equal(t, []time.Time{day(2023, 10, 1), day(2023, 11, 1), day(2023, 12, 1), day(2024, 1, 1)}, got)
}
