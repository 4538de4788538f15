package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/forecast/internal/calendar"
	"github.com/cleared-dev/forecast/internal/ledger"
	"github.com/cleared-dev/forecast/internal/model"
)

// BillAmortizer sums the bills falling due before the target date.
type BillAmortizer struct {
	client ledger.Client
	log    logrus.FieldLogger
}

// TotalDue returns the non-negative amount of bills due from their next
// expected date until, but not including, target.
func (b *BillAmortizer) TotalDue(ctx context.Context, target, balanceDate time.Time) (decimal.Decimal, error) {
	bills, err := b.client.Bills(ctx, calendar.Date(balanceDate), calendar.Date(target))
	if err != nil {
		return decimal.Zero, fmt.Errorf("listing bills: %w", err)
	}

	total := decimal.Zero
	for _, bill := range bills {
		for _, due := range occurrences(bill, target) {
			b.log.WithFields(logrus.Fields{
				"bill":   bill.Name,
				"due":    due.Format(time.DateOnly),
				"amount": bill.AmountMax.StringFixed(2),
			}).Debug("adding bill")
			total = total.Add(bill.AmountMax)
		}
	}
	return total, nil
}

// occurrences lists the due dates of bill strictly before target.
// Only monthly bills recur; any other frequency is due at most once.
func occurrences(bill model.Bill, target time.Time) []time.Time {
	if bill.NextExpected == nil {
		return nil
	}
	d := calendar.Date(*bill.NextExpected)
	end := calendar.Date(target)

	if bill.RepeatFrequency != model.RepeatMonthly {
		if d.Before(end) {
			return []time.Time{d}
		}
		return nil
	}

	step := 1 + max(bill.Skip, 0)
	anchor := d.Day()
	var dues []time.Time
	for d.Before(end) {
		dues = append(dues, d)
		d = calendar.Advance(d, step, anchor)
	}
	return dues
}
