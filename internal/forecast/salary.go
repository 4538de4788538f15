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

// SalaryEstimator counts the pay days between the balance date and the
// target date.
type SalaryEstimator struct {
	client   ledger.Client
	settings SalarySettings
	log      logrus.FieldLogger
	now      func() time.Time
}

// Estimate returns the salary expected to arrive on the main account
// before target, net of any salary already in the balance.
func (s *SalaryEstimator) Estimate(ctx context.Context, target, balanceDate time.Time, mainAccountID string) (decimal.Decimal, error) {
	pending, err := s.currentMonthPending(ctx, balanceDate, mainAccountID)
	if err != nil {
		return decimal.Zero, err
	}

	// The walk counts the balance month itself, which pending already covers.
	count := pending + cycles(balanceDate, target) - 1
	total := s.settings.Amount.Mul(decimal.NewFromInt(int64(count)))

	s.log.WithFields(logrus.Fields{
		"pay_days": count,
		"total":    total.StringFixed(2),
	}).Debug("salary expected until target")
	return total, nil
}

// currentMonthPending returns 1 when this month's salary is not yet in the
// balance.
func (s *SalaryEstimator) currentMonthPending(ctx context.Context, balanceDate time.Time, mainAccountID string) (int, error) {
	daysToSalary := s.settings.DayOfMonth - balanceDate.Day()
	switch {
	case daysToSalary < 0:
		s.log.Debug("salary for this month is expected to be in already")
		return 0, nil
	case daysToSalary > s.settings.ProximityDays:
		s.log.Debug("long time to this month's salary, not checking it")
		return 1, nil
	}

	found, err := s.postedRecently(ctx, mainAccountID)
	if err != nil {
		return 0, err
	}
	if found {
		s.log.Debug("this month's salary is found")
		return 0, nil
	}
	s.log.Debug("this month's salary is not found")
	return 1, nil
}

// postedRecently looks for a deposit close to the salary amount since
// LookbackDays before this month's pay day.
func (s *SalaryEstimator) postedRecently(ctx context.Context, mainAccountID string) (bool, error) {
	payDay := calendar.OnDay(calendar.Date(s.now()), s.settings.DayOfMonth)
	from := payDay.AddDate(0, 0, -s.settings.LookbackDays)

	deposits, err := s.client.Transactions(ctx, mainAccountID, ledger.TransactionQuery{
		Type:  model.TypeDeposit,
		Start: from,
	})
	if err != nil {
		return false, fmt.Errorf("listing deposits since %s: %w", from.Format(time.DateOnly), err)
	}

	low := s.settings.Amount.Mul(s.settings.ToleranceLow)
	high := s.settings.Amount.Mul(s.settings.ToleranceHigh)
	for _, d := range deposits {
		if d.Amount.GreaterThan(low) && d.Amount.LessThan(high) {
			return true, nil
		}
	}
	return false, nil
}

// cycles counts monthly steps from balanceDate until the target is reached.
func cycles(balanceDate, target time.Time) int {
	d := calendar.Date(balanceDate)
	end := calendar.Date(target)
	anchor := d.Day()

	n := 0
	for d.Before(end) {
		d = calendar.Advance(d, 1, anchor)
		n++
	}
	return n
}
