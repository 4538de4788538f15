package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/forecast/internal/accounts"
	"github.com/cleared-dev/forecast/internal/calendar"
	"github.com/cleared-dev/forecast/internal/ledger"
	"github.com/cleared-dev/forecast/internal/model"
)

const (
	// settlementWindowDays is how long a card payment may take to show up
	// on both accounts after the settlement day.
	settlementWindowDays = 6
	// transferSearchDays is the length of the transfer search that starts
	// the day before the settlement day.
	transferSearchDays = 7
	// longHorizonDays is the horizon beyond which every card rolls over.
	longHorizonDays = 30
)

// settlement is the state of a card payment inside its settlement window.
type settlement int

const (
	settlementNotStarted settlement = iota // no transfer into the card yet
	settlementInFlight                     // paid into the card, not seen leaving the main account
	settlementArrived                      // seen on both sides
)

func (s settlement) String() string {
	switch s {
	case settlementNotStarted:
		return "not started"
	case settlementInFlight:
		return "in flight"
	case settlementArrived:
		return "arrived"
	}
	return "unknown"
}

// CardReconciler works out how much of the monthly-full credit card
// balances will still leave the main account before the target date.
type CardReconciler struct {
	client ledger.Client
	log    logrus.FieldLogger
}

// Outstanding returns the card balances to subtract from the projection.
//
// The rollover check decides whether the current balance settles before
// target. Inside the settlement window a payment still in flight is added on
// top of that amount. With no payment yet the current balance is owed once.
func (r *CardReconciler) Outstanding(ctx context.Context, target, balanceDate time.Time, mainAccountID string) (decimal.Decimal, error) {
	svc, err := accounts.Load(ctx, r.client)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, card := range svc.MonthlyFullCards() {
		owed, err := r.owed(ctx, card, target, balanceDate, mainAccountID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("card %s: %w", card.Name, err)
		}
		total = total.Add(owed)
	}
	return total, nil
}

func (r *CardReconciler) owed(ctx context.Context, card model.CreditCardAccount, target, balanceDate time.Time, mainAccountID string) (decimal.Decimal, error) {
	log := r.log.WithFields(logrus.Fields{
		"card":           card.Name,
		"balance":        card.CurrentBalance.StringFixed(2),
		"settlement_day": card.SettlementDay,
	})

	owed := decimal.Zero
	if rollsOver(card.SettlementDay, balanceDate, target) {
		log.Debug("current balance will roll over before target")
		owed = card.CurrentBalance
	}

	day := calendar.Date(balanceDate).Day()
	switch {
	case card.SettlementDay+settlementWindowDays <= day:
		log.Debug("this month's settlement should already be on the main account")
		return owed, nil
	case card.SettlementDay > day:
		return owed, nil
	}

	state, inFlight, err := r.settlementState(ctx, card, balanceDate, mainAccountID)
	if err != nil {
		return decimal.Zero, err
	}
	log = log.WithField("settlement", state.String())
	switch state {
	case settlementNotStarted:
		log.Debug("no settlement transfer found, current balance is still owed")
		return card.CurrentBalance, nil
	case settlementInFlight:
		log.WithField("in_flight", inFlight.StringFixed(2)).Debug("settlement transfer has not left the main account")
		return owed.Add(inFlight), nil
	default:
		log.Debug("settlement transfer already left the main account")
		return owed, nil
	}
}

// rollsOver reports whether a card settling on settlementDay settles
// between the balance date and the target date.
func rollsOver(settlementDay int, balanceDate, target time.Time) bool {
	b := calendar.Date(balanceDate)
	t := calendar.Date(target)
	bm, tm := calendar.MonthIndex(b), calendar.MonthIndex(t)

	sameMonth := bm == tm && b.Day() < settlementDay && settlementDay < t.Day()
	crossMonth := bm < tm && settlementDay < t.Day()
	longHorizon := calendar.DaysBetween(b, t) > longHorizonDays
	return sameMonth || crossMonth || longHorizon
}

// settlementState looks for the card payment in the transfer search window
// around this month's settlement day.
func (r *CardReconciler) settlementState(ctx context.Context, card model.CreditCardAccount, balanceDate time.Time, mainAccountID string) (settlement, decimal.Decimal, error) {
	start := calendar.OnDay(calendar.Date(balanceDate), card.SettlementDay).AddDate(0, 0, -1)
	end := start.AddDate(0, 0, transferSearchDays)

	transfers, err := r.client.Transfers(ctx, start, end)
	if err != nil {
		return settlementNotStarted, decimal.Zero, fmt.Errorf("listing transfers %s..%s: %w",
			start.Format(time.DateOnly), end.Format(time.DateOnly), err)
	}

	var inFlight decimal.Decimal
	found := false
	for _, t := range transfers {
		if t.DestinationID != card.ID {
			continue
		}
		amount := t.Amount.Round(2)
		if amount.IsZero() {
			continue
		}
		if found && !amount.Equal(inFlight) {
			return settlementNotStarted, decimal.Zero, fmt.Errorf("%w: %s and %s paid into %s",
				ErrAmbiguousTransfer, inFlight.StringFixed(2), amount.StringFixed(2), card.Name)
		}
		inFlight = amount
		found = true
	}
	if !found {
		return settlementNotStarted, decimal.Zero, nil
	}

	for _, t := range transfers {
		if t.SourceID == mainAccountID && t.Amount.Round(2).Equal(inFlight) {
			return settlementArrived, inFlight, nil
		}
	}
	return settlementInFlight, inFlight, nil
}
