// Package forecast projects the main account balance on a future date.
//
// Engine.Project is the only entry point. It reads the ledger through a
// ledger.Client, holds no state between calls and never writes back.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/forecast/internal/accounts"
	"github.com/cleared-dev/forecast/internal/calendar"
	"github.com/cleared-dev/forecast/internal/config"
	"github.com/cleared-dev/forecast/internal/ledger"
	"github.com/cleared-dev/forecast/internal/model"
)

var (
	// ErrMainAccountNotFound is returned when no asset account has the
	// configured main account name.
	ErrMainAccountNotFound = accounts.ErrNotFound
	// ErrAmbiguousTransfer is returned when a settlement window holds
	// transfers of different amounts into the same card.
	ErrAmbiguousTransfer = errors.New("ambiguous credit card transfer")
)

// Settings is the immutable configuration of an Engine.
type Settings struct {
	MainAccountName string
	Salary          SalarySettings
}

// SalarySettings describes the expected monthly income.
type SalarySettings struct {
	Amount        decimal.Decimal
	DayOfMonth    int
	ProximityDays int
	LookbackDays  int
	ToleranceLow  decimal.Decimal
	ToleranceHigh decimal.Decimal
}

// SettingsFrom copies the projection settings out of a loaded config.
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		MainAccountName: cfg.MainAccountName,
		Salary: SalarySettings{
			Amount:        cfg.Salary.Amount,
			DayOfMonth:    cfg.Salary.DayOfMonth,
			ProximityDays: cfg.Salary.ProximityDays,
			LookbackDays:  cfg.Salary.LookbackDays,
			ToleranceLow:  cfg.Salary.ToleranceLow,
			ToleranceHigh: cfg.Salary.ToleranceHigh,
		},
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the diagnostic sink. Checkpoints are logged at Info,
// per-item decisions at Debug.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock overrides time.Now, which anchors the salary lookback window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine reconciles the main account snapshot with expected salary, bills
// and credit card settlements.
type Engine struct {
	client   ledger.Client
	settings Settings
	log      logrus.FieldLogger
	now      func() time.Time

	salary *SalaryEstimator
	bills  *BillAmortizer
	cards  *CardReconciler
}

// NewEngine creates an Engine reading from client.
func NewEngine(client ledger.Client, settings Settings, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		settings: settings,
		log:      discardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.salary = &SalaryEstimator{client: client, settings: settings.Salary, log: e.log, now: e.now}
	e.bills = &BillAmortizer{client: client, log: e.log}
	e.cards = &CardReconciler{client: client, log: e.log}
	return e
}

// Project forecasts the main account balance on target.
//
// When target is on or before the snapshot date the snapshot balance is
// returned unchanged with Past set. Any ledger failure aborts the whole
// projection.
func (e *Engine) Project(ctx context.Context, target time.Time) (model.Prediction, error) {
	target = calendar.Date(target)
	log := e.log.WithField("target_date", target.Format(time.DateOnly))

	snap, err := e.mainAccount(ctx)
	if err != nil {
		return model.Prediction{}, err
	}
	log = log.WithFields(logrus.Fields{"account": snap.Name, "basis_date": snap.AsOf.Format(time.RFC3339)})

	if !calendar.Before(snap.AsOf, target) {
		log.WithField("balance", snap.Balance.StringFixed(2)).Info("target is not after the balance date, returning known balance")
		return model.Prediction{
			Balance:    snap.Balance,
			BasisDate:  snap.AsOf,
			TargetDate: target,
			Past:       true,
		}, nil
	}

	p := model.Prediction{BasisDate: snap.AsOf, TargetDate: target}
	apply := func(step string, delta decimal.Decimal) {
		p.Balance = p.Balance.Add(delta)
		p.Checkpoints = append(p.Checkpoints, model.Checkpoint{Step: step, Delta: delta, Running: p.Balance})
		log.WithFields(logrus.Fields{
			"step":    step,
			"delta":   delta.StringFixed(2),
			"running": p.Balance.StringFixed(2),
		}).Info("checkpoint")
	}

	apply(model.StepBalance, snap.Balance)

	salary, err := e.salary.Estimate(ctx, target, snap.AsOf, snap.ID)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("estimating salary: %w", err)
	}
	apply(model.StepSalary, salary)

	due, err := e.bills.TotalDue(ctx, target, snap.AsOf)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("summing bills: %w", err)
	}
	apply(model.StepBills, due.Neg())

	owed, err := e.cards.Outstanding(ctx, target, snap.AsOf, snap.ID)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("reconciling credit cards: %w", err)
	}
	apply(model.StepCreditCards, owed.Neg())

	return p, nil
}

func (e *Engine) mainAccount(ctx context.Context) (model.AccountSnapshot, error) {
	svc, err := accounts.Load(ctx, e.client)
	if err != nil {
		return model.AccountSnapshot{}, err
	}
	acct, err := svc.ByName(e.settings.MainAccountName)
	if err != nil {
		return model.AccountSnapshot{}, fmt.Errorf("finding main account: %w", err)
	}
	return acct.Snapshot(), nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
