package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the ledger's transaction kind.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
)

// Transaction is a single split of a ledger transaction.
type Transaction struct {
	Amount        decimal.Decimal // always positive; direction comes from Type
	Date          time.Time
	Type          TransactionType
	SourceID      string
	DestinationID string
	Description   string
}

// Transfer is a transaction moving money between two asset accounts.
type Transfer = Transaction

// RepeatFrequency is how often a bill recurs.
type RepeatFrequency string

const (
	RepeatWeekly    RepeatFrequency = "weekly"
	RepeatMonthly   RepeatFrequency = "monthly"
	RepeatQuarterly RepeatFrequency = "quarterly"
	RepeatHalfYear  RepeatFrequency = "half-year"
	RepeatYearly    RepeatFrequency = "yearly"
)

// Bill is an expected recurring (or one-off) payment.
type Bill struct {
	Name            string
	NextExpected    *time.Time
	AmountMax       decimal.Decimal
	RepeatFrequency RepeatFrequency
	Skip            int // recurs every Skip+1 cycles
}
