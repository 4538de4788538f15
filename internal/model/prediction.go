package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Checkpoint steps, in the order the engine applies them.
const (
	StepBalance     = "balance"
	StepSalary      = "salary"
	StepBills       = "bills"
	StepCreditCards = "credit_cards"
)

// PredictionRequest asks for the main account balance on TargetDate.
type PredictionRequest struct {
	TargetDate time.Time
}

// Checkpoint records one step of a projection.
type Checkpoint struct {
	Step    string          `json:"step"`
	Delta   decimal.Decimal `json:"delta"`
	Running decimal.Decimal `json:"running"`
}

// Prediction is the projected balance of the main account.
//
// BasisDate is always the snapshot's timestamp, never the target date.
type Prediction struct {
	Balance     decimal.Decimal `json:"balance"`
	BasisDate   time.Time       `json:"basis_date"`
	TargetDate  time.Time       `json:"target_date"`
	Past        bool            `json:"past"`
	Checkpoints []Checkpoint    `json:"checkpoints,omitempty"`
}
