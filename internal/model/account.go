package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies ledger accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeLiability AccountType = "liability"
)

// AccountRole is the ledger's role for an asset account.
type AccountRole string

const (
	RoleDefault    AccountRole = "defaultAsset"
	RoleShared     AccountRole = "sharedAsset"
	RoleSaving     AccountRole = "savingAsset"
	RoleCreditCard AccountRole = "ccAsset"
	RoleCash       AccountRole = "cashWalletAsset"
)

// CreditCardType is how a credit card account is settled.
type CreditCardType string

// CardMonthlyFull cards are paid off in full once a month.
const CardMonthlyFull CreditCardType = "monthlyFull"

// Account is an asset account as reported by the ledger.
type Account struct {
	ID                 string
	Name               string
	Type               AccountType
	Role               AccountRole
	CardType           CreditCardType
	CurrentBalance     decimal.Decimal
	UpdatedAt          time.Time
	MonthlyPaymentDate *time.Time // nil unless Role is ccAsset
}

// Snapshot returns the account's balance as of its last ledger update.
func (a Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		ID:      a.ID,
		Name:    a.Name,
		Balance: a.CurrentBalance,
		AsOf:    a.UpdatedAt,
	}
}

// CreditCard converts a ccAsset account. ok is false when the account is
// not a credit card or has no monthly payment date.
func (a Account) CreditCard() (CreditCardAccount, bool) {
	if a.Role != RoleCreditCard || a.MonthlyPaymentDate == nil {
		return CreditCardAccount{}, false
	}
	return CreditCardAccount{
		ID:             a.ID,
		Name:           a.Name,
		CurrentBalance: a.CurrentBalance,
		SettlementDay:  a.MonthlyPaymentDate.Day(),
		Role:           a.Role,
		CardType:       a.CardType,
	}, true
}

// AccountSnapshot is the main account's known state at its last update.
type AccountSnapshot struct {
	ID      string
	Name    string
	Balance decimal.Decimal
	AsOf    time.Time
}

// CreditCardAccount is a card account that may settle against the main account.
type CreditCardAccount struct {
	ID             string
	Name           string
	CurrentBalance decimal.Decimal
	SettlementDay  int // 1-31
	Role           AccountRole
	CardType       CreditCardType
}

// IsMonthlyFull reports whether the card takes part in reconciliation.
func (c CreditCardAccount) IsMonthlyFull() bool {
	return c.Role == RoleCreditCard && c.CardType == CardMonthlyFull
}
