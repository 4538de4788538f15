package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/forecast/internal/model"
)

// page is one JSON:API response page.
type page struct {
	Data  []json.RawMessage `json:"data"`
	Links *pageLinks        `json:"links,omitempty"`
}

type pageLinks struct {
	Self  string `json:"self"`
	First string `json:"first"`
	Next  string `json:"next"`
	Last  string `json:"last"`
}

// next returns the URL of the following page, or "" on the last one.
func (p *page) next() string {
	if p.Links == nil || p.Links.Next == "" || p.Links.Self == p.Links.Last {
		return ""
	}
	return p.Links.Next
}

type accountRecord struct {
	ID         string `json:"id"`
	Attributes *struct {
		Name               string  `json:"name"`
		Type               string  `json:"type"`
		AccountRole        *string `json:"account_role"`
		CreditCardType     *string `json:"credit_card_type"`
		MonthlyPaymentDate *string `json:"monthly_payment_date"`
		CurrentBalance     string  `json:"current_balance"`
		UpdatedAt          string  `json:"updated_at"`
	} `json:"attributes"`
}

type transactionRecord struct {
	ID         string `json:"id"`
	Attributes struct {
		Transactions []splitRecord `json:"transactions"`
	} `json:"attributes"`
}

type splitRecord struct {
	Type          string `json:"type"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	SourceID      string `json:"source_id"`
	DestinationID string `json:"destination_id"`
}

type billRecord struct {
	ID         string `json:"id"`
	Attributes struct {
		Name              string  `json:"name"`
		AmountMax         string  `json:"amount_max"`
		RepeatFreq        string  `json:"repeat_freq"`
		Skip              int     `json:"skip"`
		NextExpectedMatch *string `json:"next_expected_match"`
	} `json:"attributes"`
}

// decodeAccount converts an account record. ok is false for records without
// a name, which the ledger returns for some system accounts.
func decodeAccount(raw json.RawMessage) (model.Account, bool, error) {
	var rec accountRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Account{}, false, fmt.Errorf("decoding account: %w", err)
	}
	if rec.Attributes == nil || rec.Attributes.Name == "" {
		return model.Account{}, false, nil
	}
	attrs := rec.Attributes

	balance, err := decimal.NewFromString(attrs.CurrentBalance)
	if err != nil {
		return model.Account{}, false, fmt.Errorf("account %s: parsing balance %q: %w", rec.ID, attrs.CurrentBalance, err)
	}
	updated, err := parseTime(attrs.UpdatedAt)
	if err != nil {
		return model.Account{}, false, fmt.Errorf("account %s: parsing updated_at: %w", rec.ID, err)
	}

	acct := model.Account{
		ID:             rec.ID,
		Name:           attrs.Name,
		Type:           model.AccountType(attrs.Type),
		Role:           model.AccountRole(deref(attrs.AccountRole)),
		CardType:       model.CreditCardType(deref(attrs.CreditCardType)),
		CurrentBalance: balance,
		UpdatedAt:      updated,
	}
	if pay := deref(attrs.MonthlyPaymentDate); pay != "" {
		d, err := parseTime(pay)
		if err != nil {
			return model.Account{}, false, fmt.Errorf("account %s: parsing monthly_payment_date: %w", rec.ID, err)
		}
		acct.MonthlyPaymentDate = &d
	}
	return acct, true, nil
}

func decodeTransactions(raw json.RawMessage) ([]model.Transaction, error) {
	var rec transactionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding transaction: %w", err)
	}
	splits := make([]model.Transaction, 0, len(rec.Attributes.Transactions))
	for i, s := range rec.Attributes.Transactions {
		amount, err := decimal.NewFromString(s.Amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %s split %d: parsing amount %q: %w", rec.ID, i, s.Amount, err)
		}
		date, err := parseTime(s.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %s split %d: parsing date: %w", rec.ID, i, err)
		}
		splits = append(splits, model.Transaction{
			Amount:        amount,
			Date:          date,
			Type:          model.TransactionType(s.Type),
			SourceID:      s.SourceID,
			DestinationID: s.DestinationID,
			Description:   s.Description,
		})
	}
	return splits, nil
}

func decodeBill(raw json.RawMessage) (model.Bill, error) {
	var rec billRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Bill{}, fmt.Errorf("decoding bill: %w", err)
	}
	attrs := rec.Attributes
	amount, err := decimal.NewFromString(attrs.AmountMax)
	if err != nil {
		return model.Bill{}, fmt.Errorf("bill %s: parsing amount_max %q: %w", rec.ID, attrs.AmountMax, err)
	}
	bill := model.Bill{
		Name:            attrs.Name,
		AmountMax:       amount,
		RepeatFrequency: model.RepeatFrequency(attrs.RepeatFreq),
		Skip:            attrs.Skip,
	}
	if next := deref(attrs.NextExpectedMatch); next != "" {
		d, err := parseTime(next)
		if err != nil {
			return model.Bill{}, fmt.Errorf("bill %s: parsing next_expected_match: %w", rec.ID, err)
		}
		bill.NextExpected = &d
	}
	return bill, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
