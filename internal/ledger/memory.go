package ledger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/forecast/internal/model"
)

// Memory is a Client over fixed records. It backs offline runs and tests.
type Memory struct {
	Accounts     []model.Account
	Transactions map[string][]model.Transaction // by account ID
	BillList     []model.Bill
	TransferList []model.Transfer

	// Err, when set, is returned by every call.
	Err error
	// Calls counts queries by method name.
	Calls map[string]int

	mu sync.Mutex
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		Transactions: make(map[string][]model.Transaction),
		Calls:        make(map[string]int),
	}
}

// AssetAccounts lists all accounts.
func (m *Memory) AssetAccounts(_ context.Context) ([]model.Account, error) {
	if err := m.call("AssetAccounts"); err != nil {
		return nil, err
	}
	return append([]model.Account(nil), m.Accounts...), nil
}

// Transactions lists the account's splits matching q.
func (m *Memory) Transactions(_ context.Context, accountID string, q TransactionQuery) ([]model.Transaction, error) {
	if err := m.call("Transactions"); err != nil {
		return nil, err
	}
	var out []model.Transaction
	for _, t := range m.Transactions[accountID] {
		if q.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Bills lists all bills regardless of the window, as the ledger does.
func (m *Memory) Bills(_ context.Context, _, _ time.Time) ([]model.Bill, error) {
	if err := m.call("Bills"); err != nil {
		return nil, err
	}
	return append([]model.Bill(nil), m.BillList...), nil
}

// Transfers lists transfers dated within [start, end].
func (m *Memory) Transfers(_ context.Context, start, end time.Time) ([]model.Transfer, error) {
	if err := m.call("Transfers"); err != nil {
		return nil, err
	}
	var out []model.Transfer
	for _, t := range m.TransferList {
		if inWindow(t.Date, start, end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) call(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[name]++
	if m.Err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, m.Err)
	}
	return nil
}

// Fixture is the YAML layout of an offline ledger snapshot.
type Fixture struct {
	Accounts []struct {
		ID                 string          `yaml:"id"`
		Name               string          `yaml:"name"`
		Role               string          `yaml:"role"`
		CardType           string          `yaml:"credit_card_type"`
		Balance            decimal.Decimal `yaml:"balance"`
		UpdatedAt          time.Time       `yaml:"updated_at"`
		MonthlyPaymentDate *time.Time      `yaml:"monthly_payment_date"`
	} `yaml:"accounts"`
	Transactions []struct {
		Account     string          `yaml:"account"`
		Type        string          `yaml:"type"`
		Date        time.Time       `yaml:"date"`
		Amount      decimal.Decimal `yaml:"amount"`
		Source      string          `yaml:"source"`
		Destination string          `yaml:"destination"`
		Description string          `yaml:"description"`
	} `yaml:"transactions"`
	Bills []struct {
		Name         string          `yaml:"name"`
		NextExpected *time.Time      `yaml:"next_expected"`
		AmountMax    decimal.Decimal `yaml:"amount_max"`
		Repeat       string          `yaml:"repeat_freq"`
		Skip         int             `yaml:"skip"`
	} `yaml:"bills"`
}

// LoadFixture reads a YAML ledger snapshot into a Memory client.
//
// Transactions of type transfer are listed as transfers and also on the
// source and destination accounts; other types are listed on Account.
func LoadFixture(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}

	m := NewMemory()
	for _, a := range fx.Accounts {
		role := model.AccountRole(a.Role)
		if role == "" {
			role = model.RoleDefault
		}
		m.Accounts = append(m.Accounts, model.Account{
			ID:                 a.ID,
			Name:               a.Name,
			Type:               model.AccountTypeAsset,
			Role:               role,
			CardType:           model.CreditCardType(a.CardType),
			CurrentBalance:     a.Balance,
			UpdatedAt:          a.UpdatedAt,
			MonthlyPaymentDate: a.MonthlyPaymentDate,
		})
	}
	for i, t := range fx.Transactions {
		txn := model.Transaction{
			Amount:        t.Amount,
			Date:          t.Date,
			Type:          model.TransactionType(t.Type),
			SourceID:      t.Source,
			DestinationID: t.Destination,
			Description:   t.Description,
		}
		switch txn.Type {
		case model.TypeTransfer:
			m.TransferList = append(m.TransferList, txn)
			m.Transactions[txn.SourceID] = append(m.Transactions[txn.SourceID], txn)
			m.Transactions[txn.DestinationID] = append(m.Transactions[txn.DestinationID], txn)
		case model.TypeDeposit, model.TypeWithdrawal:
			if t.Account == "" {
				return nil, fmt.Errorf("fixture transaction %d: account is required", i)
			}
			m.Transactions[t.Account] = append(m.Transactions[t.Account], txn)
		default:
			return nil, fmt.Errorf("fixture transaction %d: unknown type %q", i, t.Type)
		}
	}
	for _, b := range fx.Bills {
		m.BillList = append(m.BillList, model.Bill{
			Name:            b.Name,
			NextExpected:    b.NextExpected,
			AmountMax:       b.AmountMax,
			RepeatFrequency: model.RepeatFrequency(b.Repeat),
			Skip:            b.Skip,
		})
	}
	return m, nil
}
