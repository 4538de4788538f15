package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/cleared-dev/forecast/internal/ledger"
	"github.com/cleared-dev/forecast/internal/model"
)

// ErrNotFound is returned when no account has the requested name.
var ErrNotFound = errors.New("account not found")

// Service provides in-memory lookup over the ledger's asset accounts.
type Service struct {
	accounts []model.Account
}

// NewService creates a Service from a slice of accounts.
func NewService(accounts []model.Account) *Service {
	return &Service{accounts: accounts}
}

// Load fetches the asset accounts from the ledger and returns a Service.
func Load(ctx context.Context, client ledger.Client) (*Service, error) {
	accts, err := client.AssetAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing asset accounts: %w", err)
	}
	return NewService(accts), nil
}

// ByName returns the first account with exactly the given name.
func (s *Service) ByName(name string) (model.Account, error) {
	for _, a := range s.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return model.Account{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// ByRole returns all accounts with the given role.
func (s *Service) ByRole(role model.AccountRole) []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.Role == role {
			result = append(result, a)
		}
	}
	return result
}

// MonthlyFullCards returns the credit cards that settle in full each month.
func (s *Service) MonthlyFullCards() []model.CreditCardAccount {
	var cards []model.CreditCardAccount
	for _, a := range s.ByRole(model.RoleCreditCard) {
		if card, ok := a.CreditCard(); ok && card.IsMonthlyFull() {
			cards = append(cards, card)
		}
	}
	return cards
}
