package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/forecast/internal/model"
)

const (
	defaultPageLimit = 100
	defaultTimeout   = 30 * time.Second
	maxBodySize      = 8 << 20 // 8 MB
	queryDateFormat  = "2006-01-02"
)

// Firefly is a Client for the Firefly III REST API.
type Firefly struct {
	baseURL   string
	token     string
	pageLimit int
	http      *http.Client
	log       logrus.FieldLogger
}

// FireflyOptions configures NewFirefly.
type FireflyOptions struct {
	BaseURL   string
	Token     string
	PageLimit int
	Timeout   time.Duration
	Logger    logrus.FieldLogger // nil discards
}

// NewFirefly creates a client for the Firefly III instance at opts.BaseURL.
func NewFirefly(opts FireflyOptions) *Firefly {
	if opts.PageLimit <= 0 {
		opts.PageLimit = defaultPageLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Firefly{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		token:     opts.Token,
		pageLimit: opts.PageLimit,
		http:      &http.Client{Timeout: opts.Timeout},
		log:       log,
	}
}

// AssetAccounts lists all asset accounts.
func (f *Firefly) AssetAccounts(ctx context.Context) ([]model.Account, error) {
	var accts []model.Account
	for raw, err := range f.Records(ctx, f.path("/api/v1/accounts", url.Values{"type": {"asset"}})) {
		if err != nil {
			return nil, err
		}
		acct, ok, err := decodeAccount(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		if ok {
			accts = append(accts, acct)
		}
	}
	return accts, nil
}

// Transactions lists the splits of one account matching q.
func (f *Firefly) Transactions(ctx context.Context, accountID string, q TransactionQuery) ([]model.Transaction, error) {
	params := url.Values{}
	if q.Type != "" {
		params.Set("type", string(q.Type))
	}
	setWindow(params, q.Start, q.End)
	path := f.path("/api/v1/accounts/"+url.PathEscape(accountID)+"/transactions", params)
	return f.splits(ctx, path, q)
}

// Bills lists bills, with pay dates computed for [start, end].
func (f *Firefly) Bills(ctx context.Context, start, end time.Time) ([]model.Bill, error) {
	params := url.Values{}
	setWindow(params, start, end)

	var bills []model.Bill
	for raw, err := range f.Records(ctx, f.path("/api/v1/bills", params)) {
		if err != nil {
			return nil, err
		}
		bill, err := decodeBill(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		bills = append(bills, bill)
	}
	return bills, nil
}

// Transfers lists transfer splits dated within [start, end].
func (f *Firefly) Transfers(ctx context.Context, start, end time.Time) ([]model.Transfer, error) {
	params := url.Values{"type": {"transfers"}}
	setWindow(params, start, end)
	q := TransactionQuery{Type: model.TypeTransfer, Start: start, End: end}
	return f.splits(ctx, f.path("/api/v1/transactions", params), q)
}

func (f *Firefly) splits(ctx context.Context, path string, q TransactionQuery) ([]model.Transaction, error) {
	var txns []model.Transaction
	for raw, err := range f.Records(ctx, path) {
		if err != nil {
			return nil, err
		}
		splits, err := decodeTransactions(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		for _, s := range splits {
			if q.matches(s) {
				txns = append(txns, s)
			}
		}
	}
	return txns, nil
}

// Records yields the raw data records of a listing, following page links
// until the last page. The sequence is single-use; callers drain it before
// using the records. The first error ends the sequence.
func (f *Firefly) Records(ctx context.Context, path string) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		next := f.baseURL + path
		for next != "" {
			p, err := f.get(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range p.Data {
				if !yield(rec, nil) {
					return
				}
			}
			next = f.resolve(p.next())
		}
	}
}

// resolve makes a page link absolute against the base URL.
func (f *Firefly) resolve(link string) string {
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return f.baseURL + "/" + strings.TrimLeft(link, "/")
}

func (f *Firefly) path(p string, params url.Values) string {
	params.Set("limit", strconv.Itoa(f.pageLimit))
	return p + "?" + params.Encode()
}

func (f *Firefly) get(ctx context.Context, u string) (*page, error) {
	f.log.WithField("url", u).Debug("reading from ledger")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: GET %s: unexpected status %d", ErrUpstream, req.URL.Path, resp.StatusCode)
	}

	var p page
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrUpstream, req.URL.Path, err)
	}
	return &p, nil
}

func setWindow(params url.Values, start, end time.Time) {
	if !start.IsZero() {
		params.Set("start", start.Format(queryDateFormat))
	}
	if !end.IsZero() {
		params.Set("end", end.Format(queryDateFormat))
	}
}
