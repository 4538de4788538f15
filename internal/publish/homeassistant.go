package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/forecast/internal/model"
)

// ErrRejected is returned when Home Assistant answers with a non-2xx status.
var ErrRejected = errors.New("home assistant rejected state")

const (
	defaultCurrency = "EUR"
	defaultTimeout  = 10 * time.Second
	maxErrorBody    = 4 << 10
)

// HomeAssistant writes the prediction to a sensor entity through the Home
// Assistant REST API.
type HomeAssistant struct {
	baseURL  string
	token    string
	entityID string
	currency string
	http     *http.Client
	log      logrus.FieldLogger
}

// HomeAssistantOptions configures NewHomeAssistant.
type HomeAssistantOptions struct {
	URL      string
	Token    string
	EntityID string
	Currency string // defaults to EUR
	Timeout  time.Duration
	Logger   logrus.FieldLogger // nil discards
}

// NewHomeAssistant creates a sink for opts.EntityID.
func NewHomeAssistant(opts HomeAssistantOptions) *HomeAssistant {
	if opts.Currency == "" {
		opts.Currency = defaultCurrency
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
	return &HomeAssistant{
		baseURL:  strings.TrimRight(opts.URL, "/"),
		token:    opts.Token,
		entityID: opts.EntityID,
		currency: opts.Currency,
		http:     &http.Client{Timeout: opts.Timeout},
		log:      log,
	}
}

// sensorState is the body of POST /api/states/<entity_id>.
type sensorState struct {
	State      string          `json:"state"`
	Attributes sensorAttribute `json:"attributes"`
}

type sensorAttribute struct {
	NativeValue        string `json:"native_value"`
	NativeUnit         string `json:"native_unit_of_measurement"`
	StateClass         string `json:"state_class"`
	DeviceClass        string `json:"device_class"`
	CurrentBalanceDate string `json:"current_balance_date"`
	FutureTargetDate   string `json:"future_target_date"`
	RunID              string `json:"run_id,omitempty"`
}

func (h *HomeAssistant) state(runID string, p model.Prediction) sensorState {
	value := p.Balance.StringFixed(2)
	return sensorState{
		State: value,
		Attributes: sensorAttribute{
			NativeValue:        value,
			NativeUnit:         h.currency,
			StateClass:         "measurement",
			DeviceClass:        "monetary",
			CurrentBalanceDate: p.BasisDate.Format(time.DateOnly),
			FutureTargetDate:   p.TargetDate.Format(time.DateOnly),
			RunID:              runID,
		},
	}
}

// Publish implements Sink. The entity is created on first write.
func (h *HomeAssistant) Publish(ctx context.Context, runID string, p model.Prediction) error {
	body, err := json.Marshal(h.state(runID, p))
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	u := h.baseURL + "/api/states/" + url.PathEscape(h.entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting state for %s: %w", h.entityID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s: status %d: %s", ErrRejected, h.entityID, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	h.log.WithFields(logrus.Fields{
		"entity_id": h.entityID,
		"state":     p.Balance.StringFixed(2),
		"run_id":    runID,
	}).Info("published to home assistant")
	return nil
}
