// Package notify delivers engine events to an external webhook.
package notify

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// Kind classifies webhook events.
type Kind string

const (
	KindOrderAlert       Kind = "order_alert"
	KindHedgeDeployed    Kind = "hedge_deployed"
	KindIdentityConflict Kind = "identity_conflict"
	KindEmergencyClose   Kind = "emergency_close"
)

// Event is the JSON payload posted to the webhook.
type Event struct {
	Kind    Kind    `json:"kind"`
	Side    string  `json:"side,omitempty"`
	Comment string  `json:"comment,omitempty"`
	Volume  float64 `json:"volume,omitempty"`
	Profit  float64 `json:"profit,omitempty"`
	Detail  string  `json:"detail,omitempty"`
	Ts      string  `json:"ts"`
}

// Notifier publishes engine events. Implementations must not block the caller.
type Notifier interface {
	Publish(Event)
}

// Nop drops every event. Used when no webhook URL is configured.
type Nop struct{}

// Publish implements Notifier.
func (Nop) Publish(Event) {}

// Webhook posts events to a configured URL, retrying transient failures.
type Webhook struct {
	client *resty.Client
	url    string
	logger *log.Logger
}

// NewWebhook builds a webhook notifier for url. Deliveries run in the
// background so the tick path is never blocked on the network.
func NewWebhook(url string, timeout time.Duration, logger *log.Logger) *Webhook {
	if logger == nil {
		logger = log.New(os.Stderr, "notify: ", log.LstdFlags)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(250 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Webhook{client: client, url: url, logger: logger}
}

// Publish delivers ev asynchronously, stamping Ts when unset.
func (w *Webhook) Publish(ev Event) {
	if ev.Ts == "" {
		ev.Ts = time.Now().UTC().Format(time.RFC3339Nano)
	}
	go w.deliver(ev)
}

func (w *Webhook) deliver(ev Event) {
	resp, err := w.client.R().SetBody(ev).Post(w.url)
	if err != nil {
		w.logger.Printf("[NOTIFY] webhook delivery failed: %v", err)
		return
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		w.logger.Printf("[NOTIFY] webhook returned %d", resp.StatusCode())
	}
}

// Compile-time interface checks.
var (
	_ Notifier = Nop{}
	_ Notifier = (*Webhook)(nil)
)
