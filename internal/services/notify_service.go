package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/fited/stocktrack/internal/models"
	"github.com/fited/stocktrack/internal/utils"
)

// AlertProvider delivers a low-stock alert. Implementations are
// best-effort; the engine never fails an adjustment over a delivery
// problem.
type AlertProvider interface {
	PostAlert(ctx context.Context, title, body string) error
}

// NoOpProvider drops alerts. Used when no webhook is configured and in
// tests.
type NoOpProvider struct{}

func (p *NoOpProvider) PostAlert(ctx context.Context, title, body string) error {
	return nil
}

// WebhookProvider posts alerts to a configured webhook as a small JSON
// payload.
type WebhookProvider struct {
	URL    string
	Client *http.Client
}

// NewWebhookProvider constructs a provider with a short request timeout
func NewWebhookProvider(url string) *WebhookProvider {
	return &WebhookProvider{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (p *WebhookProvider) PostAlert(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(map[string]string{
		"title": title,
		"text":  body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Alert is the current outstanding low-stock alert for one material
type Alert struct {
	Material  models.MaterialType `json:"material"`
	Quantity  int                 `json:"quantity"`
	Threshold int                 `json:"threshold"`
	RaisedAt  time.Time           `json:"raised_at"`
}

// Notifier raises low-stock alerts. Alerts are keyed by material: a
// re-raise for the same material replaces the previous one rather than
// stacking. Delivery failures are logged and swallowed.
type Notifier struct {
	Provider AlertProvider

	readyOnce sync.Once

	mu     sync.Mutex
	active map[models.MaterialType]Alert
}

// NewNotifier builds a notifier over the given provider
func NewNotifier(provider AlertProvider) *Notifier {
	if provider == nil {
		provider = &NoOpProvider{}
	}
	return &Notifier{
		Provider: provider,
		active:   make(map[models.MaterialType]Alert),
	}
}

// NotifyIfLow raises an alert when quantity is at or below the
// threshold. Each crossing re-raises; there is no cooldown window.
func (n *Notifier) NotifyIfLow(material models.MaterialType, quantity, threshold int) {
	if quantity > threshold {
		// Back above threshold, clear any outstanding alert
		n.mu.Lock()
		delete(n.active, material)
		n.mu.Unlock()
		return
	}

	n.ensureReady()

	alert := Alert{
		Material:  material,
		Quantity:  quantity,
		Threshold: threshold,
		RaisedAt:  time.Now().UTC(),
	}

	n.mu.Lock()
	n.active[material] = alert
	n.mu.Unlock()

	title := fmt.Sprintf("Low stock: %s", material)
	body := fmt.Sprintf("%s is at %d (threshold %d)", material, quantity, threshold)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := n.Provider.PostAlert(ctx, title, body); err != nil {
		log.Printf("low-stock alert delivery failed for %s: %v", material, err)
	}
}

// ActiveAlerts returns the outstanding alerts, at most one per material
func (n *Notifier) ActiveAlerts() []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Alert, 0, len(n.active))
	for _, m := range models.Materials {
		if a, ok := n.active[m]; ok {
			out = append(out, a)
		}
	}
	return out
}

// ensureReady probes the delivery channel once, the first time an alert
// fires. An unreachable webhook only logs; alerts stay best-effort.
func (n *Notifier) ensureReady() {
	n.readyOnce.Do(func() {
		wp, ok := n.Provider.(*WebhookProvider)
		if !ok {
			return
		}
		if err := utils.PingWebhook(wp.URL); err != nil {
			log.Printf("alert webhook unreachable: %v", err)
		}
	})
}
