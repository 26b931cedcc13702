package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	alertapp "github.com/Moori-Sense/Backend/internal/alerts/application"
	alerts "github.com/Moori-Sense/Backend/internal/alerts/domain"
)

// Event is one alert episode change handed to a notifier.
type Event struct {
	Kind  string
	Alert alerts.Alert
}

// Notifier reacts to alert episode changes.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Clock provides time for the dedupe window.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// AlertNotifier renders alert transitions and sends them through a
// channel, suppressing repeats within the cooldown window.
type AlertNotifier struct {
	channel  Channel
	template *Template
	logger   *log.Logger
	clock    Clock

	mu       sync.Mutex
	sent     map[string]sendRecord
	cooldown time.Duration
}

// Option configures the notifier.
type Option func(*AlertNotifier)

// WithCooldown sets a minimum interval between identical notifications
// for the same alert and event kind.
func WithCooldown(interval time.Duration) Option {
	return func(n *AlertNotifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithNotifierClock overrides the default clock.
func WithNotifierClock(clock Clock) Option {
	return func(n *AlertNotifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// NewAlertNotifier constructs an alert notifier.
func NewAlertNotifier(channel Channel, template *Template, logger *log.Logger, opts ...Option) (*AlertNotifier, error) {
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	if logger == nil {
		logger = log.Default()
	}
	n := &AlertNotifier{
		channel:  channel,
		template: template,
		logger:   logger,
		clock:    systemClock{},
		sent:     make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify renders and sends one alert transition. Send failures are
// logged; notification is best-effort and never blocks ingestion.
func (n *AlertNotifier) Notify(ctx context.Context, event Event) {
	if n == nil || n.channel == nil {
		return
	}
	content, err := n.template.Render(buildTemplateData(event))
	if err != nil {
		n.logger.Printf("notify: render failed: alert=%s err=%v", event.Alert.ID, err)
		return
	}
	if !n.shouldSend(event.Alert.ID, event.Kind, content) {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		n.logger.Printf("notify: send failed: alert=%s err=%v", event.Alert.ID, err)
		return
	}
	n.markSent(event.Alert.ID, event.Kind, content)
}

func (n *AlertNotifier) shouldSend(alertID, kind, content string) bool {
	if n.cooldown <= 0 {
		return true
	}
	key := alertID + "|" + kind
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	return record.hash != hash || now.Sub(record.at) >= n.cooldown
}

func (n *AlertNotifier) markSent(alertID, kind, content string) {
	n.mu.Lock()
	n.sent[alertID+"|"+kind] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func buildTemplateData(event Event) TemplateData {
	alert := event.Alert
	lineName := alert.LineID
	raisedAt := alert.CreatedAt
	if raisedAt.IsZero() {
		raisedAt = alert.UpdatedAt
	}
	return TemplateData{
		Line:       lineName,
		LineID:     alert.LineID,
		Type:       alert.Type,
		Severity:   alert.Severity,
		Value:      fmt.Sprintf("%.2f", alert.LastValue),
		Message:    alert.Message,
		RaisedAt:   raisedAt.UTC().Format(time.RFC3339),
		Event:      event.Kind,
		EventLabel: eventLabel(event.Kind),
		Suggestion: suggestionFor(alert.Severity),
	}
}

func eventLabel(kind string) string {
	switch kind {
	case alertapp.EventCreated:
		return "Triggered"
	case alertapp.EventEscalated:
		return "Escalated"
	case alertapp.EventResolved:
		return "Resolved"
	default:
		return kind
	}
}

func suggestionFor(severity string) string {
	switch strings.TrimSpace(strings.ToUpper(severity)) {
	case alerts.SeverityCritical, alerts.SeverityHigh:
		return "Inspect the line immediately and reduce load."
	case alerts.SeverityMedium:
		return "Verify the condition and schedule an inspection."
	default:
		return "Monitor the line condition."
	}
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

// Multi fans events out to several notifiers.
type Multi struct {
	notifiers []Notifier
}

// NewMulti constructs a Multi.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify forwards the event to every notifier.
func (m *Multi) Notify(ctx context.Context, event Event) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
