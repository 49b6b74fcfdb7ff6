package alerter

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"NetSentry/internal/config"
	"NetSentry/internal/model"

	zlog "github.com/rs/zerolog/log"
)

// StatsProvider exposes the pipeline counters the alerter evaluates.
type StatsProvider interface {
	Stats() model.Stats
}

// Alerter periodically compares the verdict counters accumulated since the previous
// check against threshold rules and sends one consolidated notification when any
// rule triggers.
type Alerter struct {
	source        StatsProvider
	rules         []config.AlerterRule
	notifier      model.Notifier
	checkInterval time.Duration

	stopChan chan struct{}
	done     chan struct{}
	started  atomic.Bool

	mu   sync.Mutex
	last model.Stats
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg *config.AlerterConfig, source StatsProvider, notifier model.Notifier) (*Alerter, error) {
	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval for alerter: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("alerter check_interval must be positive")
	}
	for _, rule := range cfg.Rules {
		if _, ok := metricValue(model.Stats{}, rule.Metric); !ok {
			return nil, fmt.Errorf("alerter rule '%s' uses unknown metric '%s'", rule.Name, rule.Metric)
		}
	}

	return &Alerter{
		source:        source,
		rules:         cfg.Rules,
		notifier:      notifier,
		checkInterval: interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
		last:          source.Stats(),
	}, nil
}

// Start runs the evaluation loop until Stop is called.
func (a *Alerter) Start() {
	a.started.Store(true)
	defer close(a.done)
	zlog.Info().Dur("interval", a.checkInterval).Msg("Alerter started")

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Evaluate()
		case <-a.stopChan:
			return
		}
	}
}

// Stop ends the loop and runs a final evaluation over the remaining counters.
func (a *Alerter) Stop() {
	zlog.Info().Msg("Stopping Alerter...")
	close(a.stopChan)
	if a.started.Load() {
		<-a.done
	}
	a.Evaluate()
}

// Evaluate checks every rule against the counter deltas since the previous call and
// returns the triggered alert messages.
func (a *Alerter) Evaluate() []string {
	a.mu.Lock()
	current := a.source.Stats()
	delta := diff(current, a.last)
	a.last = current
	a.mu.Unlock()

	var messages []string
	for _, rule := range a.rules {
		value, _ := metricValue(delta, rule.Metric)
		if !check(value, rule.Threshold, rule.Operator) {
			continue
		}
		messages = append(messages, fmt.Sprintf("<h3>Alert: %s</h3>"+
			"<ul>"+
			"<li><b>Metric:</b> <code>%s</code></li>"+
			"<li><b>Condition:</b> <code>%s %.2f</code></li>"+
			"<li><b>Observed Value:</b> <code>%.0f</code> in the last %s</li>"+
			"</ul>",
			rule.Name, rule.Metric, rule.Operator, rule.Threshold, value, a.checkInterval))
	}

	if len(messages) == 0 {
		return nil
	}
	zlog.Warn().Int("alerts", len(messages)).Msg("Alerter evaluation triggered alerts")

	body := "<h1>NetSentry Alert Summary</h1>" +
		"<p>The following alerts were triggered during the last check:</p><hr>" +
		strings.Join(messages, "<hr>")

	if a.notifier != nil {
		subject := fmt.Sprintf("NetSentry Alert Summary (%d Triggered)", len(messages))
		if err := a.notifier.Send(subject, body); err != nil {
			zlog.Error().Err(err).Msg("Failed to send consolidated alert notification")
		} else {
			zlog.Info().Msg("Consolidated alert notification sent successfully")
		}
	}
	return messages
}

func diff(cur, prev model.Stats) model.Stats {
	return model.Stats{
		Processed:        cur.Processed - prev.Processed,
		Malicious:        cur.Malicious - prev.Malicious,
		Benign:           cur.Benign - prev.Benign,
		KnownBadHits:     cur.KnownBadHits - prev.KnownBadHits,
		ProcessingErrors: cur.ProcessingErrors - prev.ProcessingErrors,
		Dropped:          cur.Dropped - prev.Dropped,
	}
}

func metricValue(s model.Stats, metric string) (float64, bool) {
	switch metric {
	case "processed_packets":
		return float64(s.Processed), true
	case "malicious_verdicts":
		return float64(s.Malicious), true
	case "benign_verdicts":
		return float64(s.Benign), true
	case "known_bad_hits":
		return float64(s.KnownBadHits), true
	case "processing_errors":
		return float64(s.ProcessingErrors), true
	case "dropped_packets":
		return float64(s.Dropped), true
	default:
		return 0, false
	}
}

// check compares a value against a threshold based on an operator.
func check(value, threshold float64, operator string) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case "=":
		return value == threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		zlog.Warn().Str("operator", operator).Msg("Unknown operator in alerter rule")
		return false
	}
}
