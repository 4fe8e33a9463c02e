package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"showrunner/internal/config"
)

const userAgent = "Showrunner-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRunStarted(ctx context.Context, date, topic string) error
	NotifyRunCompleted(ctx context.Context, date, decision string, cost float64, duration time.Duration) error
	NotifyRunFailed(ctx context.Context, date, stageLabel string, err error) error
	NotifyReviewNeeded(ctx context.Context, date, reason string, issueCount int) error
	NotifyTopicQueued(ctx context.Context, topic, targetDate string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     endpoint,
		client:       &http.Client{Timeout: timeout},
		runLifecycle: cfg.Notifications.RunLifecycle,
		reviewAlerts: cfg.Notifications.ReviewAlerts,
		errors:       cfg.Notifications.Errors,
		dedupWindow:  time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		lastSent:     make(map[string]time.Time),
		now:          time.Now,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	runLifecycle bool
	reviewAlerts bool
	errors       bool

	dedupWindow time.Duration
	mu          sync.Mutex
	lastSent    map[string]time.Time
	now         func() time.Time
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, date, topic string) error {
	if !n.runLifecycle {
		return nil
	}
	message := fmt.Sprintf("Pipeline run started for %s", strings.TrimSpace(date))
	if topic = strings.TrimSpace(topic); topic != "" {
		message = fmt.Sprintf("%s\nTopic: %s", message, topic)
	}
	return n.send(ctx, payload{
		title:   "Showrunner - Run Started",
		message: message,
		tags:    []string{"showrunner", "run", "started"},
	})
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, date, decision string, cost float64, duration time.Duration) error {
	if !n.runLifecycle {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	message := fmt.Sprintf("Run %s complete in %s\nDecision: %s\nSpend: $%.2f",
		strings.TrimSpace(date), duration, strings.TrimSpace(decision), cost)
	return n.send(ctx, payload{
		title:    "Showrunner - Run Complete",
		message:  message,
		tags:     []string{"showrunner", "run", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, date, stageLabel string, err error) error {
	if !n.runLifecycle {
		return nil
	}
	message := fmt.Sprintf("Run %s failed at %s", strings.TrimSpace(date), strings.TrimSpace(stageLabel))
	if err != nil {
		message = fmt.Sprintf("%s\n%s", message, strings.TrimSpace(err.Error()))
	}
	return n.send(ctx, payload{
		title:    "Showrunner - Run Failed",
		message:  message,
		tags:     []string{"showrunner", "run", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyReviewNeeded(ctx context.Context, date, reason string, issueCount int) error {
	if !n.reviewAlerts {
		return nil
	}
	message := fmt.Sprintf("Run %s needs human review: %s", strings.TrimSpace(date), strings.TrimSpace(reason))
	if issueCount > 1 {
		message = fmt.Sprintf("%s (%d issues)", message, issueCount)
	}
	return n.send(ctx, payload{
		title:    "Showrunner - Review Needed",
		message:  message,
		tags:     []string{"showrunner", "review", "pending"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyTopicQueued(ctx context.Context, topic, targetDate string) error {
	if !n.runLifecycle {
		return nil
	}
	message := fmt.Sprintf("Topic queued for retry on %s: %s",
		strings.TrimSpace(targetDate), strings.TrimSpace(topic))
	return n.send(ctx, payload{
		title:   "Showrunner - Topic Queued",
		message: message,
		tags:    []string{"showrunner", "topic", "queued"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Showrunner - Error",
		message:  builder.String(),
		tags:     []string{"showrunner", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Showrunner - Test",
		message:  "Notification system test",
		tags:     []string{"showrunner", "test"},
		priority: "low",
	})
}

// suppressed implements the configured dedup window: identical messages
// inside the window are dropped so a flapping stage cannot flood the topic.
func (n *ntfyService) suppressed(message string) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	if last, ok := n.lastSent[message]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	n.lastSent[message] = now
	return false
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if n.suppressed(data.message) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, string) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, string, float64, time.Duration) error {
	return nil
}
func (noopService) NotifyRunFailed(context.Context, string, string, error) error  { return nil }
func (noopService) NotifyReviewNeeded(context.Context, string, string, int) error { return nil }
func (noopService) NotifyTopicQueued(context.Context, string, string) error       { return nil }
func (noopService) NotifyError(context.Context, error, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
