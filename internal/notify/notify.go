package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sollane/worldstate-watcher/internal/config"
)

// Dispatcher delivers one rendered message to a channel, mentioning the
// given owners. Implementations report per-channel failure through the
// returned error; callers must not let one channel's failure block
// delivery to others.
type Dispatcher interface {
	Send(ctx context.Context, channel string, mentions []string, body string) error
}

// Client pushes notifications over ntfy. Each delivery channel maps to
// the topic "<prefix>-<channel>".
type Client struct {
	httpClient *http.Client
	config     *config.NotifyConfig
	logger     *zap.Logger
}

func NewClient(cfg *config.NotifyConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
	}
}

// Send publishes the message to the channel's topic.
func (c *Client) Send(ctx context.Context, channel string, mentions []string, body string) error {
	topic := fmt.Sprintf("%s-%s", c.config.TopicPrefix, channel)
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.config.Server, "/"), topic)

	message := body
	if len(mentions) > 0 {
		message = FormatMentions(mentions) + "\n" + body
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Title", "Fissure alert")
	req.Header.Set("Priority", c.config.Priority)
	req.Header.Set("Tags", c.config.Tags)

	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to send notification",
			zap.String("channel", channel), zap.Error(err))
		return fmt.Errorf("sending notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain response body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notification failed",
			zap.Int("status", resp.StatusCode),
			zap.String("channel", channel),
		)
		return fmt.Errorf("notification failed with status: %d", resp.StatusCode)
	}

	c.logger.Debug("notification sent",
		zap.String("channel", channel),
		zap.Int("mentions", len(mentions)),
	)
	return nil
}

// NoopDispatcher swallows deliveries when notifications are disabled.
type NoopDispatcher struct{}

// Send is a no-op.
func (NoopDispatcher) Send(_ context.Context, _ string, _ []string, _ string) error {
	return nil
}

// New creates the appropriate dispatcher based on config.
func New(cfg *config.NotifyConfig, logger *zap.Logger) Dispatcher {
	if !cfg.Enabled {
		return NoopDispatcher{}
	}
	return NewClient(cfg, logger)
}
