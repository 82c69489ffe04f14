package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

// WebhookSink POSTs the notification as JSON to a fixed URL.
type WebhookSink struct {
	client *resty.Client
	url    string
}

// NewWebhookSink builds a webhook sink with the given per-request timeout.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	client := resty.New().SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &WebhookSink{client: client, url: url}
}

// Send posts n.
func (s *WebhookSink) Send(ctx context.Context, n Notification) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(n).
		Post(s.url)
	if err != nil {
		return apperrors.NewNotificationDeliveryError("webhook", err)
	}
	if resp.IsError() {
		return apperrors.NewNotificationDeliveryError("webhook",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), resp.String()))
	}
	return nil
}

// SlackSink posts to a channel via chat.postMessage using a bot token.
type SlackSink struct {
	client  *resty.Client
	url     string
	channel string
}

// NewSlackSink builds a Slack sink. channel is used when the notification
// does not name one.
func NewSlackSink(token, channel string, timeout time.Duration) *SlackSink {
	client := resty.New().SetAuthToken(token)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &SlackSink{client: client, url: slackPostMessageURL, channel: channel}
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Send posts n. Slack reports failures with HTTP 200 and ok=false.
func (s *SlackSink) Send(ctx context.Context, n Notification) error {
	channel := s.channel
	if n.Channel != "" {
		channel = n.Channel
	}

	var result slackResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"channel": channel,
			"text":    n.Text(),
		}).
		SetResult(&result).
		Post(s.url)
	if err != nil {
		return apperrors.NewNotificationDeliveryError("slack", err)
	}
	if resp.IsError() {
		return apperrors.NewNotificationDeliveryError("slack", fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}
	if !result.OK {
		return apperrors.NewNotificationDeliveryError("slack", fmt.Errorf("slack error: %s", result.Error))
	}
	return nil
}
