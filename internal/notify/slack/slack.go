// Package slack implements the notify Adapter for Slack as an
// outbound-only message poster.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// apiClient abstracts the Slack API methods we use, enabling test mocks.
type apiClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter posts stale-bead alerts to one Slack channel.
type Adapter struct {
	client    apiClient
	channelID string
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client apiClient
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}

	a := &Adapter{channelID: opts.ChannelID, client: opts.Client}
	if a.client == nil {
		a.client = slackapi.New(opts.BotToken)
	}
	return a, nil
}

// Name identifies the adapter in logs.
func (a *Adapter) Name() string { return "slack" }

// Send posts text to the configured channel.
func (a *Adapter) Send(ctx context.Context, text string) error {
	_, _, err := a.client.PostMessageContext(ctx, a.channelID,
		slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}
