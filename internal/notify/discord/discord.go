// Package discord implements the notify Adapter for Discord as an
// outbound-only message poster over the REST API; no Gateway connection
// is needed just to send.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Adapter posts stale-bead alerts to one Discord channel.
type Adapter struct {
	sess      session
	channelID string
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of a real one.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}

	a := &Adapter{channelID: opts.ChannelID, sess: opts.Session}
	if a.sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		a.sess = s
	}
	return a, nil
}

// Name identifies the adapter in logs.
func (a *Adapter) Name() string { return "discord" }

// Send posts text to the configured channel.
func (a *Adapter) Send(ctx context.Context, text string) error {
	if _, err := a.sess.ChannelMessageSend(a.channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}
