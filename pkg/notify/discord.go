package notify

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// DiscordSender is the part of a Discord session used by DiscordSink.
type DiscordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink posts notifications to one Discord channel.
type DiscordSink struct {
	Session   DiscordSender
	ChannelID string
	Logger    *slog.Logger
}

// NewDiscordSink opens a bot session for token and targets channelID.
func NewDiscordSink(token, channelID string, logger *slog.Logger) (*DiscordSink, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	return &DiscordSink{Session: dg, ChannelID: channelID, Logger: logger}, nil
}

func (s *DiscordSink) Notify(n Notification) {
	if _, err := s.Session.ChannelMessageSend(s.ChannelID, format(n)); err != nil {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("notify: failed to send Discord message", "channel_id", s.ChannelID, "err", err)
	}
}

// Close closes the underlying session when it is a real Discord session.
func (s *DiscordSink) Close() error {
	if dg, ok := s.Session.(*discordgo.Session); ok {
		return dg.Close()
	}
	return nil
}
