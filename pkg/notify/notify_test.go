package notify

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

type fakeDiscord struct {
	channel string
	content []string
}

func (f *fakeDiscord) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel = channelID
	f.content = append(f.content, content)
	return &discordgo.Message{}, nil
}

func TestTelegramSink(t *testing.T) {
	api := &fakeTelegram{}
	sink := &TelegramSink{API: api, ChatID: 42}

	sink.Notify(Warnf("Invalid recurrence rule: %q", "sometimes"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(42), api.sent[0].ChatID)
	assert.Equal(t, `⚠️ Invalid recurrence rule: "sometimes"`, api.sent[0].Text)
}

func TestTelegramSinkLogsSendFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := &TelegramSink{API: &fakeTelegram{err: errors.New("boom")}, ChatID: 1, Logger: logger}

	sink.Notify(Infof("hello"))

	assert.Contains(t, buf.String(), "failed to send Telegram message")
}

func TestDiscordSink(t *testing.T) {
	dg := &fakeDiscord{}
	sink := &DiscordSink{Session: dg, ChannelID: "chan-1"}

	sink.Notify(Errorf("boom"))
	sink.Notify(Infof("ok"))

	assert.Equal(t, "chan-1", dg.channel)
	assert.Equal(t, []string{"❌ boom", "ℹ️ ok"}, dg.content)
	assert.NoError(t, sink.Close())
}

func TestMultiAndMinSeverity(t *testing.T) {
	all := &Recorder{}
	important := &Recorder{}
	sink := Multi{all, MinSeverity{Min: Warn, Next: important}, nil}

	sink.Notify(Infof("info"))
	sink.Notify(Warnf("warn"))
	sink.Notify(Errorf("error"))

	assert.Len(t, all.All(), 3)
	got := important.All()
	require.Len(t, got, 2)
	assert.Equal(t, Warn, got[0].Severity)
	assert.Equal(t, Error, got[1].Severity)

	all.Reset()
	assert.Empty(t, all.All())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	sink.Notify(Errorf("could not archive %s", "a.md"))

	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "could not archive a.md")
}
