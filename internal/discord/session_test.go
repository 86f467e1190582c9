package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/nowplaying/internal/config"
	"github.com/jmylchreest/nowplaying/internal/presence"
)

type fakeGateway struct {
	updates []discordgo.UpdateStatusData
	sent    []string
	err     error
}

func (g *fakeGateway) UpdateStatusComplex(usd discordgo.UpdateStatusData) error {
	if g.err != nil {
		return g.err
	}
	g.updates = append(g.updates, usd)
	return nil
}

func (g *fakeGateway) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	g.sent = append(g.sent, channelID+":"+content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func testSession(bot bool) (*Session, *fakeGateway) {
	gw := &fakeGateway{}
	s := newSession(nil, config.DiscordConfig{CommandPrefix: "dms.", Bot: bot, Token: "t"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.gw = gw
	return s, gw
}

func TestStatusData_Cleared(t *testing.T) {
	usd := statusData(presence.State{Kind: presence.Cleared})

	assert.True(t, usd.AFK)
	assert.Equal(t, "invisible", usd.Status)
	assert.Empty(t, usd.Activities)
}

func TestStatusData_Announcing(t *testing.T) {
	usd := statusData(presence.State{Kind: presence.Announcing, Title: "Artist - Title"})

	assert.True(t, usd.AFK)
	assert.Equal(t, "idle", usd.Status)
	require.Len(t, usd.Activities, 1)
	assert.Equal(t, "Artist - Title", usd.Activities[0].Name)
	assert.Equal(t, discordgo.ActivityTypeListening, usd.Activities[0].Type)
}

func TestPublish(t *testing.T) {
	s, gw := testSession(true)

	err := s.Publish(context.Background(), presence.State{Kind: presence.Announcing, Title: "Artist - Title"})
	require.NoError(t, err)
	require.Len(t, gw.updates, 1)
	assert.Equal(t, "idle", gw.updates[0].Status)

	gw.err = errors.New("websocket closed")
	assert.Error(t, s.Publish(context.Background(), presence.State{}))
}

func TestPublish_CancelledContext(t *testing.T) {
	s, gw := testSession(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Publish(ctx, presence.State{}), context.Canceled)
	assert.Empty(t, gw.updates)
}

func TestWaitReady(t *testing.T) {
	s, _ := testSession(true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitReady(ctx), context.DeadlineExceeded)

	s.handleReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "42", Username: "listener"}})
	// A reconnect delivers Ready again
	s.handleReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "42", Username: "listener"}})

	assert.NoError(t, s.WaitReady(context.Background()))
}

func TestReady_RestoresLastPresence(t *testing.T) {
	s, gw := testSession(true)
	ready := &discordgo.Ready{User: &discordgo.User{ID: "42", Username: "listener"}}

	// Nothing published yet, nothing to restore
	s.handleReady(nil, ready)
	assert.Empty(t, gw.updates)

	require.NoError(t, s.Publish(context.Background(), presence.State{Kind: presence.Announcing, Title: "Artist - Title"}))
	require.Len(t, gw.updates, 1)

	// Reconnect with a fresh identify
	s.handleReady(nil, ready)
	require.Len(t, gw.updates, 2)
	assert.Equal(t, gw.updates[0], gw.updates[1])
	assert.Equal(t, "Artist - Title", gw.updates[1].Activities[0].Name)
}

func TestReady_FailedPublishIsNotRestored(t *testing.T) {
	s, gw := testSession(true)

	gw.err = errors.New("websocket closed")
	require.Error(t, s.Publish(context.Background(), presence.State{Kind: presence.Announcing, Title: "Artist - Title"}))
	gw.err = nil

	s.handleReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "42"}})
	assert.Empty(t, gw.updates)
}

func TestWaitReady_Closed(t *testing.T) {
	s, _ := testSession(true)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.WaitReady(context.Background()), ErrClosed)
	assert.NoError(t, s.Close())
}

func TestQuitCommand_Bot(t *testing.T) {
	s, gw := testSession(true)
	quits := 0
	s.SetQuitHandler(func() { quits++ })

	s.handleMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "c1", Content: "dms.quit", Author: &discordgo.User{ID: "7"},
	}})
	assert.Equal(t, 1, quits)
	assert.Equal(t, []string{"c1:Logging out..."}, gw.sent)

	// Other bots and other commands are ignored
	s.handleMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "c1", Content: "dms.quit", Author: &discordgo.User{ID: "8", Bot: true},
	}})
	s.handleMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "c1", Content: "dms.help", Author: &discordgo.User{ID: "7"},
	}})
	assert.Equal(t, 1, quits)
}

func TestQuitCommand_UserAccountOnlyObeysItself(t *testing.T) {
	s, _ := testSession(false)
	quits := 0
	s.SetQuitHandler(func() { quits++ })

	msg := func(authorID string) *discordgo.MessageCreate {
		return &discordgo.MessageCreate{Message: &discordgo.Message{
			ChannelID: "c1", Content: "dms.quit", Author: &discordgo.User{ID: authorID},
		}}
	}

	// Before Ready the account's own ID is unknown
	s.handleMessage(nil, msg("42"))
	assert.Equal(t, 0, quits)

	s.handleReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "42", Username: "me"}})

	s.handleMessage(nil, msg("99"))
	assert.Equal(t, 0, quits)

	s.handleMessage(nil, msg("42"))
	assert.Equal(t, 1, quits)
}

func TestNewSession_TokenPrefix(t *testing.T) {
	s, err := NewSession(config.DiscordConfig{CommandPrefix: "dms.", Bot: true, Token: "abc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bot abc", s.dg.Token)

	s, err = NewSession(config.DiscordConfig{CommandPrefix: "dms.", Bot: false, Token: "abc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", s.dg.Token)
}

func TestAuthError(t *testing.T) {
	inner := errors.New("websocket: close 4004: Authentication failed.")
	err := error(&AuthError{Err: inner})

	var aerr *AuthError
	require.True(t, errors.As(err, &aerr))
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "check token")
}
