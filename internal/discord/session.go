// Package discord connects to the Discord gateway and exposes the session
// as a presence publisher.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/jmylchreest/nowplaying/internal/config"
	"github.com/jmylchreest/nowplaying/internal/presence"
)

// QuitCommand is the command name, after the prefix, that logs out.
const QuitCommand = "quit"

// AuthError reports a failed login.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("log in failed, check token: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ErrClosed is returned by WaitReady when the session closes before it
// became ready.
var ErrClosed = errors.New("discord session closed")

// gateway is the subset of *discordgo.Session used after login.
type gateway interface {
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Session wraps a discordgo session.
type Session struct {
	dg     *discordgo.Session
	gw     gateway
	logger *slog.Logger

	prefix string
	isBot  bool

	mu     sync.Mutex
	selfID string
	onQuit func()

	// Last published status, re-sent after a fresh identify
	lastStatus *discordgo.UpdateStatusData

	readyOnce sync.Once
	readyCh   chan struct{}
	closeOnce sync.Once
	closedCh  chan struct{}
}

// NewSession creates a session from the discord config section.
// The connection is not opened until Open is called.
func NewSession(cfg config.DiscordConfig, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	token := cfg.Token
	if cfg.Bot && !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}

	dg, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	s := newSession(dg, cfg, logger)
	dg.AddHandler(s.handleReady)
	dg.AddHandler(s.handleMessage)
	return s, nil
}

func newSession(dg *discordgo.Session, cfg config.DiscordConfig, logger *slog.Logger) *Session {
	s := &Session{
		dg:       dg,
		logger:   logger,
		prefix:   cfg.CommandPrefix,
		isBot:    cfg.Bot,
		readyCh:  make(chan struct{}),
		closedCh: make(chan struct{}),
	}
	if dg != nil {
		s.gw = dg
	}
	return s
}

// SetQuitHandler sets the callback invoked by the quit command.
func (s *Session) SetQuitHandler(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onQuit = fn
}

// Open logs in and starts the gateway connection.
func (s *Session) Open() error {
	s.logger.Info("logging in")
	if err := s.dg.Open(); err != nil {
		return &AuthError{Err: err}
	}
	return nil
}

// Close logs out and closes the gateway connection.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.closedCh) })
	if s.dg == nil {
		return nil
	}
	return s.dg.Close()
}

// WaitReady blocks until the gateway reported Ready, the session was
// closed, or ctx is done.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-s.closedCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish sets the presence for state.
func (s *Session) Publish(ctx context.Context, state presence.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	usd := statusData(state)
	if err := s.gw.UpdateStatusComplex(usd); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastStatus = &usd
	s.mu.Unlock()
	return nil
}

// statusData maps a presence state to a gateway status update.
// Nothing playing hides the account; a song shows as "Listening to".
func statusData(state presence.State) discordgo.UpdateStatusData {
	if state.Kind != presence.Announcing {
		return discordgo.UpdateStatusData{
			AFK:    true,
			Status: string(discordgo.StatusInvisible),
		}
	}
	return discordgo.UpdateStatusData{
		AFK:    true,
		Status: string(discordgo.StatusIdle),
		Activities: []*discordgo.Activity{{
			Name: state.Title,
			Type: discordgo.ActivityTypeListening,
		}},
	}
}

// handleReady fires on every identify, including reconnects that could not
// resume. A fresh identify starts without a presence, so the last published
// one is sent again.
func (s *Session) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	s.mu.Lock()
	if r.User != nil {
		s.selfID = r.User.ID
	}
	last := s.lastStatus
	s.mu.Unlock()

	if r.User != nil {
		s.logger.Info("logged in", "user", r.User.Username, "id", r.User.ID)
	}

	if last != nil {
		if err := s.gw.UpdateStatusComplex(*last); err != nil {
			s.logger.Warn("failed to restore presence after reconnect", "error", err)
		} else {
			s.logger.Debug("restored presence after reconnect", "status", last.Status)
		}
	}

	s.readyOnce.Do(func() {
		s.logger.Info("ready to start")
		close(s.readyCh)
	})
}

func (s *Session) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || !s.isQuit(m.Author, m.Content) {
		return
	}

	if _, err := s.gw.ChannelMessageSend(m.ChannelID, "Logging out..."); err != nil {
		s.logger.Warn("failed to send quit reply", "error", err)
	}
	s.logger.Info("logging out")

	s.mu.Lock()
	onQuit := s.onQuit
	s.mu.Unlock()
	if onQuit != nil {
		onQuit()
	}
}

// isQuit reports whether a message from author is the quit command.
// A user account only obeys itself; a bot obeys anyone but other bots.
func (s *Session) isQuit(author *discordgo.User, content string) bool {
	if strings.TrimSpace(content) != s.prefix+QuitCommand {
		return false
	}

	if s.isBot {
		return !author.Bot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfID != "" && author.ID == s.selfID
}
