package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default timings.
const (
	DefaultInterval     = 8 * time.Second
	DefaultStartupDelay = 1 * time.Second
)

// Publisher pushes a presence to the chat session.
type Publisher interface {
	Publish(ctx context.Context, state State) error
}

// Readiness reports when the chat session is ready to accept updates.
type Readiness interface {
	WaitReady(ctx context.Context) error
}

// PublishError reports a failed presence update. The content stays
// unpublished, so a later tick publishes it again.
type PublishError struct {
	State State
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s presence: %v", e.State.Kind, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// TickResult is the outcome of a single Tick.
type TickResult int

const (
	// Unchanged means the modification time did not move.
	Unchanged TickResult = iota
	// Skipped means the file was read but nothing new had to be published.
	Skipped
	// Published means a new presence was published.
	Published
	// ReadFailed means the file could not be stat'ed, read or decoded.
	ReadFailed
	// PublishFailed means the publisher returned an error.
	PublishFailed
)

func (r TickResult) String() string {
	switch r {
	case Unchanged:
		return "unchanged"
	case Skipped:
		return "skipped"
	case Published:
		return "published"
	case ReadFailed:
		return "read_failed"
	case PublishFailed:
		return "publish_failed"
	default:
		return "unknown"
	}
}

// Options configures an Updater.
type Options struct {
	MinLength    int
	Interval     time.Duration
	StartupDelay time.Duration

	// Wake, if set, ends the sleep between ticks early. The modification
	// time check still decides whether the file is read.
	Wake <-chan struct{}
}

// Updater polls a Source and publishes presence changes.
// Its state is owned by the goroutine running Run and must not be
// shared.
type Updater struct {
	logger    *slog.Logger
	source    Source
	publisher Publisher
	ready     Readiness
	opts      Options

	// Last modification time whose content was fully handled
	lastModTime time.Time

	// Content and state of the last successful publish
	lastContent string
	lastState   State
}

// NewUpdater creates an Updater. ready may be nil if the publisher is
// usable immediately.
func NewUpdater(source Source, publisher Publisher, ready Readiness, opts Options, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StartupDelay < 0 {
		opts.StartupDelay = 0
	}
	return &Updater{
		logger:    logger,
		source:    source,
		publisher: publisher,
		ready:     ready,
		opts:      opts,
	}
}

// Run waits for the session to be ready, then polls until ctx is done.
// It only returns on cancellation or when waiting for readiness fails.
// No final publish happens on the way out.
func (u *Updater) Run(ctx context.Context) error {
	if u.ready != nil {
		if err := u.ready.WaitReady(ctx); err != nil {
			return err
		}
	}

	if err := u.sleep(ctx, u.opts.StartupDelay, nil); err != nil {
		return err
	}

	u.logger.Debug("presence updater started", "interval", u.opts.Interval, "min_length", u.opts.MinLength)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		u.Tick(ctx)

		if err := u.sleep(ctx, u.opts.Interval, u.opts.Wake); err != nil {
			u.logger.Debug("presence updater stopped")
			return err
		}
	}
}

// Tick checks the source once and publishes if the content changed.
func (u *Updater) Tick(ctx context.Context) TickResult {
	modTime, err := u.source.ModTime()
	if err != nil {
		u.logger.Debug("failed to check now playing file", "error", err)
		return ReadFailed
	}

	if modTime.Equal(u.lastModTime) {
		return Unchanged
	}

	content, err := u.source.Read()
	if err != nil {
		u.logger.Warn("failed to read now playing file", "error", err)
		return ReadFailed
	}

	if content == u.lastContent {
		u.lastModTime = modTime
		return Skipped
	}

	state := Derive(content, u.opts.MinLength)
	if state == u.lastState {
		// Different content, same presence (e.g. two short strings)
		u.lastModTime = modTime
		u.lastContent = content
		return Skipped
	}

	if err := u.publisher.Publish(ctx, state); err != nil {
		perr := &PublishError{State: state, Err: err}
		// lastModTime stays put so the next tick reads and retries.
		u.logger.Error("failed to update presence", "error", perr)
		return PublishFailed
	}

	u.lastModTime = modTime
	u.lastContent = content
	u.lastState = state

	if state.Kind == Cleared {
		u.logger.Info("cleared status because no song is playing")
	} else {
		u.logger.Info("set status", "listening_to", LogTitle(state.Title))
	}
	return Published
}

// Current returns the last successfully published state.
func (u *Updater) Current() State {
	return u.lastState
}

// sleep waits for d, an optional wake signal, or ctx cancellation.
func (u *Updater) sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-wake:
		return nil
	}
}
