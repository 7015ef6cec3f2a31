package usecase

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"alsrag/internal/domain"
	"alsrag/internal/port"
)

// Responder produces a reply to one input given earlier turns.
type Responder interface {
	Respond(ctx context.Context, history []domain.ConversationTurn, input string) (string, error)
}

// PollLoop feeds messages from a source through a responder and records
// each exchange.
type PollLoop struct {
	source    port.InputSource
	sink      port.OutputSink
	responder Responder
	interval  time.Duration
	watchPath string
	logger    *zap.Logger
	now       func() time.Time

	running atomic.Bool
	mu      sync.Mutex
	history []domain.ConversationTurn
}

// PollOptions configures a PollLoop.
type PollOptions struct {
	Interval time.Duration
	// WatchPath, when set, is watched with fsnotify so writes trigger a poll
	// without waiting for the next tick.
	WatchPath string
}

func NewPollLoop(source port.InputSource, sink port.OutputSink, responder Responder, opts PollOptions, logger *zap.Logger) *PollLoop {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollLoop{
		source:    source,
		sink:      sink,
		responder: responder,
		interval:  opts.Interval,
		watchPath: opts.WatchPath,
		logger:    logger,
		now:       time.Now,
	}
}

// Running reports whether Run is currently active.
func (l *PollLoop) Running() bool {
	return l.running.Load()
}

// History returns a copy of the accumulated conversation.
func (l *PollLoop) History() []domain.ConversationTurn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ConversationTurn(nil), l.history...)
}

// Run polls until ctx is done. An iteration in progress always completes.
func (l *PollLoop) Run(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)

	events := l.watch(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("poll loop started", zap.Duration("interval", l.interval))
	for {
		l.Step(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			l.logger.Info("poll loop stopped")
			return nil
		case <-ticker.C:
		case <-events:
		}
	}
}

// watch returns a channel that fires on writes to the watched file. It never
// fires when watching is disabled or fails to start.
func (l *PollLoop) watch(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	if l.watchPath == "" {
		return out
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.logger.Warn("failed to create file watcher", zap.Error(err))
		return out
	}
	// watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(l.watchPath)); err != nil {
		l.logger.Warn("failed to watch input directory", zap.String("path", l.watchPath), zap.Error(err))
		watcher.Close()
		return out
	}

	target := filepath.Clean(l.watchPath)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("file watcher error", zap.Error(err))
			}
		}
	}()
	return out
}

// Step handles at most one pending message. It reports whether an exchange
// was completed.
func (l *PollLoop) Step(ctx context.Context) bool {
	msg, ok, err := l.source.Next(ctx)
	if err != nil {
		l.logger.Warn("failed to read input", zap.Error(err))
		return false
	}
	if !ok || msg.Text == "" {
		return false
	}

	l.logger.Info("received input", zap.String("id", msg.ID), zap.String("message", msg.Text))

	reply, err := l.responder.Respond(ctx, l.History(), msg.Text)
	if err != nil {
		l.logger.Error("failed to respond", zap.String("id", msg.ID), zap.Error(err))
		return false
	}

	exchange := []domain.ConversationTurn{
		{Role: domain.RoleUser, Timestamp: l.timestamp(), Content: msg.Text},
		{Role: domain.RoleAssistant, Timestamp: l.timestamp(), Content: reply},
	}
	l.mu.Lock()
	l.history = append(l.history, exchange...)
	l.mu.Unlock()

	if err := l.sink.Write(ctx, exchange); err != nil {
		l.logger.Error("failed to save output", zap.Error(err))
	}
	if err := l.source.Ack(ctx, msg, reply); err != nil {
		l.logger.Error("failed to acknowledge input", zap.String("id", msg.ID), zap.Error(err))
	}

	l.logger.Info("response saved", zap.String("id", msg.ID), zap.Int("chars", len([]rune(reply))))
	return true
}

func (l *PollLoop) timestamp() string {
	return l.now().Format("2006-01-02T15:04:05.000000")
}
