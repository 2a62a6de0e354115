package messages

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/bus"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/errors"
	"github.com/zfogg/feedsync/pkg/logger"
	"github.com/zfogg/feedsync/pkg/metrics"
	"github.com/zfogg/feedsync/pkg/validation"
)

// State is the poller's position in its poll cycle
type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
)

// Poller keeps one thread's message list fresh. It re-fetches the full list
// on an interval while started and merges it with locally sent messages.
// Once stopped it never publishes again, and responses that arrive late are
// discarded.
type Poller struct {
	threadID string
	remote   api.Remote
	norm     entity.Normalizer
	opts     Options

	mu      sync.Mutex
	msgs    []entity.Message
	texts   map[string]string
	state   State
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	nudge   chan struct{}
	changes bus.Bus[[]entity.Message]
}

// NewPoller creates a poller for threadID. It starts with an empty list.
func NewPoller(threadID string, remote api.Remote, opts Options) *Poller {
	opts = opts.withDefaults()
	return &Poller{
		threadID: threadID,
		remote:   remote,
		norm:     entity.NewNormalizer(opts.ViewerID),
		opts:     opts,
		texts:    make(map[string]string),
		state:    StateIdle,
		nudge:    make(chan struct{}, 1),
	}
}

// ThreadID returns the thread being polled
func (p *Poller) ThreadID() string {
	return p.threadID
}

// State reports whether a poll is in flight
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stopped reports whether Stop has been called
func (p *Poller) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Messages returns the held list, oldest first
func (p *Poller) Messages() []entity.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.msgs)
}

// Subscribe calls fn with the full list after every change
func (p *Poller) Subscribe(fn func([]entity.Message)) func() {
	return p.changes.Subscribe(fn)
}

// commit replaces the held list and queues a notification. Callers hold p.mu
// and must call p.changes.Flush after unlocking.
func (p *Poller) commit(next []entity.Message) bool {
	if slices.Equal(p.msgs, next) {
		return false
	}
	p.msgs = next
	p.changes.Queue(slices.Clone(next))
	return true
}

// Start polls immediately and then on every interval until Stop
func (p *Poller) Start() {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	logger.Debug("Poller started", "thread_id", p.threadID, "interval", p.opts.PollInterval)
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		_ = p.PollNow(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.nudge:
		}
	}
}

// Nudge asks a started poller to poll now instead of waiting for the tick
func (p *Poller) Nudge() {
	select {
	case p.nudge <- struct{}{}:
	default:
	}
}

// Stop cancels the interval and waits for the poll loop to exit. It is safe
// to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	logger.Debug("Poller stopped", "thread_id", p.threadID)
}

// PollNow fetches the thread once and merges the result. A failed fetch
// leaves the held list unchanged.
func (p *Poller) PollNow(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.state = StatePolling
	p.mu.Unlock()

	raw, err := p.remote.ListMessages(ctx, p.threadID)

	p.mu.Lock()
	p.state = StateIdle
	if p.stopped {
		p.mu.Unlock()
		logger.Debug("Dropping poll result for stopped poller", "thread_id", p.threadID)
		return nil
	}
	if err != nil {
		p.mu.Unlock()
		metrics.RecordPoll("error")
		if ctx.Err() == nil {
			logger.Warn("Thread poll failed", "thread_id", p.threadID, "error", err)
		}
		return err
	}
	fresh := p.norm.Messages(raw, p.threadID)
	changed := p.commit(MergeMessages(p.msgs, fresh))
	p.mu.Unlock()
	p.changes.Flush()

	metrics.RecordPoll("ok")
	logger.Debug("Thread polled", "thread_id", p.threadID, "fetched", len(fresh), "changed", changed)
	return nil
}

// Send appends a local message in the sending state, then delivers it.
// Transient failures are retried with exponential backoff up to the
// configured number of attempts; after that, or on any other error, the
// message is marked failed and left in the list.
func (p *Poller) Send(ctx context.Context, text string) (entity.Message, error) {
	text, err := validation.Message(text)
	if err != nil {
		return entity.Message{}, err
	}

	local := entity.Message{
		ID:        "tmp_" + uuid.NewString(),
		ThreadID:  p.threadID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
		SenderID:  p.opts.ViewerID,
		Status:    entity.StatusSending,
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return entity.Message{}, fmt.Errorf("thread %s is no longer active", p.threadID)
	}
	p.texts[local.ID] = text
	next := append(slices.Clone(p.msgs), local)
	entity.SortMessages(next)
	p.commit(next)
	p.mu.Unlock()
	p.changes.Flush()

	return p.deliver(ctx, local.ID, text)
}

// Retry re-sends a failed message with a fresh attempt budget
func (p *Poller) Retry(ctx context.Context, localID string) (entity.Message, error) {
	p.mu.Lock()
	text, ok := p.texts[localID]
	if !ok || p.stopped {
		p.mu.Unlock()
		return entity.Message{}, errors.NotFound("message", localID)
	}
	next, _ := setStatus(p.msgs, localID, entity.StatusSending)
	p.commit(next)
	p.mu.Unlock()
	p.changes.Flush()

	return p.deliver(ctx, localID, text)
}

// Discard removes a local message that has not been confirmed
func (p *Poller) Discard(localID string) bool {
	p.mu.Lock()
	if _, ok := p.texts[localID]; !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.texts, localID)
	next := slices.DeleteFunc(slices.Clone(p.msgs), func(m entity.Message) bool { return m.ID == localID })
	p.commit(next)
	p.mu.Unlock()
	p.changes.Flush()
	return true
}

func (p *Poller) deliver(ctx context.Context, localID, text string) (entity.Message, error) {
	var lastErr error
attempts:
	for attempt := 1; attempt <= p.opts.MaxSendAttempts; attempt++ {
		logger.Debug("Sending message", "thread_id", p.threadID, "local_id", localID, "attempt", attempt)

		raw, err := p.remote.SendMessage(ctx, p.threadID, text)
		if err == nil {
			var confirmed entity.Message
			confirmed, err = p.norm.Message(*raw, p.threadID)
			if err == nil {
				p.confirm(localID, confirmed)
				metrics.RecordMutation("send_message", "confirmed")
				return confirmed, nil
			}
		}
		lastErr = err

		if !errors.IsRetryable(err) || attempt == p.opts.MaxSendAttempts {
			break attempts
		}
		wait := p.opts.backoff(attempt)
		logger.Debug("Message send failed, retrying", "thread_id", p.threadID, "local_id", localID, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break attempts
		case <-time.After(wait):
		}
	}

	p.fail(localID)
	metrics.RecordMutation("send_message", "failed")
	logger.Warn("Message send failed", "thread_id", p.threadID, "local_id", localID, "error", lastErr)
	return entity.Message{}, lastErr
}

func (p *Poller) confirm(localID string, confirmed entity.Message) {
	p.mu.Lock()
	delete(p.texts, localID)
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.commit(replaceLocal(p.msgs, localID, confirmed))
	p.mu.Unlock()
	p.changes.Flush()
}

func (p *Poller) fail(localID string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if next, ok := setStatus(p.msgs, localID, entity.StatusFailed); ok {
		p.commit(next)
	}
	p.mu.Unlock()
	p.changes.Flush()
}
