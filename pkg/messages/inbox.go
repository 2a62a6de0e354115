package messages

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/bus"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/logger"
)

// Inbox owns the thread list and the poller of the selected thread. Only one
// thread is polled at a time; selecting another starts from an empty list.
type Inbox struct {
	remote api.Remote
	norm   entity.Normalizer
	opts   Options

	mu       sync.Mutex
	threads  []entity.Thread
	active   *Poller
	unfollow func()
	closed   bool

	threadChanges  bus.Bus[[]entity.Thread]
	messageChanges bus.Bus[[]entity.Message]
}

// NewInbox creates an inbox with no thread selected
func NewInbox(remote api.Remote, opts Options) *Inbox {
	opts = opts.withDefaults()
	return &Inbox{
		remote: remote,
		norm:   entity.NewNormalizer(opts.ViewerID),
		opts:   opts,
	}
}

// Threads fetches the thread list. On failure the cached list is kept and
// returned together with the error.
func (in *Inbox) Threads(ctx context.Context) ([]entity.Thread, error) {
	raw, err := in.remote.ListThreads(ctx)
	if err != nil {
		logger.Warn("Thread list fetch failed", "error", err)
		return in.CachedThreads(), err
	}
	threads := in.norm.Threads(raw)

	in.mu.Lock()
	in.threads = threads
	in.threadChanges.Queue(slices.Clone(threads))
	in.mu.Unlock()
	in.threadChanges.Flush()

	return slices.Clone(threads), nil
}

// CachedThreads returns the last fetched thread list
func (in *Inbox) CachedThreads() []entity.Thread {
	in.mu.Lock()
	defer in.mu.Unlock()
	return slices.Clone(in.threads)
}

// OpenWith returns the thread with userID, creating it on the server if
// this inbox has not seen one
func (in *Inbox) OpenWith(ctx context.Context, userID string) (entity.Thread, error) {
	in.mu.Lock()
	existing, ok := lo.Find(in.threads, func(t entity.Thread) bool { return t.Participant.ID == userID })
	in.mu.Unlock()
	if ok {
		return existing, nil
	}

	raw, err := in.remote.OpenThread(ctx, userID)
	if err != nil {
		return entity.Thread{}, err
	}
	thread, err := in.norm.Thread(*raw)
	if err != nil {
		return entity.Thread{}, err
	}

	in.mu.Lock()
	if !lo.ContainsBy(in.threads, func(t entity.Thread) bool { return t.ID == thread.ID }) {
		in.threads = append([]entity.Thread{thread}, in.threads...)
		in.threadChanges.Queue(slices.Clone(in.threads))
	}
	in.mu.Unlock()
	in.threadChanges.Flush()

	return thread, nil
}

// Select makes threadID the active thread and starts polling it. Selecting
// the active thread again is a no-op.
func (in *Inbox) Select(threadID string) (*Poller, error) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil, fmt.Errorf("inbox is closed")
	}
	if in.active != nil && in.active.ThreadID() == threadID {
		p := in.active
		in.mu.Unlock()
		return p, nil
	}
	prev, prevUnfollow := in.active, in.unfollow

	p := NewPoller(threadID, in.remote, in.opts)
	in.active = p
	in.unfollow = p.Subscribe(func(msgs []entity.Message) {
		in.messageChanges.Publish(msgs)
	})
	in.mu.Unlock()

	stopPoller(prev, prevUnfollow)
	// the new thread starts empty
	in.messageChanges.Publish(nil)
	p.Start()

	logger.Debug("Thread selected", "thread_id", threadID)
	return p, nil
}

// Deselect stops polling the active thread
func (in *Inbox) Deselect() {
	in.mu.Lock()
	prev, prevUnfollow := in.active, in.unfollow
	in.active, in.unfollow = nil, nil
	in.mu.Unlock()

	stopPoller(prev, prevUnfollow)
}

func stopPoller(p *Poller, unfollow func()) {
	if unfollow != nil {
		unfollow()
	}
	if p != nil {
		p.Stop()
	}
}

// Active returns the selected thread's poller, or nil
func (in *Inbox) Active() *Poller {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.active
}

// Send delivers text to threadID, selecting the thread first if needed. On
// success the thread's preview is updated and it moves to the top.
func (in *Inbox) Send(ctx context.Context, threadID, text string) (entity.Message, error) {
	p, err := in.Select(threadID)
	if err != nil {
		return entity.Message{}, err
	}
	msg, err := p.Send(ctx, text)
	if err != nil {
		return entity.Message{}, err
	}
	in.touch(threadID, msg.Text)
	return msg, nil
}

// Retry re-sends a failed message in the active thread
func (in *Inbox) Retry(ctx context.Context, localID string) (entity.Message, error) {
	p := in.Active()
	if p == nil {
		return entity.Message{}, fmt.Errorf("no thread selected")
	}
	msg, err := p.Retry(ctx, localID)
	if err != nil {
		return entity.Message{}, err
	}
	in.touch(p.ThreadID(), msg.Text)
	return msg, nil
}

// Discard drops a failed message from the active thread
func (in *Inbox) Discard(localID string) bool {
	p := in.Active()
	if p == nil {
		return false
	}
	return p.Discard(localID)
}

func (in *Inbox) touch(threadID, preview string) {
	in.mu.Lock()
	i := slices.IndexFunc(in.threads, func(t entity.Thread) bool { return t.ID == threadID })
	if i < 0 {
		in.mu.Unlock()
		return
	}
	t := in.threads[i]
	t.LastMessage = preview
	next := make([]entity.Thread, 0, len(in.threads))
	next = append(next, t)
	next = append(next, in.threads[:i]...)
	next = append(next, in.threads[i+1:]...)
	in.threads = next
	in.threadChanges.Queue(slices.Clone(next))
	in.mu.Unlock()
	in.threadChanges.Flush()
}

// Messages returns the active thread's messages
func (in *Inbox) Messages() []entity.Message {
	if p := in.Active(); p != nil {
		return p.Messages()
	}
	return nil
}

// Subscribe calls fn with the active thread's messages after every change,
// including an empty list when the selection changes
func (in *Inbox) Subscribe(fn func([]entity.Message)) func() {
	return in.messageChanges.Subscribe(fn)
}

// SubscribeThreads calls fn with the thread list after every change
func (in *Inbox) SubscribeThreads(fn func([]entity.Thread)) func() {
	return in.threadChanges.Subscribe(fn)
}

// Nudge triggers an immediate poll if threadID is the active thread
func (in *Inbox) Nudge(threadID string) {
	if p := in.Active(); p != nil && p.ThreadID() == threadID {
		p.Nudge()
	}
}

// Close stops polling. The inbox cannot be used afterwards.
func (in *Inbox) Close() {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
	in.Deselect()
}
