package messages

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/errors"
)

func rawMsg(id string, sec int, text string) entity.RawMessage {
	ts := time.Unix(int64(sec), 0).UTC().Format(time.RFC3339Nano)
	return entity.RawMessage{ID: entity.Str(id), ThreadID: entity.Str("t1"), Text: entity.Str(text), CreatedAt: &ts, SenderID: entity.Str("me")}
}

func testOptions() Options {
	return Options{ViewerID: "me", PollInterval: time.Hour, MaxSendAttempts: 3, RetryBaseDelay: time.Millisecond}
}

func TestPollerSendingMessageSurvivesPoll(t *testing.T) {
	mock := api.NewMockRemote()
	release := make(chan struct{})
	mock.SendMessageFunc = func(ctx context.Context, threadID, text string) (*entity.RawMessage, error) {
		<-release
		m := rawMsg("m9", 9, text)
		return &m, nil
	}
	mock.ListMessagesFunc = func(ctx context.Context, threadID string) ([]entity.RawMessage, error) {
		return []entity.RawMessage{rawMsg("m1", 1, "hi")}, nil
	}

	p := NewPoller("t1", mock, testOptions())
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	var sent entity.Message
	go func() {
		defer wg.Done()
		var err error
		sent, err = p.Send(context.Background(), "hello")
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return len(p.Messages()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, p.PollNow(context.Background()))
	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, entity.StatusSending, msgs[1].Status)
	assert.Equal(t, "hello", msgs[1].Text)

	close(release)
	wg.Wait()

	assert.Equal(t, "m9", sent.ID)
	assert.Equal(t, []string{"m1", "m9"}, ids(p.Messages()))
	assert.False(t, p.Messages()[1].IsLocal())
}

func TestPollerFailedFetchKeepsList(t *testing.T) {
	mock := api.NewMockRemote()
	mock.ListMessagesFunc = func(ctx context.Context, threadID string) ([]entity.RawMessage, error) {
		return []entity.RawMessage{rawMsg("m1", 1, "hi")}, nil
	}
	p := NewPoller("t1", mock, testOptions())
	require.NoError(t, p.PollNow(context.Background()))

	mock.ListMessagesFunc = func(ctx context.Context, threadID string) ([]entity.RawMessage, error) {
		return nil, errors.Transient("server unavailable", nil)
	}
	assert.Error(t, p.PollNow(context.Background()))
	assert.Equal(t, []string{"m1"}, ids(p.Messages()))
	assert.Equal(t, StateIdle, p.State())
}

func TestPollerSendRetriesTransientThenConfirms(t *testing.T) {
	mock := api.NewMockRemote()
	var attempts atomic.Int32
	mock.SendMessageFunc = func(ctx context.Context, threadID, text string) (*entity.RawMessage, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.Transient("timeout", nil)
		}
		m := rawMsg("m5", 5, text)
		return &m, nil
	}

	p := NewPoller("t1", mock, testOptions())
	got, err := p.Send(context.Background(), "hey")

	require.NoError(t, err)
	assert.Equal(t, "m5", got.ID)
	assert.EqualValues(t, 3, attempts.Load())
	assert.Equal(t, []string{"m5"}, ids(p.Messages()))
}

func TestPollerSendFailsAfterMaxAttempts(t *testing.T) {
	mock := api.NewMockRemote()
	mock.SendMessageFunc = func(ctx context.Context, threadID, text string) (*entity.RawMessage, error) {
		return nil, errors.Transient("timeout", nil)
	}

	p := NewPoller("t1", mock, testOptions())
	_, err := p.Send(context.Background(), "hey")

	require.Error(t, err)
	assert.True(t, mock.AssertCallCount("SendMessage", 3))
	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, entity.StatusFailed, msgs[0].Status)

	// polls never evict a failed send
	require.NoError(t, p.PollNow(context.Background()))
	assert.Len(t, p.Messages(), 1)
}

func TestPollerNonTransientFailsImmediately(t *testing.T) {
	mock := api.NewMockRemote()
	mock.SendMessageFunc = func(ctx context.Context, threadID, text string) (*entity.RawMessage, error) {
		return nil, errors.Forbidden("not a participant")
	}

	p := NewPoller("t1", mock, testOptions())
	_, err := p.Send(context.Background(), "hey")

	assert.True(t, errors.IsKind(err, errors.KindForbidden))
	assert.True(t, mock.AssertCallCount("SendMessage", 1))
	assert.Equal(t, entity.StatusFailed, p.Messages()[0].Status)
}

func TestPollerRetryAndDiscard(t *testing.T) {
	mock := api.NewMockRemote()
	fail := true
	mock.SendMessageFunc = func(ctx context.Context, threadID, text string) (*entity.RawMessage, error) {
		if fail {
			return nil, errors.Forbidden("nope")
		}
		m := rawMsg("m7", 7, text)
		return &m, nil
	}

	p := NewPoller("t1", mock, testOptions())
	_, err := p.Send(context.Background(), "first")
	require.Error(t, err)
	_, err = p.Send(context.Background(), "second")
	require.Error(t, err)

	require.Len(t, p.Messages(), 2)
	byText := lo.KeyBy(p.Messages(), func(m entity.Message) string { return m.Text })

	assert.True(t, p.Discard(byText["first"].ID))
	assert.False(t, p.Discard(byText["first"].ID))

	fail = false
	got, err := p.Retry(context.Background(), byText["second"].ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Text)
	assert.Equal(t, []string{"m7"}, ids(p.Messages()))

	_, err = p.Retry(context.Background(), byText["second"].ID)
	assert.True(t, errors.IsKind(err, errors.KindNotFound), "confirmed messages cannot be retried")
}

func TestPollerSendValidates(t *testing.T) {
	mock := api.NewMockRemote()
	p := NewPoller("t1", mock, testOptions())

	_, err := p.Send(context.Background(), "   ")
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.True(t, mock.AssertNotCalled("SendMessage"))
	assert.Empty(t, p.Messages())
}

func TestPollerStalePollKeepsMessageConfirmedMeanwhile(t *testing.T) {
	mock := api.NewMockRemote()
	entered := make(chan struct{})
	release := make(chan struct{})
	mock.ListMessagesFunc = func(ctx context.Context, threadID string) ([]entity.RawMessage, error) {
		close(entered)
		<-release
		return []entity.RawMessage{rawMsg("m1", 1, "hi")}, nil
	}
	mock.SendMessageFunc = func(ctx context.Context, threadID, text string) (*entity.RawMessage, error) {
		m := rawMsg("m9", 9, text)
		return &m, nil
	}

	p := NewPoller("t1", mock, testOptions())
	defer p.Stop()

	done := make(chan error, 1)
	go func() { done <- p.PollNow(context.Background()) }()
	<-entered

	sent, err := p.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"m9"}, ids(p.Messages()))

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"m1", "m9"}, ids(p.Messages()))
	assert.Equal(t, sent.ID, p.Messages()[1].ID)
	assert.Equal(t, entity.StatusConfirmed, p.Messages()[1].Status)
}

func TestPollerStopDropsLateResults(t *testing.T) {
	mock := api.NewMockRemote()
	entered := make(chan struct{})
	release := make(chan struct{})
	mock.ListMessagesFunc = func(ctx context.Context, threadID string) ([]entity.RawMessage, error) {
		close(entered)
		<-release
		return []entity.RawMessage{rawMsg("m1", 1, "late")}, nil
	}

	p := NewPoller("t1", mock, testOptions())
	notified := 0
	p.Subscribe(func([]entity.Message) { notified++ })

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.PollNow(context.Background())
	}()
	<-entered
	p.Stop()
	close(release)
	<-done

	assert.Empty(t, p.Messages())
	assert.Equal(t, 0, notified)
}

func TestPollerStartPollsOnIntervalAndStops(t *testing.T) {
	mock := api.NewMockRemote()
	opts := testOptions()
	opts.PollInterval = 5 * time.Millisecond

	p := NewPoller("t1", mock, opts)
	p.Start()
	require.Eventually(t, func() bool { return len(mock.GetCallsForMethod("ListMessages")) >= 3 }, time.Second, time.Millisecond)

	p.Stop()
	n := len(mock.GetCallsForMethod("ListMessages"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, len(mock.GetCallsForMethod("ListMessages")), "no polls after Stop")
	assert.True(t, p.Stopped())
}

func TestPollerNudge(t *testing.T) {
	mock := api.NewMockRemote()
	p := NewPoller("t1", mock, testOptions())
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool { return mock.AssertCallCount("ListMessages", 1) }, time.Second, time.Millisecond)
	p.Nudge()
	require.Eventually(t, func() bool { return mock.AssertCallCount("ListMessages", 2) }, time.Second, time.Millisecond)
}
