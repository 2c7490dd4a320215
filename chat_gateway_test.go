package livechat_test

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/coregx/livechat"
	"github.com/coregx/livechat/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mock.Mock

	mu      sync.Mutex
	ctxErrs []error
}

func (m *mockNotifier) NotifyAllWithData(ctx context.Context, n livechat.Notification) (livechat.FanoutSummary, error) {
	m.mu.Lock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	m.mu.Unlock()

	args := m.Called(n)
	return args.Get(0).(livechat.FanoutSummary), args.Error(1)
}

func TestNewChatGateway_RequiresStoreAndHub(t *testing.T) {
	_, err := livechat.NewChatGateway()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MessageStore is required")

	f := newChatFixture(t)
	_, err = livechat.NewChatGateway(livechat.WithStore(f.store))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SubscriptionHub is required")

	_, err = livechat.NewChatGateway(livechat.WithStore(f.store), livechat.WithHub(f.hub), livechat.WithPushTimeout(0))
	assert.Error(t, err)
}

func TestChatGateway_PostAndList(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	feed, err := f.gateway.OpenLiveFeed(ctx)
	require.NoError(t, err)
	defer feed.Close()

	msg, err := f.gateway.PostMessage(ctx, "Alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, "Alice", msg.Nickname)
	assert.Equal(t, "hello", msg.Text)

	live := receive(t, feed.Messages())
	assert.Equal(t, msg, live)
	assertNoMessage(t, feed.Messages())

	recent, err := f.gateway.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []model.Message{msg}, recent)
}

func TestChatGateway_RejectedPostHasNoSideEffects(t *testing.T) {
	notifier := &mockNotifier{}
	f := newChatFixture(t, livechat.WithPushNotifier(notifier))
	ctx := context.Background()

	feed, err := f.gateway.OpenLiveFeed(ctx)
	require.NoError(t, err)
	defer feed.Close()

	_, err = f.gateway.PostMessage(ctx, "Alice", "")
	require.Error(t, err)
	assert.True(t, livechat.IsValidation(err))

	f.messages.failInsert(errStorageDown)
	_, err = f.gateway.PostMessage(ctx, "Alice", "hello")
	require.Error(t, err)
	assert.True(t, livechat.IsPersistence(err))

	require.NoError(t, f.gateway.Close(ctx))
	assert.Equal(t, 0, f.messages.Len())
	assertNoMessage(t, feed.Messages())
	notifier.AssertNotCalled(t, "NotifyAllWithData", mock.Anything)
}

func TestChatGateway_PushRunsInBackground(t *testing.T) {
	notifier := &mockNotifier{}
	release := make(chan time.Time)
	notifier.On("NotifyAllWithData", mock.Anything).
		WaitUntil(release).
		Return(livechat.FanoutSummary{SuccessCount: 1}, nil)

	f := newChatFixture(t, livechat.WithPushNotifier(notifier))

	ctx, cancel := context.WithCancel(context.Background())
	msg, err := f.gateway.PostMessage(ctx, "Alice", "hello")
	require.NoError(t, err, "post returns before push completes")
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer closeCancel()
	assert.ErrorIs(t, f.gateway.Close(closeCtx), context.DeadlineExceeded, "close waits for in-flight push")

	close(release)
	require.NoError(t, f.gateway.Close(context.Background()))

	notifier.AssertNumberOfCalls(t, "NotifyAllWithData", 1)
	n := notifier.Calls[0].Arguments.Get(0).(livechat.Notification)
	assert.Equal(t, "Alice", n.Title)
	assert.Equal(t, "hello", n.Body)
	assert.Equal(t, map[string]string{"message_id": "1", "nickname": "Alice"}, n.Data)
	assert.Equal(t, int64(1), msg.ID)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.ctxErrs, 1)
	assert.NoError(t, notifier.ctxErrs[0], "push is detached from the caller's cancellation")
}

func TestChatGateway_PushFailureDoesNotAffectPost(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("NotifyAllWithData", mock.Anything).
		Return(livechat.FanoutSummary{}, errors.New("tokens unavailable")).Once()
	notifier.On("NotifyAllWithData", mock.Anything).
		Return(livechat.FanoutSummary{FailureCount: 1, Failures: []livechat.TokenFailure{{Token: "t", Attempts: 1, Err: errors.New("x")}}}, nil)

	f := newChatFixture(t, livechat.WithPushNotifier(notifier))
	ctx := context.Background()

	_, err := f.gateway.PostMessage(ctx, "Alice", "first")
	require.NoError(t, err)
	_, err = f.gateway.PostMessage(ctx, "Alice", "second")
	require.NoError(t, err)

	require.NoError(t, f.gateway.Close(ctx))
	notifier.AssertNumberOfCalls(t, "NotifyAllWithData", 2)
	assert.Equal(t, 2, f.messages.Len())
}

func TestChatGateway_PushBodyIsTruncated(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("NotifyAllWithData", mock.Anything).Return(livechat.FanoutSummary{NoDevices: true}, nil)

	f := newChatFixture(t, livechat.WithPushNotifier(notifier))
	ctx := context.Background()

	_, err := f.gateway.PostMessage(ctx, "Zoë", strings.Repeat("é", 150))
	require.NoError(t, err)
	require.NoError(t, f.gateway.Close(ctx))

	n := notifier.Calls[0].Arguments.Get(0).(livechat.Notification)
	assert.Equal(t, livechat.MaxPushBodyLength, utf8.RuneCountInString(n.Body))
	assert.True(t, strings.HasSuffix(n.Body, "…"))
	assert.Equal(t, "Zoë", n.Title)
}

func TestChatGateway_LiveFeedOrderMatchesStoreOrder(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	feed, err := f.gateway.OpenLiveFeed(ctx)
	require.NoError(t, err)
	defer feed.Close()

	const posts = 100
	var wg sync.WaitGroup
	for i := 0; i < posts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.gateway.PostMessage(ctx, "racer", "go")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var prev model.Message
	for i := 0; i < posts; i++ {
		msg := receive(t, feed.Messages())
		if i > 0 {
			assert.True(t, prev.Before(msg), "message %d delivered after %d", msg.ID, prev.ID)
		}
		prev = msg
	}
}

func TestChatGateway_LiveFeedEndsWithContext(t *testing.T) {
	f := newChatFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	feed, err := f.gateway.OpenLiveFeed(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, feed.ID())
	assert.Equal(t, 1, f.hub.Stats().Subscribers)

	cancel()
	assert.Eventually(t, func() bool {
		return f.hub.Stats().Subscribers == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := <-feed.Messages()
	assert.False(t, ok)
	feed.Close()

	_, err = f.gateway.OpenLiveFeed(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChatGateway_OpenLiveFeedAfterHubClose(t *testing.T) {
	f := newChatFixture(t)
	f.hub.Close()

	_, err := f.gateway.OpenLiveFeed(context.Background())
	assert.True(t, livechat.IsClosed(err))
}

func TestChatGateway_LiveFeedReleasedOnHubClose(t *testing.T) {
	f := newChatFixture(t)
	before := runtime.NumGoroutine()

	feeds := make([]livechat.Feed, 0, 100)
	for i := 0; i < 100; i++ {
		feed, err := f.gateway.OpenLiveFeed(context.Background())
		require.NoError(t, err)
		feeds = append(feeds, feed)
	}
	assert.GreaterOrEqual(t, runtime.NumGoroutine(), before+100)

	f.hub.Close()

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+5
	}, 2*time.Second, 10*time.Millisecond, "feed watchers exit once the hub is closed")

	for _, feed := range feeds {
		_, ok := <-feed.Messages()
		assert.False(t, ok)
		feed.Close()
	}
}

func TestChatGateway_PostAfterCloseSkipsPush(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("NotifyAllWithData", mock.Anything).
		Return(livechat.FanoutSummary{SuccessCount: 1}, nil)

	f := newChatFixture(t, livechat.WithPushNotifier(notifier))

	feed, err := f.gateway.OpenLiveFeed(context.Background())
	require.NoError(t, err)
	defer feed.Close()

	require.NoError(t, f.gateway.Close(context.Background()))

	msg, err := f.gateway.PostMessage(context.Background(), "Alice", "late")
	require.NoError(t, err, "store and broadcast keep working after close")
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, msg, receive(t, feed.Messages()))

	require.NoError(t, f.gateway.Close(context.Background()))
	notifier.AssertNotCalled(t, "NotifyAllWithData", mock.Anything)
}
