package livechat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coregx/livechat"
	"github.com/coregx/livechat/adapters/memory"
	"github.com/coregx/livechat/model"
	"github.com/stretchr/testify/require"
)

var errStorageDown = errors.New("storage down")

// flakyMessageRepo wraps the in-memory repository with switchable failures.
type flakyMessageRepo struct {
	*memory.MessageRepository

	mu        sync.Mutex
	insertErr error
	recentErr error
	latestErr error
	lastLimit int
}

func newFlakyMessageRepo() *flakyMessageRepo {
	return &flakyMessageRepo{MessageRepository: memory.NewMessageRepository()}
}

func (r *flakyMessageRepo) failInsert(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertErr = err
}

func (r *flakyMessageRepo) Insert(ctx context.Context, m model.Message) (model.Message, error) {
	r.mu.Lock()
	err := r.insertErr
	r.mu.Unlock()
	if err != nil {
		return m, err
	}
	return r.MessageRepository.Insert(ctx, m)
}

func (r *flakyMessageRepo) FindRecent(ctx context.Context, limit int) ([]model.Message, error) {
	r.mu.Lock()
	r.lastLimit = limit
	err := r.recentErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.MessageRepository.FindRecent(ctx, limit)
}

func (r *flakyMessageRepo) FindLatest(ctx context.Context) (model.Message, error) {
	r.mu.Lock()
	err := r.latestErr
	r.mu.Unlock()
	if err != nil {
		return model.Message{}, err
	}
	return r.MessageRepository.FindLatest(ctx)
}

// recordingObserver counts observer callbacks.
type recordingObserver struct {
	livechat.NoOpEventObserver

	mu       sync.Mutex
	joined   []string
	left     []string
	lagging  map[string]uint64
	failures []livechat.FanoutSummary
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{lagging: make(map[string]uint64)}
}

func (o *recordingObserver) NotifySubscriberJoined(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.joined = append(o.joined, id)
	return nil
}

func (o *recordingObserver) NotifySubscriberLeft(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.left = append(o.left, id)
	return nil
}

func (o *recordingObserver) NotifySubscriberLagging(_ context.Context, id string, dropped uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lagging[id] = dropped
	return nil
}

func (o *recordingObserver) NotifyFanoutPartialFailure(_ context.Context, summary livechat.FanoutSummary) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, summary)
	return nil
}

func (o *recordingObserver) laggingFor(id string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lagging[id]
}

// chatFixture is a gateway wired to in-memory storage.
type chatFixture struct {
	messages *flakyMessageRepo
	devices  *memory.DeviceTokenRepository
	store    *livechat.MessageStore
	hub      *livechat.SubscriptionHub
	gateway  *livechat.ChatGateway
}

func newChatFixture(t *testing.T, gatewayOpts ...livechat.GatewayOption) *chatFixture {
	t.Helper()

	f := &chatFixture{
		messages: newFlakyMessageRepo(),
		devices:  memory.NewDeviceTokenRepository(),
	}

	var err error
	f.store, err = livechat.NewMessageStore(
		livechat.WithMessageRepository(f.messages),
		livechat.WithDeviceTokenRepository(f.devices),
	)
	require.NoError(t, err)

	f.hub, err = livechat.NewSubscriptionHub()
	require.NoError(t, err)

	opts := append([]livechat.GatewayOption{
		livechat.WithStore(f.store),
		livechat.WithHub(f.hub),
	}, gatewayOpts...)
	f.gateway, err = livechat.NewChatGateway(opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		f.hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.gateway.Close(ctx)
	})
	return f
}

// receive reads one message from ch or fails the test after a timeout.
func receive(t *testing.T, ch <-chan model.Message) model.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return model.Message{}
	}
}

// assertNoMessage fails if ch delivers a message within a short window.
func assertNoMessage(t *testing.T, ch <-chan model.Message) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if ok {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(50 * time.Millisecond):
	}
}
