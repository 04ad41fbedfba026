package worker_test

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusnotify/internal/model"
	"campusnotify/internal/queue"
	"campusnotify/internal/worker"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// MockFanout records what the worker asked it to do.
type MockFanout struct {
	mu        sync.Mutex
	published []model.NoticePublished
	retracted []int64
}

func (m *MockFanout) Publish(ctx context.Context, ev model.NoticePublished) model.FanoutReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, ev)
	return model.FanoutReport{NoticeID: ev.NoticeID}
}

func (m *MockFanout) Retract(ctx context.Context, noticeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retracted = append(m.retracted, noticeID)
	return nil
}

func (m *MockFanout) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published), len(m.retracted)
}

// =============================================================================
// Test Helpers
// =============================================================================

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	// DB 1 keeps tests away from dev data
	opts.DB = 1

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestHandleEvent_RoutesByType(t *testing.T) {
	fanout := &MockFanout{}
	handler := worker.NewHandler(fanout, quietLogger())
	ctx := context.Background()

	classID := int64(3)
	require.NoError(t, handler.HandleEvent(ctx, queue.NewNoticePublishedEvent(model.NoticePublished{
		NoticeID: 10,
		Category: model.CategoryExam,
		Target:   model.NoticeTarget{ClassID: &classID},
	})))
	require.NoError(t, handler.HandleEvent(ctx, queue.NewNoticeRetractedEvent(11)))

	require.Len(t, fanout.published, 1)
	assert.Equal(t, int64(10), fanout.published[0].NoticeID)
	assert.Equal(t, model.CategoryExam, fanout.published[0].Category)
	assert.Equal(t, classID, *fanout.published[0].Target.ClassID)
	assert.Equal(t, []int64{11}, fanout.retracted)
}

func TestHandleEvent_UnknownType(t *testing.T) {
	handler := worker.NewHandler(&MockFanout{}, quietLogger())

	err := handler.HandleEvent(context.Background(), queue.NoticeEvent{Type: "bogus", NoticeID: 1})

	assert.Error(t, err)
}

func TestParseNoticeEvent_RejectsMalformed(t *testing.T) {
	_, err := queue.ParseNoticeEvent(map[string]interface{}{"type": "notice_published"})
	assert.Error(t, err)

	_, err = queue.ParseNoticeEvent(map[string]interface{}{"data": `{"type":"notice_published"}`})
	assert.Error(t, err)

	values, err := queue.NewNoticeRetractedEvent(5).ToMap()
	require.NoError(t, err)
	ev, err := queue.ParseNoticeEvent(values)
	require.NoError(t, err)
	assert.Equal(t, queue.EventNoticeRetracted, ev.Type)
	assert.Equal(t, int64(5), ev.NoticeID)
}

// =============================================================================
// Integration Tests (Redis Streams)
// =============================================================================

// TestManager_ConsumesPublishedNotices publishes through the stream and
// checks that workers drive the fan-out and acknowledge every message.
func TestManager_ConsumesPublishedNotices(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	publisher := queue.NewPublisher(client, quietLogger())
	consumer := queue.NewConsumer(client, quietLogger())
	fanout := &MockFanout{}
	manager := worker.NewManager(consumer, worker.NewHandler(fanout, quietLogger()), worker.ManagerConfig{
		WorkerCount:  2,
		BlockTimeout: 100 * time.Millisecond,
	}, quietLogger())

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	for i := int64(1); i <= 3; i++ {
		_, err := publisher.PublishNotice(ctx, model.NoticePublished{NoticeID: i, Category: model.CategoryGeneral})
		require.NoError(t, err)
	}
	_, err := publisher.PublishRetraction(ctx, 2)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		published, retracted := fanout.counts()
		return published == 3 && retracted == 1
	}, 5*time.Second, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		n, err := consumer.Pending(ctx, queue.StreamNotices, queue.ConsumerGroupFanout)
		return err == nil && n == 0
	}, 5*time.Second, 50*time.Millisecond)
}

// TestManager_RecoversPendingMessages simulates a crash between read and ack.
func TestManager_RecoversPendingMessages(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	publisher := queue.NewPublisher(client, quietLogger())
	consumer := queue.NewConsumer(client, quietLogger())
	require.NoError(t, consumer.EnsureGroup(ctx, queue.StreamNotices, queue.ConsumerGroupFanout))

	_, err := publisher.PublishNotice(ctx, model.NoticePublished{NoticeID: 42})
	require.NoError(t, err)

	host, _ := os.Hostname()
	if host == "" {
		host = "local"
	}
	crashed := host + "-worker-1"
	msgs, err := consumer.Read(ctx, queue.StreamNotices, queue.ConsumerGroupFanout, crashed, 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	fanout := &MockFanout{}
	manager := worker.NewManager(consumer, worker.NewHandler(fanout, quietLogger()), worker.ManagerConfig{
		WorkerCount:  1,
		BlockTimeout: 100 * time.Millisecond,
	}, quietLogger())
	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	assert.Eventually(t, func() bool {
		published, _ := fanout.counts()
		return published == 1
	}, 5*time.Second, 50*time.Millisecond)
}
