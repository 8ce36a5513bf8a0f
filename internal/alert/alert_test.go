package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/lzjever/lgu-integrity/internal/core"
)

type countingNotifier struct {
	sent []string
	err  error
}

func (n *countingNotifier) Notify(_ context.Context, inc *core.TamperIncident) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, inc.ID)
	return nil
}

type brokenCooldown struct{}

func (brokenCooldown) Allow(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("connection refused")
}

func TestDispatcher_CooldownPerIncident(t *testing.T) {
	n := &countingNotifier{}
	d := NewDispatcher(n, NewMemoryCooldown(30*time.Minute), zaptest.NewLogger(t))
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	a := &core.TamperIncident{ID: "inc-a"}
	b := &core.TamperIncident{ID: "inc-b"}

	d.Alert(context.Background(), a)
	d.Alert(context.Background(), a)
	d.Alert(context.Background(), b)
	assert.Equal(t, []string{"inc-a", "inc-b"}, n.sent)

	now = now.Add(30 * time.Minute)
	d.Alert(context.Background(), a)
	assert.Len(t, n.sent, 2, "alert at exactly the window edge is suppressed")

	now = now.Add(time.Millisecond)
	d.Alert(context.Background(), a)
	assert.Equal(t, []string{"inc-a", "inc-b", "inc-a"}, n.sent)
}

func TestDispatcher_BrokenCooldownStillAlerts(t *testing.T) {
	n := &countingNotifier{}
	d := NewDispatcher(n, brokenCooldown{}, zaptest.NewLogger(t))

	d.Alert(context.Background(), &core.TamperIncident{ID: "inc-a"})
	assert.Equal(t, []string{"inc-a"}, n.sent)
}

func TestMemoryCooldown_Prunes(t *testing.T) {
	c := NewMemoryCooldown(time.Minute)
	start := time.Now()
	for i := 0; i < pruneThreshold; i++ {
		ok, err := c.Allow(context.Background(), uuid.NewString(), start)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := c.Allow(context.Background(), "late", start.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, c.last, 1)
}

func TestRedisCooldown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, redisC)
	require.NoError(t, err)

	addr, err := redisC.Endpoint(ctx, "")
	require.NoError(t, err)

	c, err := NewRedisCooldown(addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	shared := NewRedisCooldownWithClient(goredis.NewClient(&goredis.Options{Addr: addr}), c.prefix, 2*time.Second)
	t.Cleanup(func() { _ = shared.Close() })

	ok, err := c.Allow(ctx, "inc-1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Allow(ctx, "inc-1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	// a second instance sharing the prefix sees the same window
	ok, err = shared.Allow(ctx, "inc-1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Allow(ctx, "inc-2", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		ok, err := c.Allow(ctx, "inc-1", time.Now())
		return err == nil && ok
	}, 5*time.Second, 100*time.Millisecond)
}
