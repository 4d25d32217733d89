//go:build container

package events_test

import (
	"context"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecotrack-api-server/config"
	"ecotrack-api-server/internal/events"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return host + ":" + port.Port()
}

func TestRedisRelaySharesEventsBetweenInstances(t *testing.T) {
	addr := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newInstance := func() (*events.Bus, *captureSink) {
		relay, err := events.NewRedisRelay(ctx, config.RedisConfig{Addr: addr})
		require.NoError(t, err)
		t.Cleanup(func() { _ = relay.Close() })
		assert.Equal(t, events.DefaultChannel, relay.Channel())

		bus := events.NewBus(relay)
		sink := &captureSink{}
		bus.Attach(sink)
		go func() { _ = bus.Run(ctx) }()
		return bus, sink
	}

	first, firstSink := newInstance()
	_, secondSink := newInstance()

	// Run subscribes asynchronously; publish until both instances see traffic.
	require.Eventually(t, func() bool {
		if err := first.Publish(ctx, events.Event{Type: events.PickupCreated}); err != nil {
			return false
		}
		return firstSink.count() > 0 && secondSink.count() > 0
	}, 10*time.Second, 100*time.Millisecond)
}

func TestRedisRelayUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := events.NewRedisRelay(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
