//go:build integration

package coordinator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/dyluth/halo/internal/kernel"
	"github.com/dyluth/halo/pkg/mesh"
	"github.com/dyluth/halo/pkg/raster"
)

const redisPort = nat.Port("6379/tcp")

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{string(redisPort)},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, redisPort)
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisURL := fmt.Sprintf("redis://%s:%s", host, port.Port())

	cleanup := func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}

	return redisURL, cleanup
}

// runRedisGroup runs size members against a real Redis server, each with its
// own client as separate processes would.
func runRedisGroup(t *testing.T, redisURL string, size int, store Store, dims raster.Dims) error {
	t.Helper()

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	runID := uuid.NewString()
	g, gctx := errgroup.WithContext(ctx)
	var cleaner *mesh.RedisTransport
	for rank := 0; rank < size; rank++ {
		tr, err := mesh.NewRedisTransport(opts, runID, rank, size)
		require.NoError(t, err)
		if rank == 0 {
			cleaner = tr
		}
		comm, err := mesh.New(rank, size, tr)
		require.NoError(t, err)

		g.Go(func() error {
			var s Store
			if comm.IsRoot() {
				s = store
			}
			_, err := New(comm, s, nil).Run(gctx, Job{Dims: dims})
			return err
		})
	}
	err = g.Wait()

	require.NoError(t, cleaner.Cleanup(context.Background()))
	return err
}

func TestIntegration_PartitionInvarianceOverRedis(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	dims := raster.Dims{Width: 32, Height: 19}
	img := randomImage(dims.Width, dims.Height, 42)

	for _, size := range []int{1, 2, 4, 19, 23} {
		t.Run(fmt.Sprintf("P=%d", size), func(t *testing.T) {
			store := &memStore{input: img}
			require.NoError(t, runRedisGroup(t, redisURL, size, store, dims))

			for _, kind := range kernel.Kinds() {
				expected, err := kernel.ApplyImage(img, kind)
				require.NoError(t, err)
				assert.Equal(t, expected.Pix, store.outputs[kind].Pix, kind.String())
			}
		})
	}
}

func TestIntegration_LoadFailureAbortsOverRedis(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	store := &memStore{loadErr: fmt.Errorf("input unavailable")}
	err := runRedisGroup(t, redisURL, 3, store, raster.Dims{Width: 4, Height: 4})
	require.Error(t, err)
	assert.Nil(t, store.outputs)
}
