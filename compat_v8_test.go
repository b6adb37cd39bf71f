package redistore

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredisv8 "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A secondary compatibility pass using the older go-redis v8 client,
// exercising the same wire protocol through a different driver's request
// encoding to catch anything the v9 client's framing happens not to
// stress.
func TestV8ClientCompat(t *testing.T) {
	port := getFreePort(t)
	server := NewServer(fmt.Sprintf("127.0.0.1:%d", port))

	go func() {
		if err := server.Serve(); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	client := goredisv8.NewClient(&goredisv8.Options{
		Addr: fmt.Sprintf("127.0.0.1:%d", port),
	})
	defer client.Close()

	ctx := context.Background()
	require.Eventually(t, func() bool {
		return client.Ping(ctx).Err() == nil
	}, 2*time.Second, 10*time.Millisecond)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	got, err := client.Get(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	n, err := client.Del(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
