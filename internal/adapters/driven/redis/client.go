package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// Connect parses a redis:// URL, opens a client and checks it answers.
// The caller owns the client and must close it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis url: %v", domain.ErrConfiguration, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: connect to redis: %v", domain.ErrStorage, err)
	}
	return client, nil
}
