package cache

import (
	"context"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
)

// Client is the shared redis handle, used as a read-through cache for
// query log pages. A nil Client degrades callers to uncached reads.
var Client *redis.Client

// InitRedis initializes the redis connection
func InitRedis(addr, password string, db int) error {
	Client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := Client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✓ Redis connected successfully")
	return nil
}

// Close closes the redis connection
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}
