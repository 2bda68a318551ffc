package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"statusgate/internal/models"
)

// EventsKey is the Redis list holding pending admission events.
const EventsKey = "statusgate:admission_events"

var (
	// ErrEmpty means no event arrived before the pop timeout.
	ErrEmpty = errors.New("queue empty")
	// ErrMalformed means an entry could not be decoded. It has been consumed.
	ErrMalformed = errors.New("malformed admission event")
)

var Client *redis.Client

// Init connects to Redis and pings it to ensure it's alive. On failure the
// client is closed and Client is left nil.
func Init(addr string) error {
	Client = redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Client.Ping(ctx).Err(); err != nil {
		Client.Close()
		Client = nil
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

// Consumer pops admission events off the list.
type Consumer struct {
	client  redis.Cmdable
	key     string
	timeout time.Duration
}

// NewConsumer returns a Consumer that blocks at most timeout per pop, so a
// cancelled context is noticed promptly.
func NewConsumer(client redis.Cmdable, timeout time.Duration) *Consumer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Consumer{client: client, key: EventsKey, timeout: timeout}
}

func (c *Consumer) Next(ctx context.Context) (models.AdmissionEvent, error) {
	// BLPOP returns: [queue_name, value]
	result, err := c.client.BLPop(ctx, c.timeout, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return models.AdmissionEvent{}, ErrEmpty
	}
	if err != nil {
		return models.AdmissionEvent{}, err
	}

	var e models.AdmissionEvent
	if err := json.Unmarshal([]byte(result[1]), &e); err != nil {
		return models.AdmissionEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return e, nil
}
