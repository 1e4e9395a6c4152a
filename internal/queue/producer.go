package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// streamMaxLen caps the stream; trimming is approximate.
const streamMaxLen = 100_000

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Enqueue(ctx context.Context, task Task) (string, error) {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: task.values(),
	}).Result()
}

func (p *Producer) EnqueuePreview(ctx context.Context, imageID string) error {
	_, err := p.Enqueue(ctx, Task{Kind: KindPreview, ImageID: imageID})
	return err
}
