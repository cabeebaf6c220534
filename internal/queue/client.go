package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Client enqueues prewarm tasks. Tasks are unique per payload while pending,
// so re-uploading identical bytes does not pile duplicate transforms onto
// the queue.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

func (c *Client) EnqueuePrewarm(ctx context.Context, payload PrewarmPayload) (*asynq.TaskInfo, error) {
	task, err := NewPrewarmTask(payload)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Unique(5*time.Minute),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		// An identical variant is already pending; nothing to do.
		return info, nil
	}
	return info, err
}

func (c *Client) Close() error {
	return c.client.Close()
}
