package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/muni-digital/turnos-api/internal/display"
	"github.com/muni-digital/turnos-api/internal/models"
	"github.com/muni-digital/turnos-api/pkg/config"
	"github.com/muni-digital/turnos-api/pkg/jobs"
)

// Dispatcher delivers turn events to displays after the owning transaction
// has committed. Events travel through the worker queue onto a Redis channel
// per department; every instance (this one included) subscribes and feeds its
// local hub, so a single publish reaches displays on all instances. When
// Redis is down the handler falls back to broadcasting locally.
type Dispatcher struct {
	queue  *jobs.Queue
	hub    *display.Hub
	redis  *redis.Client
	prefix string
	logger *zap.Logger

	cancelSub context.CancelFunc
}

// NewDispatcher constructs the dispatcher. The queue is created here but not
// started; call Start once the process is ready to deliver.
func NewDispatcher(hub *display.Hub, redisClient *redis.Client, cfg config.DispatchConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = "display"
	}
	d := &Dispatcher{
		hub:    hub,
		redis:  redisClient,
		prefix: prefix,
		logger: logger,
	}
	d.queue = jobs.NewQueue("turn-events", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the delivery workers and the Redis subscription loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
	if d.redis != nil {
		subCtx, cancel := context.WithCancel(ctx)
		d.cancelSub = cancel
		go d.subscribe(subCtx)
	}
}

// Stop drains the workers and tears down the subscription.
func (d *Dispatcher) Stop() {
	if d.cancelSub != nil {
		d.cancelSub()
	}
	d.queue.Stop()
}

// Dispatch enqueues committed events for delivery. Callers invoke this only
// after their transaction commits; a rolled-back operation never reaches
// here. Delivery is best effort, failures are logged and never propagate
// back into the request path.
func (d *Dispatcher) Dispatch(events []models.TurnEvent) {
	for _, event := range events {
		err := d.queue.Enqueue(jobs.Job{
			ID:      fmt.Sprintf("%s:%s", event.Kind, event.TurnID),
			Type:    event.Kind,
			Payload: event,
		})
		if err != nil {
			d.logger.Warn("failed to enqueue turn event",
				zap.String("kind", event.Kind),
				zap.String("turn_id", event.TurnID),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.TurnEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal turn event: %w", err)
	}
	if d.redis == nil {
		d.hub.Broadcast(event.DepartmentID, payload)
		return nil
	}
	channel := d.channelFor(event.DepartmentID)
	if err := d.redis.Publish(ctx, channel, payload).Err(); err != nil {
		d.logger.Warn("redis publish failed, broadcasting locally",
			zap.String("channel", channel),
			zap.Error(err))
		d.hub.Broadcast(event.DepartmentID, payload)
	}
	return nil
}

func (d *Dispatcher) subscribe(ctx context.Context) {
	sub := d.redis.PSubscribe(ctx, d.prefix+":*")
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			departmentID := strings.TrimPrefix(msg.Channel, d.prefix+":")
			d.hub.Broadcast(departmentID, []byte(msg.Payload))
		}
	}
}

func (d *Dispatcher) channelFor(departmentID string) string {
	return d.prefix + ":" + departmentID
}
