package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/huangang/projecthub/internal/config"
	"github.com/huangang/projecthub/internal/models"
	"github.com/huangang/projecthub/pkg/logger"
)

const (
	TaskTypeMembershipEvent = "membership:event"
)

type EventType string

const (
	EventProjectCreated   EventType = "project.created"
	EventProjectDeleted   EventType = "project.deleted"
	EventContributorAdded EventType = "contributor.added"
	EventRoleUpdated      EventType = "contributor.role_updated"
	EventContributorLeft  EventType = "contributor.removed"
)

// MembershipEvent describes one committed change to who can reach a project.
type MembershipEvent struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	ProjectID    uint        `json:"project_id"`
	UserID       uint        `json:"user_id"`
	ActorID      uint        `json:"actor_id"`
	Role         models.Role `json:"role,omitempty"`
	PreviousRole models.Role `json:"previous_role,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// NewMembershipEvent stamps an event with a fresh id and the current time.
func NewMembershipEvent(typ EventType, projectID, userID, actorID uint) *MembershipEvent {
	return &MembershipEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		ProjectID:  projectID,
		UserID:     userID,
		ActorID:    actorID,
		OccurredAt: time.Now(),
	}
}

// EventProcessor consumes membership events, on either queue flavour.
type EventProcessor func(context.Context, *MembershipEvent) error

// EventQueue publishes membership events after the change has committed.
type EventQueue interface {
	// Enqueue hands the event off; delivery failures never undo the change
	Enqueue(ctx context.Context, event *MembershipEvent) error
	// IsAsync returns true if events are processed by a separate worker
	IsAsync() bool
	Close() error
}

var (
	globalEventQueue EventQueue
	eventQueueOnce   sync.Once
)

// InitEventQueue picks the async queue when Redis is enabled and
// reachable, and the in-process queue otherwise.
func InitEventQueue(cfg *config.Config, processor EventProcessor) EventQueue {
	eventQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Warnf("[EventQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalEventQueue = NewSyncQueue(processor)
			} else {
				logger.Infof("[EventQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalEventQueue = queue
			}
		} else {
			logger.Infof("[EventQueue] Sync queue initialized (Redis disabled)")
			globalEventQueue = NewSyncQueue(processor)
		}
	})
	return globalEventQueue
}

func GetEventQueue() EventQueue {
	return globalEventQueue
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements EventQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func newEventTask(event *MembershipEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMembershipEvent, payload, asynq.TaskID(event.ID)), nil
}

func (q *AsyncQueue) Enqueue(ctx context.Context, event *MembershipEvent) error {
	t, err := newEventTask(event)
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("type", string(event.Type)).Uint("project_id", event.ProjectID).Msg("[AsyncQueue] Event enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements EventQueue by running the processor in the
// caller's goroutine.
type SyncQueue struct {
	processor EventProcessor
}

func NewSyncQueue(processor EventProcessor) *SyncQueue {
	return &SyncQueue{processor: processor}
}

func (q *SyncQueue) Enqueue(ctx context.Context, event *MembershipEvent) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] No processor set, event %s dropped", event.ID)
		return nil
	}

	// detached from request cancellation
	if err := q.processor(context.WithoutCancel(ctx), event); err != nil {
		logger.Errorf("[SyncQueue] Event processing failed: %v", err)
	}
	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}
