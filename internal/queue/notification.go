// Package queue moves push-notification work off the request path using
// asynq on top of the same Redis instance the hub uses.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/longvu/wavechat/internal/model"
	"github.com/longvu/wavechat/internal/repository"
	"github.com/longvu/wavechat/pkg/notification"
	"gorm.io/gorm"
)

const (
	TypeMessageNotification = "notification:message"

	queueName = "notifications"
)

// messageNotificationPayload is the task payload for a new-message push
type messageNotificationPayload struct {
	MessageID    uuid.UUID   `json:"message_id"`
	RecipientIDs []uuid.UUID `json:"recipient_ids"`
}

// Client enqueues notification tasks. It implements service.Notifier;
// enqueue failures are logged and swallowed so a queue outage never fails
// a message send.
type Client struct {
	client *asynq.Client
}

// NewClient creates a queue client on the given Redis connection
func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

// NotifyMessage enqueues a push-notification task for a sent message
func (c *Client) NotifyMessage(recipientIDs []uuid.UUID, msg *model.Message) {
	payload, err := json.Marshal(messageNotificationPayload{
		MessageID:    msg.ID,
		RecipientIDs: recipientIDs,
	})
	if err != nil {
		log.Printf("⚠️ Failed to marshal notification payload: %v", err)
		return
	}

	task := asynq.NewTask(TypeMessageNotification, payload)
	if _, err := c.client.Enqueue(task, asynq.Queue(queueName), asynq.MaxRetry(3)); err != nil {
		log.Printf("⚠️ Failed to enqueue notification for message %s: %v", msg.ID, err)
	}
}

// Close releases the underlying asynq client
func (c *Client) Close() error {
	return c.client.Close()
}

// Worker consumes notification tasks and delivers FCM pushes
type Worker struct {
	server   *asynq.Server
	msgRepo  *repository.MessageRepository
	notifier *notification.FCMNotifier
}

// NewWorker creates a notification worker on the given Redis connection
func NewWorker(opt asynq.RedisClientOpt, concurrency int, msgRepo *repository.MessageRepository, notifier *notification.FCMNotifier) *Worker {
	if concurrency <= 0 {
		concurrency = 5
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
	})
	return &Worker{
		server:   server,
		msgRepo:  msgRepo,
		notifier: notifier,
	}
}

// Start runs the worker in a background goroutine
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeMessageNotification, w.handleMessageNotification)
	return w.server.Start(mux)
}

// Shutdown stops the worker, waiting for in-flight tasks
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleMessageNotification(ctx context.Context, t *asynq.Task) error {
	var payload messageNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}

	msg, err := w.msgRepo.FindByID(payload.MessageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Message gone, nothing to notify about
			return nil
		}
		return err
	}

	return w.notifier.Send(ctx, payload.RecipientIDs, msg)
}
