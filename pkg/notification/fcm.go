package notification

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/model"
	"github.com/longvu/wavechat/internal/repository"
	"google.golang.org/api/option"
)

// FCMNotifier sends push notifications for new messages via Firebase Cloud
// Messaging. A nil notifier is valid and does nothing, so the server runs
// fine without Firebase credentials.
type FCMNotifier struct {
	client   *messaging.Client
	userRepo *repository.UserRepository
}

// NewFCMNotifier creates an FCM notifier from a service-account credential file
func NewFCMNotifier(credentialsFile string, userRepo *repository.UserRepository) (*FCMNotifier, error) {
	if credentialsFile == "" {
		log.Println("⚠️ Firebase credentials not provided, push notifications disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("⚠️ Failed to initialize Firebase app: %v (push notifications disabled)", err)
		return nil, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("⚠️ Failed to get messaging client: %v", err)
		return nil, nil
	}

	log.Println("✅ Firebase FCM initialized")
	return &FCMNotifier{
		client:   client,
		userRepo: userRepo,
	}, nil
}

// Send pushes a new-message notification to every device of the given users
func (n *FCMNotifier) Send(ctx context.Context, recipientIDs []uuid.UUID, msg *model.Message) error {
	if n == nil || n.client == nil || len(recipientIDs) == 0 {
		return nil
	}

	tokens, err := n.userRepo.GetDeviceTokens(recipientIDs)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	content := msg.Content
	if content == "" {
		content = "Sent an attachment"
	}

	multicast := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Sender.Name,
			Body:  content,
		},
		Data: map[string]string{
			"type":            model.WSEventMessageSent,
			"conversation_id": msg.ConversationID.String(),
			"message_id":      msg.ID.String(),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	br, err := n.client.SendMulticast(ctx, multicast)
	if err != nil {
		return fmt.Errorf("error sending multicast message: %w", err)
	}

	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if !resp.Success {
				log.Printf("⚠️ FCM failure for token %s: %v", tokens[idx], resp.Error)
			}
		}
	}

	return nil
}
