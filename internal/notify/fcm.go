package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMNotifier sends missed-call alerts via Firebase Cloud Messaging.
type FCMNotifier struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMNotifier initialises a Firebase app from the service-account JSON
// file at credentialsFile. If credentialsFile is empty, the SDK falls back
// to GOOGLE_APPLICATION_CREDENTIALS or the default service account.
func NewFCMNotifier(ctx context.Context, credentialsFile string, logger *slog.Logger) (*FCMNotifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining messaging client: %w", err)
	}

	logger.Info("fcm notifier initialised")
	return &FCMNotifier{client: client, logger: logger.With("subsystem", "notify")}, nil
}

// NotifyMissedCall delivers a data push to the owner's device. Only the
// "fcm" platform is handled; APNs tokens are rejected.
func (f *FCMNotifier) NotifyMissedCall(ctx context.Context, mc MissedCall) error {
	if mc.OwnerPushOS != "fcm" {
		return fmt.Errorf("fcm notifier: unsupported platform %q", mc.OwnerPushOS)
	}

	ttl := 30 * time.Second
	msg := &messaging.Message{
		Token: mc.OwnerPushToken,
		Data: map[string]string{
			"type":          "missed_call",
			"event_id":      mc.EventID,
			"caller_number": mc.CallerNumber,
			"disposition":   mc.Disposition,
			"reply_stage":   mc.ReplyStage,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      &ttl,
		},
	}

	id, err := f.client.Send(ctx, msg)
	if err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("fcm: token no longer valid: %w", err)
		}
		return fmt.Errorf("fcm: send failed: %w", err)
	}

	f.logger.Debug("fcm message sent", "message_id", id, "event_id", mc.EventID)
	return nil
}
