package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// fcmBatchLimit is the multicast cap of the FCM API.
const fcmBatchLimit = 500

const androidChannel = "visitor_requests"

type multicaster interface {
	SendEachForMulticast(ctx context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender sends through Firebase Cloud Messaging.
type FCMSender struct {
	client  multicaster
	invalid func(error) bool
	logger  *zap.Logger
}

type FCMConfig struct {
	ProjectID       string
	CredentialsFile string
}

func NewFCMSender(ctx context.Context, cfg FCMConfig, logger *zap.Logger) (*FCMSender, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return newFCMSender(client, logger), nil
}

func newFCMSender(c multicaster, logger *zap.Logger) *FCMSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FCMSender{client: c, invalid: invalidToken, logger: logger.Named("push.fcm")}
}

func (s *FCMSender) Send(ctx context.Context, tokens []string, msg Message) ([]Result, error) {
	out := make([]Result, 0, len(tokens))
	for start := 0; start < len(tokens); start += fcmBatchLimit {
		end := min(start+fcmBatchLimit, len(tokens))
		chunk := tokens[start:end]

		resp, err := s.client.SendEachForMulticast(ctx, multicast(chunk, msg))
		if err != nil {
			if len(out) == 0 {
				return nil, fmt.Errorf("fcm multicast: %w", err)
			}
			// Earlier chunks were delivered; report the rest as failed.
			for _, t := range tokens[start:] {
				out = append(out, Result{Token: t, Err: err})
			}
			return out, nil
		}

		for i, t := range chunk {
			r := Result{Token: t}
			if i < len(resp.Responses) && !resp.Responses[i].Success {
				r.Err = resp.Responses[i].Error
				r.Invalid = s.invalid(r.Err)
			}
			out = append(out, r)
		}
		s.logger.Debug("fcm batch sent",
			zap.Int("success", resp.SuccessCount), zap.Int("failure", resp.FailureCount))
	}
	return out, nil
}

func multicast(tokens []string, msg Message) *messaging.MulticastMessage {
	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["click_action"] = "FLUTTER_NOTIFICATION_CLICK"

	badge := 1
	return &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: androidChannel,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default", Badge: &badge, ContentAvailable: true},
			},
		},
	}
}

func invalidToken(err error) bool {
	return err != nil && (messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err))
}
