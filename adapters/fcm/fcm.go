// Package fcm implements livechat.PushProvider with Firebase Cloud Messaging.
//
// Example usage:
//
//	push, err := livechat.NewPushFanoutService(ctx,
//	    livechat.WithTokenSource(store),
//	    livechat.WithProviderFactory(fcm.NewProviderFactory(credentialsFile, logger)),
//	)
package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/coregx/livechat"
	"google.golang.org/api/option"
)

// Sender is the part of the Firebase messaging client used by Provider.
// *messaging.Client implements it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Provider sends chat notifications through FCM.
type Provider struct {
	client Sender
	logger livechat.Logger
}

// NewProvider wraps an existing messaging client.
func NewProvider(client Sender, logger livechat.Logger) *Provider {
	return &Provider{client: client, logger: livechat.WithComponent(logger, "fcm")}
}

// NewProviderFactory returns a livechat.ProviderFactory that initializes a
// Firebase app from credentialsFile. An empty path uses Application Default
// Credentials.
func NewProviderFactory(credentialsFile string, logger livechat.Logger) livechat.ProviderFactory {
	return func(ctx context.Context) (livechat.PushProvider, error) {
		var opts []option.ClientOption
		if credentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(credentialsFile))
		}

		app, err := firebase.NewApp(ctx, nil, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
		}

		client, err := app.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get messaging client: %w", err)
		}

		return NewProvider(client, logger), nil
	}
}

// Send delivers n to a single device token.
// Unregistered or malformed tokens are reported as permanent failures.
func (p *Provider) Send(ctx context.Context, token string, n livechat.Notification) error {
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
			},
		},
	}

	id, err := p.client.Send(ctx, message)
	if err != nil {
		// The messaging error helpers do not unwrap, so classify before wrapping.
		permanent := isPermanent(err)
		err = fmt.Errorf("failed to send FCM message: %w", err)
		if permanent {
			return livechat.Permanent(err)
		}
		return err
	}

	p.logger.Debugf("FCM message sent: %s", id)
	return nil
}

func isPermanent(err error) bool {
	return messaging.IsUnregistered(err) ||
		messaging.IsInvalidArgument(err) ||
		messaging.IsSenderIDMismatch(err)
}
