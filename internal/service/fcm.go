package service

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"campusnotify/internal/model"
)

// fcmMaxBatch is the SendEachForMulticast token limit.
const fcmMaxBatch = 500

// multicastSender is the part of *messaging.Client the provider uses.
type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMClient delivers to native Android, iOS and web tokens through Firebase
// Cloud Messaging.
//
// Credentials come from a Firebase service account (project id, client email
// and PEM private key).
type FCMClient struct {
	client      multicastSender
	isPermanent func(error) bool
	log         logrus.FieldLogger
}

// NewFCMClient builds a client from service account fields. The private key
// may carry literal "\n" sequences as it usually does in .env files.
func NewFCMClient(ctx context.Context, projectID, clientEmail, privateKey string, log logrus.FieldLogger) (*FCMClient, error) {
	privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log.WithField("project_id", projectID).Info("FCM initialized")
	return newFCMClient(client, log), nil
}

func newFCMClient(client multicastSender, log logrus.FieldLogger) *FCMClient {
	return &FCMClient{client: client, isPermanent: isPermanentFCMError, log: log}
}

// isPermanentFCMError reports errors after which a token will never succeed.
func isPermanentFCMError(err error) bool {
	return messaging.IsUnregistered(err) ||
		messaging.IsInvalidArgument(err) ||
		messaging.IsSenderIDMismatch(err)
}

func (c *FCMClient) Name() string { return "fcm" }

func (c *FCMClient) MaxBatch() int { return fcmMaxBatch }

// Accepts takes every token that is not an Expo token.
func (c *FCMClient) Accepts(token string) bool { return !model.IsExpoToken(token) }

// SendMulticast sends one batch. The returned results are index-aligned with tokens.
func (c *FCMClient) SendMulticast(ctx context.Context, tokens []string, msg model.PushMessage, data map[string]string) ([]model.PushResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
		Notification: &messaging.Notification{
			Title:    msg.Title,
			Body:     msg.Body,
			ImageURL: msg.ImageURL,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	response, err := c.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("send multicast: %w", err)
	}

	results := make([]model.PushResult, len(tokens))
	for i, token := range tokens {
		results[i] = model.PushResult{Token: token}
		if i >= len(response.Responses) || response.Responses[i] == nil {
			results[i].Err = fmt.Errorf("no response for token")
			continue
		}
		r := response.Responses[i]
		results[i].Success = r.Success
		if !r.Success {
			results[i].Err = r.Error
			results[i].Permanent = r.Error != nil && c.isPermanent(r.Error)
		}
	}

	c.log.WithFields(logrus.Fields{
		"tokens":  len(tokens),
		"success": response.SuccessCount,
		"failure": response.FailureCount,
	}).Debug("FCM batch sent")
	return results, nil
}
