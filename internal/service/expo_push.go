package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"campusnotify/internal/model"
)

const (
	expoPushURL  = "https://exp.host/--/api/v2/push/send"
	expoMaxBatch = 100

	expoErrDeviceNotRegistered = "DeviceNotRegistered"
)

// ExpoPushClient sends push notifications through Expo's Push API for apps
// built with Expo. Expo needs no server credentials.
type ExpoPushClient struct {
	httpClient *http.Client
	endpoint   string
	log        logrus.FieldLogger
}

// ExpoPushMessage is the payload for Expo's Push API.
type ExpoPushMessage struct {
	To       []string          `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

// ExpoPushResponse is the response from Expo's API.
type ExpoPushResponse struct {
	Data []ExpoPushTicket `json:"data"`
}

// ExpoPushTicket is the per-token outcome, in request order.
type ExpoPushTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"` // "DeviceNotRegistered", "MessageTooBig", etc.
	} `json:"details,omitempty"`
}

func NewExpoPushClient(log logrus.FieldLogger) *ExpoPushClient {
	return &ExpoPushClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   expoPushURL,
		log:        log,
	}
}

func (c *ExpoPushClient) Name() string { return "expo" }

func (c *ExpoPushClient) MaxBatch() int { return expoMaxBatch }

func (c *ExpoPushClient) Accepts(token string) bool { return model.IsExpoToken(token) }

// SendMulticast posts one batch. Tickets are matched to tokens by position.
func (c *ExpoPushClient) SendMulticast(ctx context.Context, tokens []string, msg model.PushMessage, data map[string]string) ([]model.PushResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(ExpoPushMessage{
		To:       tokens,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     data,
		Sound:    "default",
		Priority: "high",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("expo api error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var pushResp ExpoPushResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]model.PushResult, len(tokens))
	for i, token := range tokens {
		results[i] = model.PushResult{Token: token}
		if i >= len(pushResp.Data) {
			results[i].Err = fmt.Errorf("no ticket for token")
			continue
		}
		ticket := pushResp.Data[i]
		if ticket.Status == "ok" {
			results[i].Success = true
			continue
		}
		results[i].Err = fmt.Errorf("expo: %s (%s)", ticket.Message, ticket.Details.Error)
		results[i].Permanent = ticket.Details.Error == expoErrDeviceNotRegistered
	}
	return results, nil
}
