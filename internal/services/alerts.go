package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"binsight-backend/internal/metrics"
)

// DefaultAlertTopic is the FCM topic operators' devices subscribe to
const DefaultAlertTopic = "critical-bins"

// Notifier is told when a bin crosses into a new severity band
type Notifier interface {
	NotifyBandChange(ctx context.Context, binID, name string, fillPercent float64, from, to SeverityBand) error
}

// messageSender is the part of *messaging.Client the alert service uses
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// AlertService pushes Firebase Cloud Messaging alerts to a topic
type AlertService struct {
	client messageSender
	topic  string
}

// NewAlertService creates an alert service from a credentials file
func NewAlertService(ctx context.Context, credentialsFile, topic string) (*AlertService, error) {
	return newAlertService(ctx, topic, option.WithCredentialsFile(credentialsFile))
}

// NewAlertServiceFromBase64 creates an alert service from base64-encoded credentials.
// Useful for cloud deployments where files can't be uploaded easily.
func NewAlertServiceFromBase64(ctx context.Context, credentialsBase64, topic string) (*AlertService, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
	}
	return newAlertService(ctx, topic, option.WithCredentialsJSON(credentialsJSON))
}

func newAlertService(ctx context.Context, topic string, opt option.ClientOption) (*AlertService, error) {
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	if topic == "" {
		topic = DefaultAlertTopic
	}
	return &AlertService{client: client, topic: topic}, nil
}

// NotifyBandChange sends a topic alert when a bin becomes critical.
// Other transitions are ignored.
func (s *AlertService) NotifyBandChange(ctx context.Context, binID, name string, fillPercent float64, from, to SeverityBand) error {
	if to != SeverityCritical || from == SeverityCritical {
		return nil
	}

	message := &messaging.Message{
		Topic: s.topic,
		Notification: &messaging.Notification{
			Title: "Bin needs collection",
			Body:  fmt.Sprintf("%s is %.0f%% full.", name, fillPercent),
		},
		Data: map[string]string{
			"type":         "bin_critical",
			"bin_id":       binID,
			"fill_percent": strconv.FormatFloat(fillPercent, 'f', 1, 64),
			"severity":     to.String(),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}

	response, err := s.client.Send(ctx, message)
	if err != nil {
		metrics.AlertsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("error sending FCM message: %w", err)
	}

	metrics.AlertsSent.WithLabelValues("sent").Inc()
	log.Printf("✅ Critical alert sent for %s: %s", binID, response)
	return nil
}
