// Package activitymap turns account activity events into a flat record
// that audit stores and log pipelines can ingest.
package activitymap

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	accounts "github.com/goliatone/go-accounts"
)

const (
	MetadataKeyActorType  = "actor_type"
	MetadataKeyActorName  = "actor_name"
	MetadataKeyFromStatus = "from_status"
	MetadataKeyToStatus   = "to_status"
)

const (
	defaultChannel    = "accounts"
	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
}

// Normalize converts an accounts.ActivityEvent into a Normalized record. The
// event metadata is copied, never modified.
func Normalize(event accounts.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			options.actorFallback,
		),
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

func WithObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event names no actor or user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// NewLogSink returns an ActivitySink that writes each normalized event as
// one structured log entry.
func NewLogSink(logger *zap.Logger, opts ...Option) accounts.ActivitySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return accounts.ActivitySinkFunc(func(_ context.Context, event accounts.ActivityEvent) error {
		record := Normalize(event, opts...)
		logger.Info("activity",
			zap.String("verb", record.Verb),
			zap.String("actor_id", record.ActorID),
			zap.String("object_type", record.ObjectType),
			zap.String("object_id", record.ObjectID),
			zap.String("channel", record.Channel),
			zap.Any("metadata", record.Metadata),
			zap.Time("occurred_at", record.OccurredAt),
		)
		return nil
	})
}

func normalizeMetadata(event accounts.ActivityEvent) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+4)
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	setDefault := func(key, value string) {
		if value == "" {
			return
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}
	setDefault(MetadataKeyActorType, strings.TrimSpace(event.Actor.Type))
	setDefault(MetadataKeyActorName, strings.TrimSpace(event.Actor.Name))

	if event.FromStatus != "" {
		metadata[MetadataKeyFromStatus] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		metadata[MetadataKeyToStatus] = string(event.ToStatus)
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
