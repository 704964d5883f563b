package usecase

import (
	"context"

	"github.com/totegamma/culturebridge"
	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/nostr"
)

// RecordQuerier reads events from the configured relays.
// Returned events have verified signatures.
type RecordQuerier interface {
	QueryRecords(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error)
}

// RecordPublisher sends a signed event to every relay, one result per relay.
type RecordPublisher interface {
	Publish(ctx context.Context, ev nostr.Event) ([]domain.RelayResult, error)
}

// BlobUploader stores media on a blob server.
type BlobUploader interface {
	Upload(ctx context.Context, file domain.FileInput, signer nostr.Signer) (domain.BlobDescriptor, error)
}

// RevisionLog persists the revisions this node published.
type RevisionLog interface {
	Save(ctx context.Context, ev nostr.Event, results []domain.RelayResult) error
	History(ctx context.Context, address culturebridge.Address) ([]domain.ContentRecord, error)
	MarkDeleted(ctx context.Context, address culturebridge.Address) error
}

// Notifier announces new revisions to other processes.
type Notifier interface {
	NotifyRevision(ctx context.Context, record domain.ContentRecord) error
}
