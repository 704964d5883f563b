package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/totegamma/culturebridge"
	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/nostr"
	"github.com/totegamma/culturebridge/schemas"
)

const DefaultListLimit = 50

type CreateInput struct {
	Kind   int
	Fields domain.Fields
	Files  []domain.FileInput
	Signer nostr.Signer
}

type RecordUsecase struct {
	querier   RecordQuerier
	publisher RecordPublisher
	uploader  BlobUploader
	validator *Validator
	revisions RevisionLog
	notifier  Notifier
	now       func() time.Time
}

func NewRecordUsecase(
	querier RecordQuerier,
	publisher RecordPublisher,
	uploader BlobUploader,
	validator *Validator,
	revisions RevisionLog,
	notifier Notifier,
) *RecordUsecase {
	return &RecordUsecase{
		querier:   querier,
		publisher: publisher,
		uploader:  uploader,
		validator: validator,
		revisions: revisions,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Create publishes the first revision of a new record under a fresh identifier.
func (uc *RecordUsecase) Create(ctx context.Context, input CreateInput) (RepublishResult, error) {
	ctx, span := tracer.Start(ctx, "Record.Usecase.Create")
	defer span.End()

	if schemas.MarkerForKind(input.Kind) == "" {
		err := fmt.Errorf("unsupported record kind %d", input.Kind)
		span.RecordError(err)
		return RepublishResult{}, err
	}
	if input.Signer == nil {
		return RepublishResult{}, fmt.Errorf("no signer available")
	}
	pubkey, err := input.Signer.PublicKey(ctx)
	if err != nil {
		span.RecordError(err)
		return RepublishResult{}, errors.Wrap(err, "failed to read signer public key")
	}

	var result RepublishResult
	uploaded, outcome, failures, err := validateAndUpload(ctx, uc.validator, uc.uploader, input.Files, input.Signer)
	result.InvalidFiles = outcome.InvalidFiles
	result.UploadFailures = failures
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	now := uc.now()
	record := domain.ContentRecord{
		Address: culturebridge.Address{
			Kind:       input.Kind,
			PubKey:     pubkey,
			Identifier: uuid.NewString(),
		},
		Fields:      input.Fields,
		Attachments: uploaded,
		PublishedAt: time.Unix(now.Unix(), 0).UTC(),
	}

	ev := domain.EventFromRecord(record, nostr.Timestamp(now.Unix()))
	accepted, rejected, err := signAndPublish(ctx, uc.publisher, input.Signer, &ev)
	result.Rejected = rejected
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	record.RevisionID = ev.ID
	record.CreatedAt = ev.CreatedAt.Time()
	record.PublishedDestinations = accepted

	result.Success = true
	result.RevisionID = ev.ID
	result.Record = record
	result.Accepted = accepted

	recordRevision(ctx, uc.revisions, uc.notifier, ev, record, accepted, rejected)

	return result, nil
}

// Get returns the newest revision at address.
func (uc *RecordUsecase) Get(ctx context.Context, address culturebridge.Address) (domain.ContentRecord, error) {
	return latestRevision(ctx, uc.querier, address)
}

// List returns the newest revision of each record of kind, most recent first.
func (uc *RecordUsecase) List(ctx context.Context, kind int, author string, limit int) ([]domain.ContentRecord, error) {
	ctx, span := tracer.Start(ctx, "Record.Usecase.List")
	defer span.End()

	marker := schemas.MarkerForKind(kind)
	if marker == "" {
		return nil, fmt.Errorf("unsupported record kind %d", kind)
	}
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	filter := nostr.Filter{
		Kinds: []int{kind},
		Tags:  nostr.TagMap{"t": {marker}},
		Limit: limit * 4,
	}
	if author != "" {
		filter.Authors = []string{author}
	}

	events, err := uc.querier.QueryRecords(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to query relays")
	}

	newest := map[string]nostr.Event{}
	for _, ev := range events {
		key := culturebridge.ComposeAddress(ev.Kind, ev.PubKey, ev.Tags.GetD())
		prev, ok := newest[key]
		if !ok || ev.CreatedAt > prev.CreatedAt || (ev.CreatedAt == prev.CreatedAt && ev.ID < prev.ID) {
			newest[key] = ev
		}
	}

	records := make([]domain.ContentRecord, 0, len(newest))
	for _, ev := range newest {
		record, err := domain.RecordFromEvent(ev)
		if err != nil {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].RevisionID < records[j].RevisionID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete publishes a deletion request for every revision at address.
func (uc *RecordUsecase) Delete(ctx context.Context, address culturebridge.Address, reason string, signer nostr.Signer) ([]string, []domain.RelayResult, error) {
	ctx, span := tracer.Start(ctx, "Record.Usecase.Delete")
	defer span.End()

	if err := checkOwner(ctx, signer, address); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	current, err := latestRevision(ctx, uc.querier, address)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	ev := nostr.Event{
		CreatedAt: nostr.Timestamp(uc.now().Unix()),
		Kind:      nostr.KindDeletion,
		Tags: nostr.Tags{
			{"a", address.String()},
			{"e", current.RevisionID},
			{"k", fmt.Sprint(address.Kind)},
		},
		Content: reason,
	}

	accepted, rejected, err := signAndPublish(ctx, uc.publisher, signer, &ev)
	if err != nil {
		span.RecordError(err)
		return nil, rejected, err
	}

	if uc.revisions != nil {
		if err := uc.revisions.MarkDeleted(ctx, address); err != nil {
			slog.ErrorContext(
				ctx, "failed to mark record deleted",
				slog.String("error", err.Error()),
				slog.String("module", "record"),
			)
		}
	}
	return accepted, rejected, nil
}

// History lists the revisions this node published for address.
func (uc *RecordUsecase) History(ctx context.Context, address culturebridge.Address) ([]domain.ContentRecord, error) {
	if uc.revisions == nil {
		return []domain.ContentRecord{}, nil
	}
	return uc.revisions.History(ctx, address)
}
