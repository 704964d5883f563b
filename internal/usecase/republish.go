package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/culturebridge"
	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/nostr"
)

// RepublishInput describes one edit of an existing record.
// A nil KeptAttachmentIDs keeps every existing attachment (legacy additive
// mode); an empty non-nil slice removes them all. A replaced target left out
// of KeptAttachmentIDs is kept anyway when the files keyed by its
// replacement fail.
type RepublishInput struct {
	Address            culturebridge.Address
	Updates            domain.FieldUpdates
	NewFiles           []domain.FileInput
	KeptAttachmentIDs  []string
	Order              []string
	Replacements       []domain.Replacement
	ExpectedRevisionID string
	Signer             nostr.Signer
}

type RepublishResult struct {
	Success        bool                   `json:"success"`
	Noop           bool                   `json:"noop,omitempty"`
	RevisionID     string                 `json:"revisionId,omitempty"`
	Record         domain.ContentRecord   `json:"record"`
	Accepted       []string               `json:"accepted"`
	Rejected       []domain.RelayResult   `json:"rejected,omitempty"`
	UploadFailures []domain.UploadFailure `json:"uploadFailures,omitempty"`
	InvalidFiles   []domain.InvalidFile   `json:"invalidFiles,omitempty"`
}

type RepublishUsecase struct {
	querier   RecordQuerier
	publisher RecordPublisher
	uploader  BlobUploader
	validator *Validator
	revisions RevisionLog
	notifier  Notifier
	now       func() time.Time
}

func NewRepublishUsecase(
	querier RecordQuerier,
	publisher RecordPublisher,
	uploader BlobUploader,
	validator *Validator,
	revisions RevisionLog,
	notifier Notifier,
) *RepublishUsecase {
	return &RepublishUsecase{
		querier:   querier,
		publisher: publisher,
		uploader:  uploader,
		validator: validator,
		revisions: revisions,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Republish fetches the newest revision, uploads the new files, merges the
// attachment sets and publishes a replacement revision under the same
// address. On total publish failure the previous revision stays canonical.
func (uc *RepublishUsecase) Republish(ctx context.Context, input RepublishInput) (RepublishResult, error) {
	ctx, span := tracer.Start(ctx, "Republish.Usecase.Republish")
	defer span.End()
	span.SetAttributes(attribute.String("address", input.Address.String()))

	if err := checkOwner(ctx, input.Signer, input.Address); err != nil {
		span.RecordError(err)
		return RepublishResult{}, err
	}

	current, err := latestRevision(ctx, uc.querier, input.Address)
	if err != nil {
		span.RecordError(err)
		return RepublishResult{}, err
	}

	if input.ExpectedRevisionID != "" && input.ExpectedRevisionID != current.RevisionID {
		err := domain.ConflictError{Expected: input.ExpectedRevisionID, Current: current.RevisionID}
		span.RecordError(err)
		return RepublishResult{}, err
	}

	result := RepublishResult{Record: current, RevisionID: current.RevisionID}

	uploaded, outcome, failures, err := validateAndUpload(ctx, uc.validator, uc.uploader, input.NewFiles, input.Signer)
	result.InvalidFiles = outcome.InvalidFiles
	result.UploadFailures = failures
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	kept, order := input.KeptAttachmentIDs, input.Order
	if len(input.Replacements) > 0 {
		failed := failedKeys(result.UploadFailures, result.InvalidFiles)
		kept = domain.RestoreReplaced(kept, input.Replacements, failed)
		order = domain.RestoreReplaced(order, input.Replacements, failed)
	}

	selection := domain.SelectionFrom(kept)
	if selection.IsAll() {
		slog.WarnContext(
			ctx, "republish without an explicit kept set, keeping every attachment",
			slog.String("address", input.Address.String()),
			slog.String("module", "republish"),
		)
	}

	merged := domain.Merge(domain.Reorder(current.Attachments, order), selection, uploaded)
	if err := uc.validator.CheckMerged(merged); err != nil {
		span.RecordError(err)
		return result, err
	}

	fields, changed := input.Updates.Apply(current.Fields)
	if !changed && domain.SameSequence(merged, current.Attachments) {
		slog.InfoContext(
			ctx, "nothing changed, skipping publish",
			slog.String("address", input.Address.String()),
			slog.String("module", "republish"),
		)
		result.Success = true
		result.Noop = true
		return result, nil
	}

	next := domain.ContentRecord{
		Address:     current.Address,
		Fields:      fields,
		Attachments: merged,
		PublishedAt: current.PublishedAt,
	}

	ev := domain.EventFromRecord(next, nextCreatedAt(uc.now(), current.CreatedAt))
	accepted, rejected, err := signAndPublish(ctx, uc.publisher, input.Signer, &ev)
	result.Rejected = rejected
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	next.RevisionID = ev.ID
	next.CreatedAt = ev.CreatedAt.Time()
	next.PublishedDestinations = accepted

	result.Success = true
	result.RevisionID = ev.ID
	result.Record = next
	result.Accepted = accepted

	recordRevision(ctx, uc.revisions, uc.notifier, ev, next, accepted, rejected)

	return result, nil
}

// recordRevision logs and announces a published revision. Failures are only logged.
func recordRevision(ctx context.Context, revisions RevisionLog, notifier Notifier, ev nostr.Event, record domain.ContentRecord, accepted []string, rejected []domain.RelayResult) {
	if revisions != nil {
		results := make([]domain.RelayResult, 0, len(accepted)+len(rejected))
		for _, relay := range accepted {
			results = append(results, domain.RelayResult{Relay: relay, Outcome: domain.RelayAccepted})
		}
		results = append(results, rejected...)

		if err := revisions.Save(ctx, ev, results); err != nil {
			slog.ErrorContext(
				ctx, "failed to save revision",
				slog.String("error", errors.Wrap(err, "revisions.Save").Error()),
				slog.String("module", "republish"),
			)
		}
	}

	if notifier != nil {
		if err := notifier.NotifyRevision(ctx, record); err != nil {
			slog.ErrorContext(
				ctx, "failed to announce revision",
				slog.String("error", err.Error()),
				slog.String("module", "republish"),
			)
		}
	}
}

// nextCreatedAt keeps created_at strictly increasing so relays treat the new
// revision as newer even when the clock is behind.
func nextCreatedAt(now time.Time, previous time.Time) nostr.Timestamp {
	ts := nostr.Timestamp(now.Unix())
	prev := nostr.Timestamp(previous.Unix())
	if ts <= prev {
		ts = prev + 1
	}
	return ts
}
