package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/culturebridge"
	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/nostr"
)

var tracer = otel.Tracer("usecase")

// latestRevision returns the newest revision at address. Ties on created_at
// resolve to the lowest event id, which is what relays keep.
func latestRevision(ctx context.Context, querier RecordQuerier, address culturebridge.Address) (domain.ContentRecord, error) {
	ctx, span := tracer.Start(ctx, "Usecase.LatestRevision")
	defer span.End()

	filter := address.Filter()
	events, err := querier.QueryRecords(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return domain.ContentRecord{}, errors.Wrap(err, "failed to query relays")
	}

	var newest *nostr.Event
	for i := range events {
		ev := &events[i]
		if !filter.Matches(ev) {
			continue
		}
		if newest == nil || ev.CreatedAt > newest.CreatedAt || (ev.CreatedAt == newest.CreatedAt && ev.ID < newest.ID) {
			newest = ev
		}
	}
	if newest == nil {
		return domain.ContentRecord{}, domain.NotFoundError{Resource: address.String()}
	}

	record, err := domain.RecordFromEvent(*newest)
	if err != nil {
		span.RecordError(err)
		return domain.ContentRecord{}, errors.Wrap(err, "failed to decode revision")
	}
	return record, nil
}

// uploadDrafts uploads validated files one by one. A failed file does not
// stop the rest.
func uploadDrafts(ctx context.Context, uploader BlobUploader, drafts []domain.DraftAttachment, signer nostr.Signer) ([]domain.DraftAttachment, []domain.UploadFailure) {
	ctx, span := tracer.Start(ctx, "Usecase.UploadDrafts")
	defer span.End()

	var uploaded []domain.DraftAttachment
	var failures []domain.UploadFailure
	for _, draft := range drafts {
		desc, err := uploader.Upload(ctx, draft.File, signer)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(
				ctx, "upload failed",
				slog.String("file", draft.File.Name),
				slog.String("error", err.Error()),
				slog.String("module", "upload"),
			)
			failures = append(failures, domain.UploadFailure{Key: draft.File.Key, Name: draft.File.Name, Reason: err.Error()})
			continue
		}

		a := draft.Attachment
		a.URL = desc.URL
		if desc.SHA256 != "" {
			a.ContentHash = desc.SHA256
		}
		if desc.Size > 0 {
			a.ByteSize = desc.Size
		}
		uploaded = append(uploaded, domain.DraftAttachment{Attachment: a, File: draft.File})
	}
	return uploaded, failures
}

// failedKeys collects the keys of files that were rejected or failed to upload.
func failedKeys(failures []domain.UploadFailure, invalid []domain.InvalidFile) map[string]struct{} {
	keys := map[string]struct{}{}
	for _, f := range failures {
		if f.Key != "" {
			keys[f.Key] = struct{}{}
		}
	}
	for _, f := range invalid {
		if f.Key != "" {
			keys[f.Key] = struct{}{}
		}
	}
	return keys
}

// keepComplete drops uploads whose key also has a failed file, so a keyed
// group lands in a revision either whole or not at all.
func keepComplete(drafts []domain.DraftAttachment, failed map[string]struct{}) []domain.Attachment {
	var result []domain.Attachment
	for _, d := range drafts {
		if _, ok := failed[d.File.Key]; ok && d.File.Key != "" {
			continue
		}
		result = append(result, d.Attachment)
	}
	return result
}

// validateAndUpload validates files and uploads the valid ones. It fails when
// the batch is unusable or when every upload failed.
func validateAndUpload(ctx context.Context, validator *Validator, uploader BlobUploader, files []domain.FileInput, signer nostr.Signer) ([]domain.Attachment, domain.ValidationOutcome, []domain.UploadFailure, error) {
	if len(files) == 0 {
		return nil, domain.ValidationOutcome{}, nil, nil
	}

	outcome := validator.Validate(files)
	if !outcome.Valid() {
		return nil, outcome, nil, domain.ValidationError{Outcome: outcome}
	}

	drafts, failures := uploadDrafts(ctx, uploader, outcome.ValidFiles, signer)
	uploaded := keepComplete(drafts, failedKeys(failures, outcome.InvalidFiles))
	if len(uploaded) == 0 && len(failures) > 0 {
		return nil, outcome, failures, domain.UploadError{Failures: failures}
	}
	return uploaded, outcome, failures, nil
}

// signAndPublish signs ev and sends it to every relay. It returns the
// accepted relays, or PublishError when none accepted.
func signAndPublish(ctx context.Context, publisher RecordPublisher, signer nostr.Signer, ev *nostr.Event) ([]string, []domain.RelayResult, error) {
	ctx, span := tracer.Start(ctx, "Usecase.SignAndPublish")
	defer span.End()

	if err := signer.SignEvent(ctx, ev); err != nil {
		span.RecordError(err)
		return nil, nil, errors.Wrap(err, "failed to sign event")
	}

	results, err := publisher.Publish(ctx, *ev)
	if err != nil {
		span.RecordError(err)
		return nil, nil, errors.Wrap(err, "failed to publish event")
	}

	accepted, rejected := domain.SplitResults(results)
	if len(accepted) == 0 {
		err := domain.PublishError{Results: results}
		span.RecordError(err)
		return nil, rejected, err
	}
	return accepted, rejected, nil
}

func checkOwner(ctx context.Context, signer nostr.Signer, address culturebridge.Address) error {
	if signer == nil {
		return fmt.Errorf("no signer available")
	}
	pubkey, err := signer.PublicKey(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read signer public key")
	}
	if pubkey != address.PubKey {
		return domain.PermissionError{PubKey: pubkey}
	}
	return nil
}
