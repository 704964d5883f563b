package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/culturebridge"
	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/nostr"
)

const DefaultSessionTTL = 30 * time.Minute

type CommitInput struct {
	SessionID          string
	Address            culturebridge.Address
	Updates            domain.FieldUpdates
	ExpectedRevisionID string
	Signer             nostr.Signer
}

// CommitResult is the outcome of executing a batch. Operations carries the
// final status of every operation that took part.
type CommitResult struct {
	RepublishResult
	Operations []domain.Operation `json:"operations"`
}

// BatchUsecase keeps one operation log per session and record and turns
// it into a single republish when committed.
type BatchUsecase struct {
	republish *RepublishUsecase
	querier   RecordQuerier
	sessions  *cache.Cache
	mu        sync.Mutex
}

func NewBatchUsecase(republish *RepublishUsecase, querier RecordQuerier, ttl time.Duration) *BatchUsecase {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &BatchUsecase{
		republish: republish,
		querier:   querier,
		sessions:  cache.New(ttl, ttl*2),
	}
}

func sessionKey(sessionID string, address culturebridge.Address) string {
	return sessionID + "/" + address.String()
}

func (uc *BatchUsecase) log(sessionID string, address culturebridge.Address) *domain.OperationLog {
	key := sessionKey(sessionID, address)
	if v, ok := uc.sessions.Get(key); ok {
		uc.sessions.SetDefault(key, v)
		return v.(*domain.OperationLog)
	}
	l := domain.NewOperationLog()
	uc.sessions.SetDefault(key, l)
	return l
}

// Record appends an operation to the session's log for address.
func (uc *BatchUsecase) Record(ctx context.Context, sessionID string, address culturebridge.Address, op domain.Operation) (domain.Operation, error) {
	if sessionID == "" {
		return domain.Operation{}, fmt.Errorf("session id required")
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.log(sessionID, address).Record(op)
}

func (uc *BatchUsecase) Pending(ctx context.Context, sessionID string, address culturebridge.Address) []domain.Operation {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	key := sessionKey(sessionID, address)
	v, ok := uc.sessions.Get(key)
	if !ok {
		return []domain.Operation{}
	}
	pending := v.(*domain.OperationLog).Pending()
	if pending == nil {
		return []domain.Operation{}
	}
	return pending
}

// Retry moves failed operations back to pending. With no ids every failed
// operation is retried.
func (uc *BatchUsecase) Retry(ctx context.Context, sessionID string, address culturebridge.Address, ids ...string) ([]domain.Operation, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	v, ok := uc.sessions.Get(sessionKey(sessionID, address))
	if !ok {
		return nil, domain.NotFoundError{Resource: "session " + sessionID}
	}
	oplog := v.(*domain.OperationLog)
	if len(ids) == 0 {
		for _, op := range oplog.Operations() {
			if op.Status == domain.OperationFailed {
				ids = append(ids, op.OperationID)
			}
		}
	}
	oplog.Retry(ids...)
	return oplog.Pending(), nil
}

func (uc *BatchUsecase) Clear(ctx context.Context, sessionID string, address culturebridge.Address) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.sessions.Delete(sessionKey(sessionID, address))
}

// Execute replays the pending operations over the newest revision and
// republishes the result. Operations whose payload failed to upload, or
// that no longer apply, are marked failed and stay in the log for retry.
// The session is dropped once nothing is left to retry.
func (uc *BatchUsecase) Execute(ctx context.Context, input CommitInput) (CommitResult, error) {
	ctx, span := tracer.Start(ctx, "Batch.Usecase.Execute")
	defer span.End()

	uc.mu.Lock()
	defer uc.mu.Unlock()

	key := sessionKey(input.SessionID, input.Address)
	v, ok := uc.sessions.Get(key)
	if !ok {
		return CommitResult{}, domain.NotFoundError{Resource: "session " + input.SessionID}
	}
	oplog := v.(*domain.OperationLog)
	pending := oplog.Pending()

	current, err := latestRevision(ctx, uc.querier, input.Address)
	if err != nil {
		span.RecordError(err)
		return CommitResult{}, err
	}

	plan := oplog.Plan(current.Attachments)
	for id, reason := range plan.Invalid {
		oplog.MarkFailed(reason, id)
	}

	expected := input.ExpectedRevisionID
	if expected == "" {
		expected = current.RevisionID
	}

	result, err := uc.republish.Republish(ctx, RepublishInput{
		Address:            input.Address,
		Updates:            input.Updates,
		NewFiles:           plan.NewFiles,
		KeptAttachmentIDs:  plan.KeptIDs,
		Order:              plan.Order,
		Replacements:       plan.Replacements,
		ExpectedRevisionID: expected,
		Signer:             input.Signer,
	})
	if err != nil {
		span.RecordError(err)
		oplog.MarkFailed(err, plan.OperationIDs...)
		return CommitResult{RepublishResult: result, Operations: oplog.Operations()}, err
	}

	// payload files carry their operation id as key
	failed := map[string]string{}
	for _, f := range result.UploadFailures {
		failed[f.Key] = f.Reason
	}
	for _, f := range result.InvalidFiles {
		failed[f.Key] = f.Reason
	}

	for _, op := range pending {
		if _, invalid := plan.Invalid[op.OperationID]; invalid {
			continue
		}
		if reason, ok := failed[op.OperationID]; ok {
			oplog.MarkFailed(fmt.Errorf("%s", reason), op.OperationID)
			continue
		}
		oplog.MarkApplied(op.OperationID)
	}

	ops := oplog.Operations()
	if !hasFailed(ops) {
		uc.sessions.Delete(key)
	}

	slog.InfoContext(
		ctx, "batch committed",
		slog.String("session", input.SessionID),
		slog.String("address", input.Address.String()),
		slog.Int("operations", len(plan.OperationIDs)),
		slog.String("module", "batch"),
	)

	return CommitResult{RepublishResult: result, Operations: ops}, nil
}

func hasFailed(ops []domain.Operation) bool {
	for _, op := range ops {
		if op.Status == domain.OperationFailed {
			return true
		}
	}
	return false
}
