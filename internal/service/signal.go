package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/culturebridge/internal/domain"
)

const RevisionChannel = "culturebridge:revisions"

// SignalService announces new revisions over redis pub/sub so every node
// process can stream them to its websocket clients.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) NotifyRevision(ctx context.Context, record domain.ContentRecord) error {
	ctx, span := tracer.Start(ctx, "Signal.Service.NotifyRevision")
	defer span.End()

	jsonstr, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to marshal revision")
	}

	err = s.rdb.Publish(ctx, RevisionChannel, jsonstr).Err()
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to publish revision")
	}

	return nil
}

// Realtime forwards announced revisions whose address starts with one of
// the prefixes most recently received on input. An empty prefix list
// forwards nothing. It returns when ctx is done or input is closed.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- domain.ContentRecord) {
	pubsub := s.rdb.Subscribe(ctx, RevisionChannel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	var prefixes []string

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-input:
			if !ok {
				return
			}
			prefixes = p
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var record domain.ContentRecord
			if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
				slog.WarnContext(
					ctx, "malformed revision signal",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			if !matchesPrefix(record.Address.String(), prefixes) {
				continue
			}
			select {
			case output <- record:
			case <-ctx.Done():
				return
			}
		}
	}
}

func matchesPrefix(address string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(address, p) {
			return true
		}
	}
	return false
}
