package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/totegamma/culturebridge/client"
	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/internal/infra/metrics"
	"github.com/totegamma/culturebridge/nostr"
)

const (
	DefaultQueryTimeout   = 5 * time.Second
	DefaultPublishTimeout = 7 * time.Second
)

// RelayGateway fans queries and publishes out to a fixed set of relays.
type RelayGateway struct {
	client         *client.Client
	relays         []string
	queryTimeout   time.Duration
	publishTimeout time.Duration
	metrics        *metrics.Metrics
}

func NewRelayGateway(cl *client.Client, relays []string, queryTimeout, publishTimeout time.Duration, m *metrics.Metrics) *RelayGateway {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	return &RelayGateway{
		client:         cl,
		relays:         relays,
		queryTimeout:   queryTimeout,
		publishTimeout: publishTimeout,
		metrics:        m,
	}
}

func (g *RelayGateway) Relays() []string {
	return g.relays
}

// QueryRecords asks every relay concurrently and merges the answers by
// event id. It fails only when no relay answered.
func (g *RelayGateway) QueryRecords(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error) {
	if len(g.relays) == 0 {
		return nil, fmt.Errorf("no relays configured")
	}

	var (
		mu       sync.Mutex
		seen     = map[string]struct{}{}
		events   []nostr.Event
		failures []error
	)

	var eg errgroup.Group
	for _, relay := range g.relays {
		eg.Go(func() error {
			qctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
			defer cancel()

			start := time.Now()
			found, err := g.client.Query(qctx, relay, filter)
			g.metrics.RecordQuery(relay, time.Since(start), err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.WarnContext(
					ctx, "relay query failed",
					slog.String("relay", relay),
					slog.String("error", err.Error()),
					slog.String("module", "relay"),
				)
				failures = append(failures, fmt.Errorf("%s: %v", relay, err))
			}
			for _, ev := range found {
				if _, ok := seen[ev.ID]; ok {
					continue
				}
				seen[ev.ID] = struct{}{}
				events = append(events, ev)
			}
			return nil
		})
	}
	eg.Wait()

	if len(failures) == len(g.relays) && len(events) == 0 {
		return nil, errors.Join(failures...)
	}
	return events, nil
}

// Publish sends ev to every relay concurrently. Each relay gets its own
// timeout and always yields exactly one result.
func (g *RelayGateway) Publish(ctx context.Context, ev nostr.Event) ([]domain.RelayResult, error) {
	if len(g.relays) == 0 {
		return nil, fmt.Errorf("no relays configured")
	}

	results := make([]domain.RelayResult, len(g.relays))

	var eg errgroup.Group
	for i, relay := range g.relays {
		eg.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, g.publishTimeout)
			defer cancel()

			res, err := g.client.Publish(pctx, relay, ev)
			result := domain.RelayResult{Relay: relay}
			switch {
			case err != nil && (errors.Is(err, context.DeadlineExceeded) || pctx.Err() == context.DeadlineExceeded):
				result.Outcome = domain.RelayTimedOut
				result.ErrorDetail = err.Error()
			case err != nil:
				result.Outcome = domain.RelayRejected
				result.ErrorDetail = err.Error()
			case res.Accepted:
				result.Outcome = domain.RelayAccepted
			default:
				result.Outcome = domain.RelayRejected
				result.ErrorDetail = res.Message
			}
			g.metrics.RecordPublish(relay, string(result.Outcome))
			results[i] = result
			return nil
		})
	}
	eg.Wait()

	return results, nil
}

// RelayStatus is the NIP-11 document of a relay, or why it could not be read.
type RelayStatus struct {
	URL   string            `json:"url"`
	Info  *client.RelayInfo `json:"info,omitempty"`
	Error string            `json:"error,omitempty"`
}

func (g *RelayGateway) Status(ctx context.Context) []RelayStatus {
	statuses := make([]RelayStatus, len(g.relays))

	var eg errgroup.Group
	for i, relay := range g.relays {
		eg.Go(func() error {
			qctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
			defer cancel()

			statuses[i] = RelayStatus{URL: relay}
			info, err := g.client.GetRelayInfo(qctx, relay)
			if err != nil {
				statuses[i].Error = err.Error()
				return nil
			}
			statuses[i].Info = &info
			return nil
		})
	}
	eg.Wait()
	return statuses
}
