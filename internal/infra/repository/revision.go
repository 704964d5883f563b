package repository

import (
	"context"
	"encoding/json"

	"github.com/klauspost/compress/zstd"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/culturebridge"
	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/internal/infra/database/models"
	"github.com/totegamma/culturebridge/nostr"
)

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

func encodePayload(ev nostr.Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(raw, nil), nil
}

func decodePayload(payload []byte) (nostr.Event, error) {
	raw, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return nostr.Event{}, err
	}
	var ev nostr.Event
	err = json.Unmarshal(raw, &ev)
	return ev, err
}

type RevisionRepository struct {
	db *gorm.DB
}

func NewRevisionRepository(db *gorm.DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

// Save stores a published revision with its relay outcomes and moves the
// record key forward when the revision is newer than the one it points at.
func (r *RevisionRepository) Save(ctx context.Context, ev nostr.Event, results []domain.RelayResult) error {
	payload, err := encodePayload(ev)
	if err != nil {
		return err
	}

	address := culturebridge.ComposeAddress(ev.Kind, ev.PubKey, ev.Tags.GetD())

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		revision := models.Revision{
			ID:         ev.ID,
			Address:    address,
			Kind:       ev.Kind,
			PubKey:     ev.PubKey,
			Identifier: ev.Tags.GetD(),
			Payload:    payload,
			CreatedAt:  ev.CreatedAt.Time(),
		}
		if err := tx.Clauses(clause.OnConflict{
			DoNothing: true,
		}).Create(&revision).Error; err != nil {
			return err
		}

		var current models.RecordKey
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("address = ?", address).
			Take(&current).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}

		newer := err == gorm.ErrRecordNotFound ||
			revision.CreatedAt.After(current.CreatedAt) ||
			(revision.CreatedAt.Equal(current.CreatedAt) && revision.ID < current.RevisionID)
		if newer {
			rk := models.RecordKey{
				Address:    address,
				RevisionID: revision.ID,
				CreatedAt:  revision.CreatedAt,
			}
			err = tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "address"}},
				DoUpdates: clause.Assignments(map[string]any{
					"revision_id": revision.ID,
					"created_at":  revision.CreatedAt,
					"deleted":     false,
				}),
			}).Create(&rk).Error
			if err != nil {
				return err
			}
		}

		for _, result := range results {
			outcome := models.PublishOutcome{
				RevisionID:  revision.ID,
				Relay:       result.Relay,
				Outcome:     string(result.Outcome),
				ErrorDetail: result.ErrorDetail,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "revision_id"}, {Name: "relay"}},
				DoUpdates: clause.AssignmentColumns([]string{"outcome", "error_detail"}),
			}).Create(&outcome).Error
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// History returns every stored revision of address, newest first.
func (r *RevisionRepository) History(ctx context.Context, address culturebridge.Address) ([]domain.ContentRecord, error) {
	var revisions []models.Revision
	err := r.db.WithContext(ctx).
		Where("address = ?", address.String()).
		Order("created_at DESC").
		Find(&revisions).Error
	if err != nil {
		return nil, err
	}
	if len(revisions) == 0 {
		return []domain.ContentRecord{}, nil
	}

	ids := make([]string, len(revisions))
	for i, rev := range revisions {
		ids[i] = rev.ID
	}

	var outcomes []models.PublishOutcome
	err = r.db.WithContext(ctx).
		Where("revision_id IN ? AND outcome = ?", ids, string(domain.RelayAccepted)).
		Find(&outcomes).Error
	if err != nil {
		return nil, err
	}
	destinations := map[string][]string{}
	for _, o := range outcomes {
		destinations[o.RevisionID] = append(destinations[o.RevisionID], o.Relay)
	}

	records := make([]domain.ContentRecord, 0, len(revisions))
	for _, rev := range revisions {
		ev, err := decodePayload(rev.Payload)
		if err != nil {
			return nil, err
		}
		record, err := domain.RecordFromEvent(ev)
		if err != nil {
			return nil, err
		}
		record.PublishedDestinations = destinations[rev.ID]
		records = append(records, record)
	}
	return records, nil
}

// MarkDeleted flags the record key of address after a deletion request.
func (r *RevisionRepository) MarkDeleted(ctx context.Context, address culturebridge.Address) error {
	return r.db.WithContext(ctx).
		Model(&models.RecordKey{}).
		Where("address = ?", address.String()).
		Update("deleted", true).Error
}
