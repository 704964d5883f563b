package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/totegamma/culturebridge"
	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/nostr"
	"github.com/totegamma/culturebridge/schemas"
)

const testPrivateKey = "0000000000000000000000000000000000000000000000000000000000000001"

func testSigner(t *testing.T) *nostr.KeySigner {
	t.Helper()
	signer, err := nostr.NewKeySigner(testPrivateKey)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	return signer
}

type mockQuerier struct {
	events  []nostr.Event
	err     error
	filters []nostr.Filter
}

func (m *mockQuerier) QueryRecords(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error) {
	m.filters = append(m.filters, filter)
	if m.err != nil {
		return nil, m.err
	}
	return m.events, nil
}

type mockPublisher struct {
	published []nostr.Event
	outcomes  []domain.RelayOutcome
}

func (m *mockPublisher) Publish(ctx context.Context, ev nostr.Event) ([]domain.RelayResult, error) {
	m.published = append(m.published, ev)
	outcomes := m.outcomes
	if outcomes == nil {
		outcomes = []domain.RelayOutcome{domain.RelayAccepted}
	}
	results := make([]domain.RelayResult, len(outcomes))
	for i, o := range outcomes {
		results[i] = domain.RelayResult{Relay: fmt.Sprintf("wss://relay%d.example.com", i), Outcome: o}
		if o != domain.RelayAccepted {
			results[i].ErrorDetail = "blocked: test"
		}
	}
	return results, nil
}

type mockUploader struct {
	fail     map[string]bool
	failCall map[int]bool
	calls    int
	uploaded []string
}

func (m *mockUploader) Upload(ctx context.Context, file domain.FileInput, signer nostr.Signer) (domain.BlobDescriptor, error) {
	m.calls++
	if m.fail[file.Name] || m.failCall[m.calls] {
		return domain.BlobDescriptor{}, fmt.Errorf("blob server returned 500")
	}
	m.uploaded = append(m.uploaded, file.Name)
	sum := sha256.Sum256(file.Data)
	hash := hex.EncodeToString(sum[:])
	return domain.BlobDescriptor{
		URL:    "https://blossom.example.com/" + hash,
		SHA256: hash,
		Size:   file.Size(),
		Type:   file.MimeType,
	}, nil
}

type mockRevisionLog struct {
	saved   []nostr.Event
	deleted []string
}

func (m *mockRevisionLog) MarkDeleted(ctx context.Context, address culturebridge.Address) error {
	m.deleted = append(m.deleted, address.String())
	return nil
}

func (m *mockRevisionLog) Save(ctx context.Context, ev nostr.Event, results []domain.RelayResult) error {
	m.saved = append(m.saved, ev)
	return nil
}

func (m *mockRevisionLog) History(ctx context.Context, address culturebridge.Address) ([]domain.ContentRecord, error) {
	var records []domain.ContentRecord
	for _, ev := range m.saved {
		r, err := domain.RecordFromEvent(ev)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

type mockNotifier struct {
	notified []domain.ContentRecord
}

func (m *mockNotifier) NotifyRevision(ctx context.Context, record domain.ContentRecord) error {
	m.notified = append(m.notified, record)
	return nil
}

// signedRevision builds and signs a product revision carrying the given
// attachment ids.
func signedRevision(t *testing.T, signer nostr.Signer, d string, createdAt int64, ids ...string) nostr.Event {
	t.Helper()
	attachments := make([]domain.Attachment, len(ids))
	for i, id := range ids {
		attachments[i] = domain.Attachment{
			ID:          id,
			URL:         "https://blossom.example.com/" + id,
			ContentHash: id,
			MediaKind:   domain.MediaKindImage,
			MimeType:    "image/png",
			ByteSize:    100,
		}
	}
	pubkey, _ := signer.PublicKey(context.Background())
	record := domain.ContentRecord{
		Address:     culturebridge.Address{Kind: schemas.KindShopProduct, PubKey: pubkey, Identifier: d},
		Fields:      domain.Fields{Title: "Woven basket", Content: "Hand woven"},
		Attachments: attachments,
		PublishedAt: time.Unix(1600000000, 0).UTC(),
	}
	ev := domain.EventFromRecord(record, nostr.Timestamp(createdAt))
	if err := signer.SignEvent(context.Background(), &ev); err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return ev
}

func pngFile(name string) domain.FileInput {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return domain.FileInput{Name: name, Data: append(buf.Bytes(), []byte(name)...)}
}

type fixture struct {
	signer    *nostr.KeySigner
	address   culturebridge.Address
	querier   *mockQuerier
	publisher *mockPublisher
	uploader  *mockUploader
	revisions *mockRevisionLog
	notifier  *mockNotifier
	validator *Validator
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	signer := testSigner(t)
	ev := signedRevision(t, signer, "basket", 1700000000, ids...)
	return &fixture{
		signer:    signer,
		address:   culturebridge.Address{Kind: ev.Kind, PubKey: ev.PubKey, Identifier: "basket"},
		querier:   &mockQuerier{events: []nostr.Event{ev}},
		publisher: &mockPublisher{},
		uploader:  &mockUploader{fail: map[string]bool{}},
		revisions: &mockRevisionLog{},
		notifier:  &mockNotifier{},
		validator: NewValidator(Limits{}),
	}
}

func (f *fixture) republish() *RepublishUsecase {
	uc := NewRepublishUsecase(f.querier, f.publisher, f.uploader, f.validator, f.revisions, f.notifier)
	uc.now = func() time.Time { return time.Unix(1700000500, 0) }
	return uc
}

func (f *fixture) records() *RecordUsecase {
	uc := NewRecordUsecase(f.querier, f.publisher, f.uploader, f.validator, f.revisions, f.notifier)
	uc.now = func() time.Time { return time.Unix(1700000500, 0) }
	return uc
}
