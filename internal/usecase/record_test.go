package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/nostr"
	"github.com/totegamma/culturebridge/schemas"
)

func TestRecordCreate(t *testing.T) {
	f := newFixture(t)
	uc := f.records()

	result, err := uc.Create(context.Background(), CreateInput{
		Kind:   schemas.KindHeritage,
		Fields: domain.Fields{Title: "Lantern festival", Content: "Every autumn", Region: "Tohoku"},
		Files:  []domain.FileInput{pngFile("lantern.png")},
		Signer: f.signer,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	ev := f.publisher.published[0]
	if ev.Kind != schemas.KindHeritage || ev.Tags.GetD() == "" {
		t.Fatalf("unexpected event %s", ev)
	}
	if ev.Tags.Value("published_at") == "" {
		t.Fatalf("first revision should carry published_at")
	}
	found := false
	for _, tag := range ev.Tags.FindAll("t") {
		if tag.Value() == schemas.TagHeritage {
			found = true
		}
	}
	if !found {
		t.Fatalf("marker hashtag missing")
	}
	if len(result.Record.Attachments) != 1 || result.Record.Attachments[0].URL == "" {
		t.Fatalf("attachment not uploaded: %+v", result.Record.Attachments)
	}
}

func TestRecordCreateRejectsUnknownKind(t *testing.T) {
	f := newFixture(t)
	if _, err := f.records().Create(context.Background(), CreateInput{Kind: 1, Signer: f.signer}); err == nil {
		t.Fatalf("expected error for kind 1")
	}
}

func TestRecordList(t *testing.T) {
	f := newFixture(t)
	f.querier.events = []nostr.Event{
		signedRevision(t, f.signer, "basket", 100, "A"),
		signedRevision(t, f.signer, "basket", 300, "B"),
		signedRevision(t, f.signer, "bowl", 200, "C"),
	}

	records, err := f.records().List(context.Background(), schemas.KindShopProduct, "", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected one record per identifier, got %d", len(records))
	}
	if records[0].Address.Identifier != "basket" || records[0].Attachments[0].ID != "B" {
		t.Fatalf("expected newest basket first, got %+v", records[0])
	}

	filter := f.querier.filters[0]
	if len(filter.Tags["t"]) != 1 || filter.Tags["t"][0] != schemas.TagShop {
		t.Fatalf("list should filter on the marker tag, got %+v", filter)
	}
}

func TestRecordDelete(t *testing.T) {
	f := newFixture(t, "A")

	accepted, _, err := f.records().Delete(context.Background(), f.address, "sold out", f.signer)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected one accepting relay")
	}

	ev := f.publisher.published[0]
	if ev.Kind != nostr.KindDeletion || ev.Tags.Value("a") != f.address.String() || ev.Content != "sold out" {
		t.Fatalf("unexpected deletion event %s", ev)
	}
	if len(f.revisions.deleted) != 1 {
		t.Fatalf("revision log should record the deletion")
	}
}

func TestRecordHistory(t *testing.T) {
	f := newFixture(t, "A")
	if _, err := f.republish().Republish(context.Background(), RepublishInput{
		Address:           f.address,
		KeptAttachmentIDs: []string{},
		Signer:            f.signer,
	}); err != nil {
		t.Fatalf("republish failed: %v", err)
	}

	history, err := f.records().History(context.Background(), f.address)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 || len(history[0].Attachments) != 0 {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestRecordGetNotFound(t *testing.T) {
	f := newFixture(t)
	f.querier.events = nil

	_, err := f.records().Get(context.Background(), f.address)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}
