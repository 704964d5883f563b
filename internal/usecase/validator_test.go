package usecase

import (
	"bytes"
	"strings"
	"testing"

	"github.com/totegamma/culturebridge/internal/domain"
)

func TestValidatorPartialSuccess(t *testing.T) {
	v := NewValidator(Limits{MaxFileSize: 1024})

	files := []domain.FileInput{
		{Name: "1.png", MimeType: "image/png", Data: bytes.Repeat([]byte{1}, 100)},
		{Name: "2.png", MimeType: "image/png", Data: bytes.Repeat([]byte{2}, 100)},
		{Name: "big.png", MimeType: "image/png", Data: bytes.Repeat([]byte{3}, 2048)},
		{Name: "3.mp4", MimeType: "video/mp4", Data: bytes.Repeat([]byte{4}, 100)},
		{Name: "4.mp3", MimeType: "audio/mpeg", Data: bytes.Repeat([]byte{5}, 100)},
	}

	outcome := v.Validate(files)
	if len(outcome.ValidFiles) != 4 || len(outcome.InvalidFiles) != 1 {
		t.Fatalf("expected 4 valid and 1 invalid, got %d/%d", len(outcome.ValidFiles), len(outcome.InvalidFiles))
	}
	if outcome.InvalidFiles[0].Name != "big.png" || !strings.Contains(outcome.InvalidFiles[0].Reason, "exceeds") {
		t.Fatalf("unexpected rejection %+v", outcome.InvalidFiles[0])
	}
	if !outcome.Valid() {
		t.Fatalf("partial batch should be valid")
	}

	draft := outcome.ValidFiles[2].Attachment
	if draft.MediaKind != domain.MediaKindVideo || draft.ID == "" || len(draft.ContentHash) != 64 {
		t.Fatalf("draft not populated: %+v", draft)
	}
	if draft.URL != "" {
		t.Fatalf("draft must not have a location before upload")
	}
}

func TestValidatorRejectsUnsupportedType(t *testing.T) {
	v := NewValidator(Limits{})

	outcome := v.Validate([]domain.FileInput{
		{Name: "doc.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")},
	})
	if outcome.Valid() {
		t.Fatalf("a batch where every file fails is invalid")
	}
	if len(outcome.InvalidFiles) != 1 || !strings.Contains(outcome.InvalidFiles[0].Reason, "unsupported") {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestValidatorSniffsType(t *testing.T) {
	v := NewValidator(Limits{AllowedTypes: []string{"image/png"}})

	outcome := v.Validate([]domain.FileInput{pngFile("photo")})
	if len(outcome.ValidFiles) != 1 {
		t.Fatalf("png should be detected, got %+v", outcome.InvalidFiles)
	}
	a := outcome.ValidFiles[0].Attachment
	if a.MimeType != "image/png" || a.Width != 4 || a.Height != 3 {
		t.Fatalf("unexpected draft %+v", a)
	}
}

func TestValidatorBatchLimits(t *testing.T) {
	v := NewValidator(Limits{MaxAttachments: 2, MaxTotalSize: 250})

	files := []domain.FileInput{
		{Name: "1.png", MimeType: "image/png", Data: bytes.Repeat([]byte{1}, 100)},
		{Name: "2.png", MimeType: "image/png", Data: bytes.Repeat([]byte{1}, 100)},
		{Name: "3.png", MimeType: "image/png", Data: bytes.Repeat([]byte{1}, 100)},
	}
	outcome := v.Validate(files)
	if outcome.Valid() {
		t.Fatalf("batch over the limits must be invalid")
	}
	if len(outcome.BatchErrors) != 2 {
		t.Fatalf("expected count and size errors, got %v", outcome.BatchErrors)
	}
}

func TestValidatorCheckMerged(t *testing.T) {
	v := NewValidator(Limits{MaxAttachments: 2, MaxTotalSize: 150})

	if err := v.CheckMerged([]domain.Attachment{{ID: "a", ByteSize: 50}, {ID: "b", ByteSize: 50}}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := v.CheckMerged([]domain.Attachment{{ID: "a"}, {ID: "b"}, {ID: "c"}}); err == nil {
		t.Fatalf("expected count conflict")
	}
	if err := v.CheckMerged([]domain.Attachment{{ID: "a", ByteSize: 100}, {ID: "b", ByteSize: 100}}); err == nil {
		t.Fatalf("expected size conflict")
	}
}

func TestValidatorBatchCountIgnoresRejects(t *testing.T) {
	v := NewValidator(Limits{MaxAttachments: 2})

	outcome := v.Validate([]domain.FileInput{
		{Key: "op-1", Name: "1.png", MimeType: "image/png", Data: bytes.Repeat([]byte{1}, 100)},
		{Key: "op-2", Name: "2.png", MimeType: "image/png", Data: bytes.Repeat([]byte{2}, 100)},
		{Key: "op-3", Name: "empty.png", MimeType: "image/png"},
	})
	if !outcome.Valid() || len(outcome.BatchErrors) != 0 {
		t.Fatalf("rejected files must not count against the attachment limit, got %v", outcome.BatchErrors)
	}
	if len(outcome.InvalidFiles) != 1 || outcome.InvalidFiles[0].Key != "op-3" {
		t.Fatalf("reject should carry the key of its file, got %+v", outcome.InvalidFiles)
	}
}
