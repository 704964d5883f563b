package usecase

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/totegamma/culturebridge/internal/domain"
)

const (
	DefaultMaxFileSize    int64 = 50 << 20
	DefaultMaxAttachments       = 10
	DefaultMaxTotalSize   int64 = 200 << 20
)

var DefaultAllowedTypes = []string{"image/*", "video/*", "audio/*"}

// Limits bounds a single batch of attachments.
type Limits struct {
	MaxFileSize    int64    `json:"maxFileSize"`
	MaxAttachments int      `json:"maxAttachments"`
	MaxTotalSize   int64    `json:"maxTotalSize"`
	AllowedTypes   []string `json:"allowedTypes"`
}

func (l Limits) withDefaults() Limits {
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	if l.MaxAttachments <= 0 {
		l.MaxAttachments = DefaultMaxAttachments
	}
	if l.MaxTotalSize <= 0 {
		l.MaxTotalSize = DefaultMaxTotalSize
	}
	if len(l.AllowedTypes) == 0 {
		l.AllowedTypes = DefaultAllowedTypes
	}
	return l
}

type Validator struct {
	limits Limits
}

func NewValidator(limits Limits) *Validator {
	return &Validator{limits: limits.withDefaults()}
}

func (v *Validator) Limits() Limits {
	return v.limits
}

// Validate partitions files into drafts and rejects. It never fails as a
// whole; batch level violations are reported in BatchErrors.
func (v *Validator) Validate(files []domain.FileInput) domain.ValidationOutcome {
	var outcome domain.ValidationOutcome
	var total int64

	for _, f := range files {
		if f.Size() == 0 {
			outcome.InvalidFiles = append(outcome.InvalidFiles, domain.InvalidFile{Key: f.Key, Name: f.Name, Reason: "file is empty"})
			continue
		}
		if f.Size() > v.limits.MaxFileSize {
			outcome.InvalidFiles = append(outcome.InvalidFiles, domain.InvalidFile{
				Key:    f.Key,
				Name:   f.Name,
				Reason: fmt.Sprintf("file size %d exceeds maximum of %d bytes", f.Size(), v.limits.MaxFileSize),
			})
			continue
		}

		mime := detectMIME(f)
		if !v.allowed(mime) {
			outcome.InvalidFiles = append(outcome.InvalidFiles, domain.InvalidFile{
				Key:    f.Key,
				Name:   f.Name,
				Reason: fmt.Sprintf("unsupported file type %s", mime),
			})
			continue
		}

		f.MimeType = mime
		outcome.ValidFiles = append(outcome.ValidFiles, domain.DraftAttachment{
			Attachment: draftFromFile(f),
			File:       f,
		})
		total += f.Size()
	}

	if len(outcome.ValidFiles) > v.limits.MaxAttachments {
		outcome.BatchErrors = append(outcome.BatchErrors,
			fmt.Sprintf("%d files exceed the maximum of %d attachments", len(outcome.ValidFiles), v.limits.MaxAttachments))
	}
	if total > v.limits.MaxTotalSize {
		outcome.BatchErrors = append(outcome.BatchErrors,
			fmt.Sprintf("total size %d exceeds maximum of %d bytes", total, v.limits.MaxTotalSize))
	}

	return outcome
}

// CheckMerged re-applies the batch constraints to a merged attachment set.
func (v *Validator) CheckMerged(attachments []domain.Attachment) error {
	if len(attachments) > v.limits.MaxAttachments {
		return domain.MergeConflictError{
			Reason: fmt.Sprintf("%d attachments exceed the maximum of %d", len(attachments), v.limits.MaxAttachments),
		}
	}
	var total int64
	for _, a := range attachments {
		total += a.ByteSize
	}
	if total > v.limits.MaxTotalSize {
		return domain.MergeConflictError{
			Reason: fmt.Sprintf("total size %d exceeds maximum of %d bytes", total, v.limits.MaxTotalSize),
		}
	}
	return nil
}

func (v *Validator) allowed(mime string) bool {
	for _, pattern := range v.limits.AllowedTypes {
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			major, _, _ := strings.Cut(mime, "/")
			if major == prefix {
				return true
			}
			continue
		}
		if pattern == mime {
			return true
		}
	}
	return false
}

func detectMIME(f domain.FileInput) string {
	if f.MimeType != "" && f.MimeType != "application/octet-stream" {
		mime, _, _ := strings.Cut(strings.ToLower(f.MimeType), ";")
		return strings.TrimSpace(mime)
	}
	mime, _, _ := strings.Cut(mimetype.Detect(f.Data).String(), ";")
	return mime
}

func draftFromFile(f domain.FileInput) domain.Attachment {
	sum := sha256.Sum256(f.Data)
	kind, _ := domain.KindFromMIME(f.MimeType)
	a := domain.Attachment{
		ID:          uuid.NewString(),
		ContentHash: hex.EncodeToString(sum[:]),
		MediaKind:   kind,
		DisplayName: f.Name,
		ByteSize:    f.Size(),
		MimeType:    f.MimeType,
		Duration:    f.Duration,
		Alt:         f.Alt,
	}
	if kind == domain.MediaKindImage {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err == nil {
			a.Width = cfg.Width
			a.Height = cfg.Height
		}
	}
	return a
}
