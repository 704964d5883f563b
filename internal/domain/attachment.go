package domain

import (
	"strings"
	"time"
)

// Attachment is a single media object owned by one content record.
type Attachment struct {
	ID          string        `json:"id"`
	ContentHash string        `json:"contentHash,omitempty"`
	URL         string        `json:"url,omitempty"`
	MediaKind   MediaKind     `json:"mediaKind"`
	DisplayName string        `json:"displayName,omitempty"`
	ByteSize    int64         `json:"byteSize"`
	MimeType    string        `json:"mimeType"`
	Width       int           `json:"width,omitempty"`
	Height      int           `json:"height,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Alt         string        `json:"alt,omitempty"`
}

// IsUploaded reports whether the attachment has a resolved location.
func (a Attachment) IsUploaded() bool {
	return a.URL != "" && a.ContentHash != ""
}

// KindFromMIME derives the media kind from a MIME type.
func KindFromMIME(mime string) (MediaKind, bool) {
	major, _, _ := strings.Cut(strings.ToLower(mime), "/")
	switch major {
	case "image":
		return MediaKindImage, true
	case "video":
		return MediaKindVideo, true
	case "audio":
		return MediaKindAudio, true
	default:
		return "", false
	}
}

// FileInput is a candidate file selected by the user, before upload.
// Key groups the files of one operation; failures are reported under it.
type FileInput struct {
	Key      string        `json:"key,omitempty"`
	Name     string        `json:"name"`
	MimeType string        `json:"mimeType,omitempty"`
	Data     []byte        `json:"-"`
	Alt      string        `json:"alt,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

func (f FileInput) Size() int64 {
	return int64(len(f.Data))
}

// InvalidFile pairs a rejected candidate with a readable reason.
type InvalidFile struct {
	Key    string `json:"key,omitempty"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// DraftAttachment is a validated file waiting for upload.
type DraftAttachment struct {
	Attachment Attachment
	File       FileInput
}

type ValidationOutcome struct {
	ValidFiles   []DraftAttachment `json:"-"`
	InvalidFiles []InvalidFile     `json:"invalidFiles"`
	BatchErrors  []string          `json:"batchErrors,omitempty"`
}

// Valid is false when every file failed or a batch constraint was violated.
func (o ValidationOutcome) Valid() bool {
	if len(o.BatchErrors) > 0 {
		return false
	}
	return len(o.InvalidFiles) == 0 || len(o.ValidFiles) > 0
}

// BlobDescriptor is what a blob server returns after a successful upload.
type BlobDescriptor struct {
	URL      string `json:"url"`
	SHA256   string `json:"sha256"`
	Size     int64  `json:"size"`
	Type     string `json:"type,omitempty"`
	Uploaded int64  `json:"uploaded,omitempty"`
}

// UploadFailure is reported per file so callers can retry just the failed ones.
type UploadFailure struct {
	Key    string `json:"key,omitempty"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}
