package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

const (
	KindDeletion  = 5
	KindHTTPAuth  = 27235
	KindBlobAuth  = 24242
	KindRelayList = 10002
)

// Timestamp is a unix time in seconds.
type Timestamp int64

func Now() Timestamp {
	return Timestamp(time.Now().Unix())
}

func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

type Tag []string

// Key returns the tag name.
func (t Tag) Key() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the first tag value.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

type Tags []Tag

// Find returns the first tag with the given name.
func (tags Tags) Find(key string) Tag {
	for _, t := range tags {
		if t.Key() == key {
			return t
		}
	}
	return nil
}

func (tags Tags) FindAll(key string) []Tag {
	var result []Tag
	for _, t := range tags {
		if t.Key() == key {
			result = append(result, t)
		}
	}
	return result
}

// Value returns the first value of the first tag with the given name.
func (tags Tags) Value(key string) string {
	return tags.Find(key).Value()
}

// GetD returns the parameterized replaceable identifier.
func (tags Tags) GetD() string {
	return tags.Value("d")
}

type Event struct {
	ID        string    `json:"id"`
	PubKey    string    `json:"pubkey"`
	CreatedAt Timestamp `json:"created_at"`
	Kind      int       `json:"kind"`
	Tags      Tags      `json:"tags"`
	Content   string    `json:"content"`
	Sig       string    `json:"sig"`
}

// IsParameterizedReplaceable reports whether the kind is addressed by (kind, pubkey, d).
func IsParameterizedReplaceable(kind int) bool {
	return kind >= 30000 && kind < 40000
}

// Serialize returns the canonical NIP-01 array used for the event id.
func (ev *Event) Serialize() []byte {
	var b strings.Builder
	b.WriteString(`[0,"`)
	b.WriteString(ev.PubKey)
	b.WriteString(`",`)
	b.WriteString(strconv.FormatInt(int64(ev.CreatedAt), 10))
	b.WriteString(`,`)
	b.WriteString(strconv.Itoa(ev.Kind))
	b.WriteString(`,[`)
	for i, tag := range ev.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeEscaped(&b, v)
		}
		b.WriteByte(']')
	}
	b.WriteString(`],`)
	writeEscaped(&b, ev.Content)
	b.WriteByte(']')
	return []byte(b.String())
}

// GetID computes the event id from its serialized form.
func (ev *Event) GetID() string {
	h := sha256.Sum256(ev.Serialize())
	return hex.EncodeToString(h[:])
}

// CheckSignature verifies both the id and the BIP-340 signature.
func (ev *Event) CheckSignature() error {
	if ev.GetID() != ev.ID {
		return fmt.Errorf("event id mismatch")
	}

	pk, err := hex.DecodeString(ev.PubKey)
	if err != nil {
		return fmt.Errorf("invalid pubkey hex: %v", err)
	}
	pubkey, err := schnorr.ParsePubKey(pk)
	if err != nil {
		return fmt.Errorf("invalid pubkey: %v", err)
	}

	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %v", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("invalid signature: %v", err)
	}

	id, err := hex.DecodeString(ev.ID)
	if err != nil {
		return fmt.Errorf("invalid id hex: %v", err)
	}
	if !sig.Verify(id, pubkey) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

func (ev Event) String() string {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Sprintf("<event %s>", ev.ID)
	}
	return string(b)
}

// writeEscaped escapes per NIP-01, leaving non-ASCII runes as raw UTF-8.
func writeEscaped(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
