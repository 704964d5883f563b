package nostr

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AuthWindow bounds clock skew for HTTP auth events.
const AuthWindow = 60 * time.Second

// EncodeAuthorization wraps a signed event into an Authorization header value.
func EncodeAuthorization(ev Event) (string, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return "Nostr " + base64.StdEncoding.EncodeToString(b), nil
}

// DecodeAuthorization parses an Authorization header value into an event.
func DecodeAuthorization(header string) (*Event, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Nostr" {
		return nil, fmt.Errorf("invalid authorization scheme")
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("invalid authorization encoding: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, fmt.Errorf("invalid authorization event: %v", err)
	}
	return &ev, nil
}

// CreateHTTPAuth signs an NIP-98 event for the request.
func CreateHTTPAuth(ctx context.Context, signer Signer, url, method string, payload []byte) (string, error) {
	ev := Event{
		CreatedAt: Now(),
		Kind:      KindHTTPAuth,
		Tags: Tags{
			{"u", url},
			{"method", strings.ToUpper(method)},
		},
	}
	if len(payload) > 0 {
		h := sha256.Sum256(payload)
		ev.Tags = append(ev.Tags, Tag{"payload", hex.EncodeToString(h[:])})
	}
	if err := signer.SignEvent(ctx, &ev); err != nil {
		return "", err
	}
	return EncodeAuthorization(ev)
}

// ValidateHTTPAuth checks an NIP-98 header and returns the signer pubkey.
func ValidateHTTPAuth(header, url, method string, payload []byte, now time.Time) (string, error) {
	ev, err := DecodeAuthorization(header)
	if err != nil {
		return "", err
	}

	if ev.Kind != KindHTTPAuth {
		return "", fmt.Errorf("unexpected auth kind %d", ev.Kind)
	}

	skew := now.Sub(ev.CreatedAt.Time())
	if skew > AuthWindow || skew < -AuthWindow {
		return "", fmt.Errorf("auth event outside time window")
	}

	if ev.Tags.Value("u") != url {
		return "", fmt.Errorf("auth url mismatch")
	}
	if !strings.EqualFold(ev.Tags.Value("method"), method) {
		return "", fmt.Errorf("auth method mismatch")
	}

	if expected := ev.Tags.Value("payload"); expected != "" {
		h := sha256.Sum256(payload)
		if hex.EncodeToString(h[:]) != expected {
			return "", fmt.Errorf("auth payload hash mismatch")
		}
	}

	if err := ev.CheckSignature(); err != nil {
		return "", err
	}

	return ev.PubKey, nil
}

// CreateBlobAuth signs a Blossom authorization event for the given verb.
func CreateBlobAuth(ctx context.Context, signer Signer, verb, hash, content string, ttl time.Duration) (string, error) {
	ev := Event{
		CreatedAt: Now(),
		Kind:      KindBlobAuth,
		Content:   content,
		Tags: Tags{
			{"t", verb},
			{"expiration", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)},
		},
	}
	if hash != "" {
		ev.Tags = append(ev.Tags, Tag{"x", hash})
	}
	if err := signer.SignEvent(ctx, &ev); err != nil {
		return "", err
	}
	return EncodeAuthorization(ev)
}
