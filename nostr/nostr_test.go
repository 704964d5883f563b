package nostr

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *KeySigner {
	t.Helper()
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s, err := NewKeySigner(priv)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return s
}

func TestSerialize(t *testing.T) {
	ev := Event{
		PubKey:    "abc",
		CreatedAt: 1700000000,
		Kind:      30402,
		Tags:      Tags{{"d", "item-1"}, {"title", "Woven \"basket\""}},
		Content:   "line1\nline2 ünïcode <b>",
	}

	got := string(ev.Serialize())
	want := `[0,"abc",1700000000,30402,[["d","item-1"],["title","Woven \"basket\""]],"line1\nline2 ünïcode <b>"]`
	if got != want {
		t.Fatalf("unexpected serialization\n got: %s\nwant: %s", got, want)
	}
}

func TestSignAndVerify(t *testing.T) {
	s := newTestSigner(t)
	ev := Event{CreatedAt: Now(), Kind: 1, Content: "hello"}

	if err := s.SignEvent(context.Background(), &ev); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if ev.PubKey != s.PublicKeyHex() {
		t.Fatalf("pubkey not set")
	}
	if err := ev.CheckSignature(); err != nil {
		t.Fatalf("signature should verify: %v", err)
	}

	ev.Content = "tampered"
	if err := ev.CheckSignature(); err == nil {
		t.Fatalf("tampered event should not verify")
	}
}

func TestEntityRoundTrip(t *testing.T) {
	s := newTestSigner(t)
	p := EntityPointer{
		Kind:       30402,
		PublicKey:  s.PublicKeyHex(),
		Identifier: "5f0c1c9e-product",
		Relays:     []string{"wss://relay.example.com"},
	}

	naddr, err := EncodeEntity(p)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !strings.HasPrefix(naddr, "naddr1") {
		t.Fatalf("unexpected naddr %s", naddr)
	}

	decoded, err := DecodeEntity(naddr)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Kind != p.Kind || decoded.PublicKey != p.PublicKey || decoded.Identifier != p.Identifier {
		t.Fatalf("decoded %+v differs from %+v", decoded, p)
	}
	if len(decoded.Relays) != 1 || decoded.Relays[0] != p.Relays[0] {
		t.Fatalf("relays lost: %+v", decoded.Relays)
	}
}

func TestDecodeKey(t *testing.T) {
	s := newTestSigner(t)
	npub, err := EncodePublicKey(s.PublicKeyHex())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	hrp, hexKey, err := DecodeKey(npub)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if hrp != "npub" || hexKey != s.PublicKeyHex() {
		t.Fatalf("got %s %s", hrp, hexKey)
	}
}

func TestEncryptedPrivateKey(t *testing.T) {
	priv, _ := GeneratePrivateKey()

	ncryptsec, err := EncryptPrivateKey(priv, "nostr", 4)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	got, err := DecryptPrivateKey(ncryptsec, "nostr")
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if got != priv {
		t.Fatalf("expected %s got %s", priv, got)
	}

	if _, err := DecryptPrivateKey(ncryptsec, "wrong"); err == nil {
		t.Fatalf("wrong password should fail")
	}
}

func TestHTTPAuth(t *testing.T) {
	s := newTestSigner(t)
	ctx := context.Background()
	url := "https://node.example.com/records/product"
	body := []byte(`{"title":"x"}`)

	header, err := CreateHTTPAuth(ctx, s, url, "post", body)
	if err != nil {
		t.Fatalf("create auth failed: %v", err)
	}

	pubkey, err := ValidateHTTPAuth(header, url, "POST", body, time.Now())
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if pubkey != s.PublicKeyHex() {
		t.Fatalf("unexpected pubkey %s", pubkey)
	}

	if _, err := ValidateHTTPAuth(header, url+"/other", "POST", body, time.Now()); err == nil {
		t.Fatalf("url mismatch should fail")
	}
	if _, err := ValidateHTTPAuth(header, url, "POST", []byte("other"), time.Now()); err == nil {
		t.Fatalf("payload mismatch should fail")
	}
	if _, err := ValidateHTTPAuth(header, url, "POST", body, time.Now().Add(5*time.Minute)); err == nil {
		t.Fatalf("stale event should fail")
	}
}

func TestFilter(t *testing.T) {
	ev := &Event{ID: "1", PubKey: "alice", Kind: 30402, Tags: Tags{{"d", "a"}, {"t", "culture-bridge-shop"}}}

	f := Filter{Kinds: []int{30402}, Authors: []string{"alice"}, Tags: TagMap{"d": {"a"}}}
	if !f.Matches(ev) {
		t.Fatalf("filter should match")
	}
	f.Tags = TagMap{"d": {"b"}}
	if f.Matches(ev) {
		t.Fatalf("filter should not match other d")
	}

	b, err := json.Marshal(Filter{Kinds: []int{30402}, Tags: TagMap{"d": {"a"}}, Limit: 5})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != `{"#d":["a"],"kinds":[30402],"limit":5}` {
		t.Fatalf("unexpected filter json %s", b)
	}
}
