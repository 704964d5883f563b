package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/totegamma/culturebridge/nostr"
)

const testKey = "0000000000000000000000000000000000000000000000000000000000000001"

const testConfig = `
nodeInfo:
  fqdn: bridge.example.com
  privatekey: "%s"
server:
  postgresDsn: host=db user=postgres
  redisAddr: redis:6379
relays:
  - wss://relay.example.com
blossomServers:
  - https://blossom.example.com
limits:
  maxAttachments: 4
timeouts:
  publish: 3s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(testConfig, testKey))

	config, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if config.NodeInfo.PubKey != "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" {
		t.Fatalf("unexpected pubkey %s", config.NodeInfo.PubKey)
	}
	if config.Server.Listen != DefaultListen {
		t.Fatalf("listen default not applied: %q", config.Server.Listen)
	}
	if config.Timeouts.Publish != 3*time.Second {
		t.Fatalf("unexpected publish timeout %v", config.Timeouts.Publish)
	}
	limits := config.ValidatorLimits()
	if limits.MaxAttachments != 4 || limits.MaxFileSize != 0 {
		t.Fatalf("unexpected limits %+v", limits)
	}
}

func TestResolvePrivateKeyForms(t *testing.T) {
	nsec, err := nostr.EncodePrivateKey(testKey)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	encrypted, err := nostr.EncryptPrivateKey(testKey, "correct horse", 4)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	for _, raw := range []string{testKey, nsec} {
		key, err := resolvePrivateKey(raw, "")
		if err != nil || key != testKey {
			t.Fatalf("%s: got %s, %v", raw, key, err)
		}
	}

	key, err := resolvePrivateKey(encrypted, "correct horse")
	if err != nil || key != testKey {
		t.Fatalf("ncryptsec: got %s, %v", key, err)
	}
	if _, err := resolvePrivateKey(encrypted, ""); err == nil {
		t.Fatalf("expected missing password error")
	}
	if _, err := resolvePrivateKey(encrypted, "wrong"); err == nil {
		t.Fatalf("expected wrong password error")
	}
}

func TestResolvePasswordFromEnv(t *testing.T) {
	encrypted, err := nostr.EncryptPrivateKey(testKey, "hunter2", 4)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	c := Config{
		NodeInfo:       NodeInfo{PrivateKey: encrypted, PasswordEnv: "CB_KEY_PASSWORD"},
		Relays:         []string{"wss://relay.example.com"},
		BlossomServers: []string{"https://blossom.example.com"},
	}
	err = c.resolve(func(name string) string {
		if name == "CB_KEY_PASSWORD" {
			return "hunter2"
		}
		return ""
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if c.NodeInfo.PrivateKeyHex != testKey {
		t.Fatalf("unexpected key %s", c.NodeInfo.PrivateKeyHex)
	}
}

func TestLoadRequiresRelays(t *testing.T) {
	path := writeConfig(t, "nodeInfo:\n  privatekey: "+testKey+"\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error without relays")
	}
}
