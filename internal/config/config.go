package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-yaml/yaml"

	"github.com/totegamma/culturebridge/internal/usecase"
	"github.com/totegamma/culturebridge/nostr"
)

type Config struct {
	NodeInfo       NodeInfo `yaml:"nodeInfo"`
	Server         Server   `yaml:"server"`
	Relays         []string `yaml:"relays"`
	BlossomServers []string `yaml:"blossomServers"`
	Limits         Limits   `yaml:"limits"`
	Timeouts       Timeouts `yaml:"timeouts"`
}

type NodeInfo struct {
	FQDN        string `yaml:"fqdn"`
	PrivateKey  string `yaml:"privatekey"` // hex, nsec or ncryptsec
	PasswordEnv string `yaml:"passwordEnv"`

	// ---
	PrivateKeyHex string `yaml:"-"`
	PubKey        string `yaml:"-"`
	Npub          string `yaml:"-"`
}

type Server struct {
	Listen        string        `yaml:"listen"`
	PostgresDsn   string        `yaml:"postgresDsn"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisDB       int           `yaml:"redisDB"`
	MemcachedAddr string        `yaml:"memcachedAddr"`
	EnableTrace   bool          `yaml:"enableTrace"`
	TraceEndpoint string        `yaml:"traceEndpoint"`
	SessionTTL    time.Duration `yaml:"sessionTTL"`
}

type Limits struct {
	MaxFileSize    int64    `yaml:"maxFileSize"`
	MaxAttachments int      `yaml:"maxAttachments"`
	MaxTotalSize   int64    `yaml:"maxTotalSize"`
	AllowedTypes   []string `yaml:"allowedTypes"`
}

type Timeouts struct {
	Query   time.Duration `yaml:"query"`
	Publish time.Duration `yaml:"publish"`
	Upload  time.Duration `yaml:"upload"`
}

const DefaultListen = ":8000"

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if err := config.resolve(os.Getenv); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) resolve(getenv func(string) string) error {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if len(c.Relays) == 0 {
		return fmt.Errorf("at least one relay is required")
	}
	if len(c.BlossomServers) == 0 {
		return fmt.Errorf("at least one blossom server is required")
	}

	key, err := resolvePrivateKey(c.NodeInfo.PrivateKey, getenv(c.NodeInfo.PasswordEnv))
	if err != nil {
		return err
	}
	signer, err := nostr.NewKeySigner(key)
	if err != nil {
		return err
	}
	npub, err := nostr.EncodePublicKey(signer.PublicKeyHex())
	if err != nil {
		return err
	}

	c.NodeInfo.PrivateKeyHex = key
	c.NodeInfo.PubKey = signer.PublicKeyHex()
	c.NodeInfo.Npub = npub
	return nil
}

func resolvePrivateKey(raw, password string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", fmt.Errorf("nodeInfo.privatekey is required")
	case strings.HasPrefix(raw, "ncryptsec1"):
		if password == "" {
			return "", fmt.Errorf("ncryptsec key needs a password in nodeInfo.passwordEnv")
		}
		return nostr.DecryptPrivateKey(raw, password)
	case strings.HasPrefix(raw, "nsec1"):
		hrp, key, err := nostr.DecodeKey(raw)
		if err != nil {
			return "", err
		}
		if hrp != "nsec" {
			return "", fmt.Errorf("unexpected key prefix %s", hrp)
		}
		return key, nil
	default:
		return raw, nil
	}
}

// ValidatorLimits converts the configured limits, leaving zero values to
// the validator defaults.
func (c Config) ValidatorLimits() usecase.Limits {
	return usecase.Limits{
		MaxFileSize:    c.Limits.MaxFileSize,
		MaxAttachments: c.Limits.MaxAttachments,
		MaxTotalSize:   c.Limits.MaxTotalSize,
		AllowedTypes:   c.Limits.AllowedTypes,
	}
}
