package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/culturebridge/client"
	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/internal/infra/metrics"
	"github.com/totegamma/culturebridge/nostr"
)

const (
	DefaultUploadTimeout = 60 * time.Second
	blobAuthTTL          = 5 * time.Minute
	blobCacheTTL         = 24 * 60 * 60
)

// BlossomGateway uploads blobs to the first blossom server that takes them.
// Known blobs are remembered in memcached so retries skip the upload.
type BlossomGateway struct {
	client  *client.Client
	servers []string
	mc      *memcache.Client
	timeout time.Duration
	metrics *metrics.Metrics
}

func NewBlossomGateway(cl *client.Client, servers []string, mc *memcache.Client, timeout time.Duration, m *metrics.Metrics) *BlossomGateway {
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	return &BlossomGateway{
		client:  cl,
		servers: servers,
		mc:      mc,
		timeout: timeout,
		metrics: m,
	}
}

func (g *BlossomGateway) Servers() []string {
	return g.servers
}

func cacheKey(server, hash string) string {
	return "blob:" + strconv.FormatUint(xxh3.HashString(server+"/"+hash), 16)
}

func (g *BlossomGateway) cached(server, hash string) (domain.BlobDescriptor, bool) {
	if g.mc == nil {
		return domain.BlobDescriptor{}, false
	}
	item, err := g.mc.Get(cacheKey(server, hash))
	if err != nil {
		return domain.BlobDescriptor{}, false
	}
	var desc domain.BlobDescriptor
	if err := json.Unmarshal(item.Value, &desc); err != nil || desc.SHA256 != hash {
		return domain.BlobDescriptor{}, false
	}
	return desc, true
}

func (g *BlossomGateway) remember(ctx context.Context, server string, desc domain.BlobDescriptor) {
	if g.mc == nil {
		return
	}
	value, err := json.Marshal(desc)
	if err != nil {
		return
	}
	err = g.mc.Set(&memcache.Item{Key: cacheKey(server, desc.SHA256), Value: value, Expiration: blobCacheTTL})
	if err != nil {
		slog.DebugContext(
			ctx, "failed to cache blob descriptor",
			slog.String("error", err.Error()),
			slog.String("module", "blossom"),
		)
	}
}

// Upload stores file and returns its descriptor. Servers are tried in order.
func (g *BlossomGateway) Upload(ctx context.Context, file domain.FileInput, signer nostr.Signer) (domain.BlobDescriptor, error) {
	if len(g.servers) == 0 {
		return domain.BlobDescriptor{}, fmt.Errorf("no blossom servers configured")
	}

	sum := sha256.Sum256(file.Data)
	hash := hex.EncodeToString(sum[:])

	var errs []error
	for _, server := range g.servers {
		if desc, ok := g.cached(server, hash); ok {
			g.metrics.RecordUpload("cached", desc.Size)
			return desc, nil
		}

		desc, err := g.uploadTo(ctx, server, hash, file, signer)
		if err != nil {
			slog.WarnContext(
				ctx, "blob upload failed",
				slog.String("server", server),
				slog.String("file", file.Name),
				slog.String("error", err.Error()),
				slog.String("module", "blossom"),
			)
			errs = append(errs, fmt.Errorf("%s: %v", server, err))
			continue
		}

		g.remember(ctx, server, desc)
		return desc, nil
	}

	g.metrics.RecordUpload("failed", file.Size())
	return domain.BlobDescriptor{}, errors.Join(errs...)
}

func (g *BlossomGateway) uploadTo(ctx context.Context, server, hash string, file domain.FileInput, signer nostr.Signer) (domain.BlobDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if exists, err := g.client.HasBlob(ctx, server, hash); err == nil && exists {
		g.metrics.RecordUpload("cached", file.Size())
		return domain.BlobDescriptor{
			URL:    client.BlobURL(server, hash, ""),
			SHA256: hash,
			Size:   file.Size(),
			Type:   file.MimeType,
		}, nil
	}

	auth, err := nostr.CreateBlobAuth(ctx, signer, "upload", hash, "Upload "+file.Name, blobAuthTTL)
	if err != nil {
		return domain.BlobDescriptor{}, fmt.Errorf("failed to sign upload authorization: %v", err)
	}

	res, err := g.client.UploadBlob(ctx, server, file.Data, file.MimeType, auth)
	if err != nil {
		return domain.BlobDescriptor{}, err
	}
	if res.SHA256 != "" && res.SHA256 != hash {
		return domain.BlobDescriptor{}, fmt.Errorf("server reported hash %s, expected %s", res.SHA256, hash)
	}

	g.metrics.RecordUpload("uploaded", file.Size())
	return domain.BlobDescriptor{
		URL:      res.URL,
		SHA256:   hash,
		Size:     res.Size,
		Type:     res.Type,
		Uploaded: res.Uploaded,
	}, nil
}
