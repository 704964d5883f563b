package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/culturebridge/nostr"
)

var tracer = otel.Tracer("service")

type AuthService struct {
	fqdn  string
	owner string
	now   func() time.Time
}

// NewAuthService checks requests against the node's own public key. fqdn,
// when set, replaces the request host in the signed url.
func NewAuthService(fqdn, owner string) *AuthService {
	return &AuthService{
		fqdn:  fqdn,
		owner: owner,
		now:   time.Now,
	}
}

type AuthResult struct {
	PubKey  string
	IsOwner bool
}

// AuthHTTP validates a NIP-98 authorization header for the given request.
func (s *AuthService) AuthHTTP(ctx context.Context, header, scheme, host, uri, method string, payload []byte) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.AuthHTTP")
	defer span.End()

	if s.fqdn != "" {
		host = s.fqdn
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s%s", scheme, host, uri)

	pubkey, err := nostr.ValidateHTTPAuth(header, url, method, payload, s.now())
	if err != nil {
		span.RecordError(errors.Wrap(err, "nip98 validation failed"))
		return nil, err
	}

	return &AuthResult{PubKey: pubkey, IsOwner: pubkey == s.owner}, nil
}
