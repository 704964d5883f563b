package nostr

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Signer is the signing capability handed to publish and upload calls.
// Implementations may be local keys or remote signers.
type Signer interface {
	PublicKey(ctx context.Context) (string, error)
	SignEvent(ctx context.Context, ev *Event) error
}

// KeySigner signs with an in-memory secp256k1 key.
type KeySigner struct {
	priv   *btcec.PrivateKey
	pubkey string
}

func NewKeySigner(privateKeyHex string) (*KeySigner, error) {
	b, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %v", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	priv, pub := btcec.PrivKeyFromBytes(b)
	return &KeySigner{
		priv:   priv,
		pubkey: hex.EncodeToString(schnorr.SerializePubKey(pub)),
	}, nil
}

// GeneratePrivateKey returns a fresh hex encoded private key.
func GeneratePrivateKey() (string, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(priv.Serialize()), nil
}

func (s *KeySigner) PublicKey(ctx context.Context) (string, error) {
	return s.pubkey, nil
}

// PublicKeyHex is the x-only public key without a context.
func (s *KeySigner) PublicKeyHex() string {
	return s.pubkey
}

func (s *KeySigner) SignEvent(ctx context.Context, ev *Event) error {
	if ev.Tags == nil {
		ev.Tags = Tags{}
	}
	ev.PubKey = s.pubkey
	ev.ID = ev.GetID()

	id, err := hex.DecodeString(ev.ID)
	if err != nil {
		return err
	}
	sig, err := schnorr.Sign(s.priv, id)
	if err != nil {
		return fmt.Errorf("failed to sign event: %v", err)
	}
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

var _ Signer = (*KeySigner)(nil)
