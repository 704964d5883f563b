package culturebridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/totegamma/culturebridge/nostr"
)

// ParseAddress accepts either a "kind:pubkey:d" coordinate or an naddr.
func ParseAddress(s string) (Address, error) {
	if strings.HasPrefix(s, "naddr1") {
		p, err := nostr.DecodeEntity(s)
		if err != nil {
			return Address{}, fmt.Errorf("invalid naddr: %v", err)
		}
		return checkAddress(p.Kind, p.PublicKey, p.Identifier)
	}

	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Address{}, fmt.Errorf("invalid address")
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return Address{}, fmt.Errorf("invalid address kind")
	}
	return checkAddress(kind, parts[1], parts[2])
}

func checkAddress(kind int, pubkey, identifier string) (Address, error) {
	if !nostr.IsParameterizedReplaceable(kind) {
		return Address{}, fmt.Errorf("kind %d is not addressable", kind)
	}
	if !IsHexKey(pubkey) {
		return Address{}, fmt.Errorf("invalid address pubkey")
	}
	if identifier == "" {
		return Address{}, fmt.Errorf("empty identifier")
	}
	return Address{Kind: kind, PubKey: pubkey, Identifier: identifier}, nil
}

func ComposeAddress(kind int, pubkey, identifier string) string {
	return fmt.Sprintf("%d:%s:%s", kind, pubkey, identifier)
}

// EncodeAddress returns the naddr form with optional relay hints.
func EncodeAddress(a Address, relays ...string) (string, error) {
	return nostr.EncodeEntity(nostr.EntityPointer{
		Kind:       a.Kind,
		PublicKey:  a.PubKey,
		Identifier: a.Identifier,
		Relays:     relays,
	})
}

func IsHexKey(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
