package nostr

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"
)

const (
	tlvSpecial = 0
	tlvRelay   = 1
	tlvAuthor  = 2
	tlvKind    = 3
)

func EncodePublicKey(pubkeyHex string) (string, error) {
	b, err := hex.DecodeString(pubkeyHex)
	if err != nil || len(b) != 32 {
		return "", fmt.Errorf("invalid pubkey")
	}
	return bech32.ConvertAndEncode("npub", b)
}

func EncodePrivateKey(privHex string) (string, error) {
	b, err := hex.DecodeString(privHex)
	if err != nil || len(b) != 32 {
		return "", fmt.Errorf("invalid private key")
	}
	return bech32.ConvertAndEncode("nsec", b)
}

// DecodeKey decodes an npub or nsec into its hrp and hex payload.
func DecodeKey(bech string) (string, string, error) {
	hrp, data, err := bech32.DecodeAndConvert(bech)
	if err != nil {
		return "", "", err
	}
	if hrp != "npub" && hrp != "nsec" {
		return "", "", fmt.Errorf("unexpected prefix %s", hrp)
	}
	if len(data) != 32 {
		return "", "", fmt.Errorf("invalid key length %d", len(data))
	}
	return hrp, hex.EncodeToString(data), nil
}

// EntityPointer is the decoded form of an naddr.
type EntityPointer struct {
	Kind       int
	PublicKey  string
	Identifier string
	Relays     []string
}

func EncodeEntity(p EntityPointer) (string, error) {
	author, err := hex.DecodeString(p.PublicKey)
	if err != nil || len(author) != 32 {
		return "", fmt.Errorf("invalid pubkey")
	}
	if len(p.Identifier) > 255 {
		return "", fmt.Errorf("identifier too long")
	}

	var buf []byte
	buf = appendTLV(buf, tlvSpecial, []byte(p.Identifier))
	for _, r := range p.Relays {
		buf = appendTLV(buf, tlvRelay, []byte(r))
	}
	buf = appendTLV(buf, tlvAuthor, author)
	kind := make([]byte, 4)
	binary.BigEndian.PutUint32(kind, uint32(p.Kind))
	buf = appendTLV(buf, tlvKind, kind)

	return bech32.ConvertAndEncode("naddr", buf)
}

func DecodeEntity(naddr string) (EntityPointer, error) {
	hrp, data, err := bech32.DecodeAndConvert(naddr)
	if err != nil {
		return EntityPointer{}, err
	}
	if hrp != "naddr" {
		return EntityPointer{}, fmt.Errorf("unexpected prefix %s", hrp)
	}

	var p EntityPointer
	hasKind, hasAuthor := false, false
	for len(data) > 0 {
		if len(data) < 2 {
			return EntityPointer{}, fmt.Errorf("truncated tlv")
		}
		t, l := data[0], int(data[1])
		if len(data) < 2+l {
			return EntityPointer{}, fmt.Errorf("truncated tlv value")
		}
		v := data[2 : 2+l]
		data = data[2+l:]

		switch t {
		case tlvSpecial:
			p.Identifier = string(v)
		case tlvRelay:
			p.Relays = append(p.Relays, string(v))
		case tlvAuthor:
			if len(v) != 32 {
				return EntityPointer{}, fmt.Errorf("invalid author length %d", len(v))
			}
			p.PublicKey = hex.EncodeToString(v)
			hasAuthor = true
		case tlvKind:
			if len(v) != 4 {
				return EntityPointer{}, fmt.Errorf("invalid kind length %d", len(v))
			}
			p.Kind = int(binary.BigEndian.Uint32(v))
			hasKind = true
		}
	}
	if !hasKind || !hasAuthor {
		return EntityPointer{}, fmt.Errorf("naddr missing kind or author")
	}
	return p, nil
}

func appendTLV(buf []byte, t byte, v []byte) []byte {
	buf = append(buf, t, byte(len(v)))
	return append(buf, v...)
}
