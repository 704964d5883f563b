package nostr

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	ncryptsecVersion = 0x02
	// key_security byte: 0x02 means the client does not track key handling.
	keySecurityUnknown = 0x02
)

// DecryptPrivateKey decodes an ncryptsec string into a hex private key.
func DecryptPrivateKey(ncryptsec, password string) (string, error) {
	hrp, data, err := bech32.DecodeAndConvert(ncryptsec)
	if err != nil {
		return "", err
	}
	if hrp != "ncryptsec" {
		return "", fmt.Errorf("unexpected prefix %s", hrp)
	}
	// version(1) logn(1) salt(16) nonce(24) ad(1) ciphertext(48)
	if len(data) != 91 {
		return "", fmt.Errorf("invalid ncryptsec length %d", len(data))
	}
	if data[0] != ncryptsecVersion {
		return "", fmt.Errorf("unsupported ncryptsec version %d", data[0])
	}

	logn := data[1]
	salt := data[2:18]
	nonce := data[18:42]
	ad := data[42:43]
	ciphertext := data[43:]

	key, err := deriveKey(password, salt, logn)
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	plain, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt private key: %v", err)
	}
	return hex.EncodeToString(plain), nil
}

// EncryptPrivateKey produces an ncryptsec for the given hex private key.
func EncryptPrivateKey(privHex, password string, logn uint8) (string, error) {
	priv, err := hex.DecodeString(privHex)
	if err != nil || len(priv) != 32 {
		return "", fmt.Errorf("invalid private key")
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	key, err := deriveKey(password, salt, logn)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	ad := []byte{keySecurityUnknown}
	ciphertext := aead.Seal(nil, nonce, priv, ad)

	data := make([]byte, 0, 91)
	data = append(data, ncryptsecVersion, logn)
	data = append(data, salt...)
	data = append(data, nonce...)
	data = append(data, ad...)
	data = append(data, ciphertext...)

	return bech32.ConvertAndEncode("ncryptsec", data)
}

func deriveKey(password string, salt []byte, logn uint8) ([]byte, error) {
	if logn > 22 {
		return nil, fmt.Errorf("scrypt log_n %d too large", logn)
	}
	normalized := norm.NFKC.String(password)
	return scrypt.Key([]byte(normalized), salt, 1<<logn, 8, 1, 32)
}
