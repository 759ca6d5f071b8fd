package mega

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	attrPrefix    = []byte("MEGA")
	attrContainer = []byte("MEGA{")
)

// Attributes is the decrypted attribute record of a file node.
type Attributes struct {
	Name        string `json:"n"`
	Fingerprint string `json:"c,omitempty"`
}

// DecryptAttributes decrypts the "at" blob returned by the API.
func DecryptAttributes(blob string, cfg CBCConfig) (Attributes, error) {
	var attrs Attributes
	enc, err := DecodeBase64URL(blob)
	if err != nil {
		return attrs, fmt.Errorf("%w: %w", ErrAttr, err)
	}
	if len(enc) == 0 || len(enc)%aes.BlockSize != 0 {
		return attrs, fmt.Errorf("%w: invalid length %d", ErrAttrMalformed, len(enc))
	}
	block, err := aes.NewCipher(cfg.Key[:])
	if err != nil {
		return attrs, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	plain := make([]byte, len(enc))
	cipher.NewCBCDecrypter(block, cfg.IV[:]).CryptBlocks(plain, enc)
	plain = bytes.TrimRight(plain, "\x00")

	if !utf8.Valid(plain) {
		return attrs, ErrAttrBadEncoding
	}
	if !bytes.HasPrefix(plain, attrContainer) {
		return attrs, ErrAttrBadTag
	}
	if err := json.Unmarshal(plain[len(attrPrefix):], &attrs); err != nil {
		return attrs, fmt.Errorf("%w: %v", ErrAttrMalformed, err)
	}
	if strings.TrimSpace(attrs.Name) == "" {
		return Attributes{}, fmt.Errorf("%w: name missing", ErrAttrMalformed)
	}
	return attrs, nil
}

// EncryptAttributes produces a blob DecryptAttributes accepts.
func EncryptAttributes(attrs Attributes, cfg CBCConfig) (string, error) {
	body, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	plain := append(append([]byte{}, attrPrefix...), body...)
	if rem := len(plain) % aes.BlockSize; rem != 0 {
		plain = append(plain, make([]byte, aes.BlockSize-rem)...)
	}
	block, err := aes.NewCipher(cfg.Key[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, cfg.IV[:]).CryptBlocks(out, plain)
	return EncodeBase64URL(out), nil
}
