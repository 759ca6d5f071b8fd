package mega

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DecryptContent decrypts a whole file body in one pass.
func DecryptContent(ciphertext []byte, cfg CTRConfig) ([]byte, error) {
	stream, err := NewContentStream(cfg, 0)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	stream.XORKeyStream(out, ciphertext)
	return out, nil
}

// NewContentStream returns a CTR keystream positioned at byte offset of the
// file, so a byte range can be decrypted without the bytes before it.
func NewContentStream(cfg CTRConfig, offset int64) (cipher.Stream, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", ErrDecrypt, offset)
	}
	block, err := aes.NewCipher(cfg.Key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	var iv [aes.BlockSize]byte
	copy(iv[:8], cfg.CounterBase[:8])
	binary.BigEndian.PutUint64(iv[8:], uint64(offset/aes.BlockSize))
	stream := cipher.NewCTR(block, iv[:])
	if skip := offset % aes.BlockSize; skip > 0 {
		var discard [aes.BlockSize]byte
		stream.XORKeyStream(discard[:skip], discard[:skip])
	}
	return stream, nil
}

// ContentMAC computes the condensed Mega meta-MAC of a plaintext.
func ContentMAC(plain []byte, cfg CTRConfig) ([8]byte, error) {
	block, err := aes.NewCipher(cfg.Key[:])
	if err != nil {
		return [8]byte{}, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	m := newMetaMAC(block, cfg.Nonce())
	_, _ = m.Write(plain)
	return m.Sum(), nil
}

// VerifyContent checks a plaintext against the MAC packed into the link.
func VerifyContent(plain []byte, cfg CTRConfig) error {
	got, err := ContentMAC(plain, cfg)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(got[:], cfg.MAC[:]) != 1 {
		return ErrMACMismatch
	}
	return nil
}

// NewContentReader decrypts r as it is read and checks the meta-MAC once r is
// exhausted. On mismatch the final Read returns ErrMACMismatch instead of
// io.EOF, so consumers that stop on error never commit bad plaintext.
func NewContentReader(r io.Reader, cfg CTRConfig) (io.Reader, error) {
	block, err := aes.NewCipher(cfg.Key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	stream, err := NewContentStream(cfg, 0)
	if err != nil {
		return nil, err
	}
	mac := newMetaMAC(block, cfg.Nonce())
	return &contentReader{
		r:      io.TeeReader(cipher.StreamReader{S: stream, R: r}, mac),
		mac:    mac,
		expect: cfg.MAC,
	}, nil
}

// contentReader yields plaintext that has already been fed to mac.
type contentReader struct {
	r      io.Reader
	mac    *metaMAC
	expect [8]byte
	done   bool
}

func (c *contentReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	n, err := c.r.Read(p)
	if errors.Is(err, io.EOF) {
		if got := c.mac.Sum(); subtle.ConstantTimeCompare(got[:], c.expect[:]) != 1 {
			return n, ErrMACMismatch
		}
		c.done = true
	}
	return n, err
}
