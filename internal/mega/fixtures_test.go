package mega

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	sampleLink     = "https://mega.nz/file/nyIECKrQ#c3tzkRH1OtQ-cxvOc26B9TkwXy9MNdRpciaOjq-0B6o"
	sampleFileID   = "nyIECKrQ"
	sampleFragment = "c3tzkRH1OtQ-cxvOc26B9TkwXy9MNdRpciaOjq-0B6o"
)

var fixtureRawKey = []byte{
	0x10, 0x11, 0x12, 0x13, 0x20, 0x21, 0x22, 0x23,
	0x30, 0x31, 0x32, 0x33, 0x40, 0x41, 0x42, 0x43,
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
}

// packKey builds a link fragment the way Mega does: the first half is the
// AES key XORed with the second half (nonce || meta-MAC).
func packKey(aesKey [16]byte, nonce, mac [8]byte) string {
	raw := make([]byte, 32)
	copy(raw[16:24], nonce[:])
	copy(raw[24:32], mac[:])
	for i := 0; i < 16; i++ {
		raw[i] = aesKey[i] ^ raw[16+i]
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// encryptCTR encrypts with a counter block assembled by hand: nonce in the
// high half, zero in the low half.
func encryptCTR(t *testing.T, aesKey [16]byte, nonce [8]byte, plain []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(aesKey[:])
	require.NoError(t, err)
	var iv [16]byte
	copy(iv[:8], nonce[:])
	out := make([]byte, len(plain))
	cipher.NewCTR(block, iv[:]).XORKeyStream(out, plain)
	return out
}

// encryptCBCRaw zero-pads plain and encrypts it with a zero IV.
func encryptCBCRaw(t *testing.T, aesKey [16]byte, plain []byte) string {
	t.Helper()
	if rem := len(plain) % aes.BlockSize; rem != 0 {
		plain = append(append([]byte{}, plain...), make([]byte, aes.BlockSize-rem)...)
	}
	block, err := aes.NewCipher(aesKey[:])
	require.NoError(t, err)
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, plain)
	return base64.RawURLEncoding.EncodeToString(out)
}

// referenceMAC computes the meta-MAC over the whole buffer at once, chunk by
// chunk, with plain CBC encrypters.
func referenceMAC(t *testing.T, aesKey [16]byte, nonce [8]byte, plain []byte) [8]byte {
	t.Helper()
	block, err := aes.NewCipher(aesKey[:])
	require.NoError(t, err)
	var iv [16]byte
	copy(iv[:8], nonce[:])
	copy(iv[8:], nonce[:])

	fileMAC := make([]byte, 16)
	fold := cipher.NewCBCEncrypter(block, make([]byte, 16))
	pos := 0
	for idx := 0; pos < len(plain); idx++ {
		size := 0x100000
		if idx < 8 {
			size = (idx + 1) * 0x20000
		}
		if pos+size > len(plain) {
			size = len(plain) - pos
		}
		chunk := append([]byte{}, plain[pos:pos+size]...)
		if rem := len(chunk) % 16; rem != 0 {
			chunk = append(chunk, make([]byte, 16-rem)...)
		}
		enc := cipher.NewCBCEncrypter(block, iv[:])
		last := make([]byte, 16)
		for i := 0; i < len(chunk); i += 16 {
			enc.CryptBlocks(last, chunk[i:i+16])
		}
		fold.CryptBlocks(fileMAC, last)
		pos += size
	}

	var out [8]byte
	binary.BigEndian.PutUint32(out[0:], binary.BigEndian.Uint32(fileMAC[0:])^binary.BigEndian.Uint32(fileMAC[4:]))
	binary.BigEndian.PutUint32(out[4:], binary.BigEndian.Uint32(fileMAC[8:])^binary.BigEndian.Uint32(fileMAC[12:]))
	return out
}
