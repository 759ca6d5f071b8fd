package mega

import (
	"encoding/binary"
	"fmt"
)

const rawKeyLen = 32

// CTRConfig holds the AES-CTR parameters for file content. MAC is the
// condensed meta-MAC packed into the link, used to verify the plaintext.
type CTRConfig struct {
	Key         [16]byte
	CounterBase [16]byte
	MAC         [8]byte
}

// CBCConfig holds the AES-CBC parameters for the attribute blob. IV is
// always the zero block.
type CBCConfig struct {
	Key [16]byte
	IV  [16]byte
}

// DeriveKeys expands a link key fragment into the content and attribute
// cipher configurations.
func DeriveKeys(fragment string) (CTRConfig, CBCConfig, error) {
	var ctr CTRConfig
	var cbc CBCConfig
	raw, err := DecodeBase64URL(fragment)
	if err != nil {
		return ctr, cbc, fmt.Errorf("%w: %w", ErrDerive, err)
	}
	if len(raw) != rawKeyLen {
		return ctr, cbc, fmt.Errorf("%w: got %d bytes", ErrBadKeyLength, len(raw))
	}

	var k [8]uint32
	for i := range k {
		k[i] = binary.BigEndian.Uint32(raw[i*4:])
	}
	keyAndNonce := [6]uint32{k[0] ^ k[4], k[1] ^ k[5], k[2] ^ k[6], k[3] ^ k[7], k[4], k[5]}

	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint32(ctr.Key[i*4:], keyAndNonce[i])
	}
	binary.BigEndian.PutUint32(ctr.CounterBase[0:], keyAndNonce[4])
	binary.BigEndian.PutUint32(ctr.CounterBase[4:], keyAndNonce[5])
	binary.BigEndian.PutUint32(ctr.MAC[0:], k[6])
	binary.BigEndian.PutUint32(ctr.MAC[4:], k[7])

	cbc.Key = ctr.Key
	return ctr, cbc, nil
}

// Nonce returns the 8 significant bytes of the counter base.
func (c CTRConfig) Nonce() [8]byte {
	var n [8]byte
	copy(n[:], c.CounterBase[:8])
	return n
}
