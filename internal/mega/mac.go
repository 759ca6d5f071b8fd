package mega

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
)

// chunkSize is the length of chunk i: 128 KiB·(i+1) for the first eight,
// 1 MiB afterwards.
func chunkSize(index int) int64 {
	if index < 8 {
		return int64(index+1) * 0x20000
	}
	return 0x100000
}

// metaMAC accumulates the Mega file MAC. Every chunk is CBC-MACed with IV
// nonce||nonce and the chunk MACs are chained through a zero-IV CBC.
// It implements io.Writer and never fails.
type metaMAC struct {
	block cipher.Block
	iv    [aes.BlockSize]byte

	fold   cipher.BlockMode
	folded [aes.BlockSize]byte

	chunk   cipher.BlockMode
	last    [aes.BlockSize]byte
	partial []byte
	index   int
	left    int64
	dirty   bool
}

func newMetaMAC(block cipher.Block, nonce [8]byte) *metaMAC {
	m := &metaMAC{
		block:   block,
		fold:    cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)),
		partial: make([]byte, 0, aes.BlockSize),
	}
	copy(m.iv[:8], nonce[:])
	copy(m.iv[8:], nonce[:])
	m.startChunk()
	return m
}

func (m *metaMAC) startChunk() {
	m.chunk = cipher.NewCBCEncrypter(m.block, m.iv[:])
	m.left = chunkSize(m.index)
	m.dirty = false
}

func (m *metaMAC) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		take := min(int64(len(p)), m.left)
		m.absorb(p[:take])
		p = p[take:]
		if m.left -= take; m.left == 0 {
			m.closeChunk()
			m.index++
			m.startChunk()
		}
	}
	return n, nil
}

// absorb feeds bytes of the current chunk, holding back a trailing partial block.
func (m *metaMAC) absorb(p []byte) {
	if len(p) == 0 {
		return
	}
	m.dirty = true
	if len(m.partial) > 0 {
		need := aes.BlockSize - len(m.partial)
		if len(p) < need {
			m.partial = append(m.partial, p...)
			return
		}
		m.partial = append(m.partial, p[:need]...)
		m.chunk.CryptBlocks(m.last[:], m.partial)
		m.partial = m.partial[:0]
		p = p[need:]
	}
	full := len(p) - len(p)%aes.BlockSize
	for off := 0; off < full; off += aes.BlockSize {
		m.chunk.CryptBlocks(m.last[:], p[off:off+aes.BlockSize])
	}
	m.partial = append(m.partial, p[full:]...)
}

// closeChunk zero-pads the tail and folds the chunk MAC into the file MAC.
// Chunks without data contribute nothing.
func (m *metaMAC) closeChunk() {
	if !m.dirty {
		return
	}
	if len(m.partial) > 0 {
		var padded [aes.BlockSize]byte
		copy(padded[:], m.partial)
		m.chunk.CryptBlocks(m.last[:], padded[:])
		m.partial = m.partial[:0]
	}
	m.fold.CryptBlocks(m.folded[:], m.last[:])
	m.dirty = false
}

// Sum closes the open chunk and condenses the file MAC to 8 bytes.
func (m *metaMAC) Sum() [8]byte {
	m.closeChunk()
	w := func(i int) uint32 { return binary.BigEndian.Uint32(m.folded[i*4:]) }
	var out [8]byte
	binary.BigEndian.PutUint32(out[0:], w(0)^w(1))
	binary.BigEndian.PutUint32(out[4:], w(2)^w(3))
	return out
}
