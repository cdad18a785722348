package keypool

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Pool and envelope layout constants.
const (
	// EntrySize is the size in bytes of one key-seed entry.
	EntrySize = 32

	// MinEntries and MaxEntries bound the number of entries in a pool. The upper
	// bound keeps every entry index representable in one header byte.
	MinEntries = 2
	MaxEntries = 255

	// WindowSize is the number of entry bytes read at the chosen offset before
	// the window is stretched into key material.
	WindowSize = 8

	// HeaderSize is the size of the envelope header:
	// key entry(1) + key offset(1) + IV entry(1) + IV offset(1).
	HeaderSize = 4

	// MACSize is the size of the HMAC-SHA256 tag that leads every envelope.
	MACSize = sha256.Size

	// minEnvelopeSize is the smallest decoded envelope: MAC(32) + header(4).
	minEnvelopeSize = MACSize + HeaderSize

	// maxKeyOffset is the largest offset a window can start at inside an entry.
	maxKeyOffset = EntrySize - WindowSize
)

// Header records which entries and offsets produced the key and IV of one
// message. It is stored in the clear and covered by the envelope MAC.
type Header [HeaderSize]byte

func newHeader(keyEntry, keyOffset, ivEntry, ivOffset int) Header {
	return Header{byte(keyEntry), byte(keyOffset), byte(ivEntry), byte(ivOffset)}
}

// parseHeader copies b into a Header.
func parseHeader(b []byte) (Header, error) {
	var h Header
	if len(b) != HeaderSize {
		return h, fmt.Errorf("%w: got %d bytes", ErrMalformedHeader, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// KeyEntry returns the index of the entry the key was derived from.
func (h Header) KeyEntry() int { return int(h[0]) }

// KeyOffset returns the window offset inside the key entry.
func (h Header) KeyOffset() int { return int(h[1]) }

// IVEntry returns the index of the entry the IV was derived from.
func (h Header) IVEntry() int { return int(h[2]) }

// IVOffset returns the window offset inside the IV entry.
func (h Header) IVOffset() int { return int(h[3]) }

// String returns the header as "key=E/O iv=E/O".
func (h Header) String() string {
	return fmt.Sprintf("key=%d/%d iv=%d/%d", h.KeyEntry(), h.KeyOffset(), h.IVEntry(), h.IVOffset())
}

// maxIVOffset returns the largest IV window offset for an IV of ivLength bytes.
func maxIVOffset(ivLength int) int {
	return EntrySize - max(ivLength, WindowSize)
}

// Envelope is a decoded, unverified envelope. All slices alias one decoded buffer.
type Envelope struct {
	// MAC is the 32-byte HMAC-SHA256 tag over Payload.
	MAC []byte

	// Payload is the authenticated part: header followed by ciphertext.
	Payload []byte

	// Header is the parsed key selection.
	Header Header

	// Ciphertext is the output of the symmetric primitive.
	Ciphertext []byte
}

// SplitEnvelope decodes envelope text and splits it into its parts without
// verifying or decrypting anything.
func SplitEnvelope(text string) (Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(raw) < minEnvelopeSize {
		return Envelope{}, fmt.Errorf("%w: got %d bytes, need at least %d", ErrEnvelopeTooShort, len(raw), minEnvelopeSize)
	}

	payload := raw[MACSize:]
	h, err := parseHeader(payload[:HeaderSize])
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		MAC:        raw[:MACSize],
		Payload:    payload,
		Header:     h,
		Ciphertext: payload[HeaderSize:],
	}, nil
}

// assembleEnvelope returns base64(mac || header || ciphertext).
func assembleEnvelope(mac []byte, h Header, ciphertext []byte) string {
	raw := make([]byte, 0, len(mac)+HeaderSize+len(ciphertext))
	raw = append(raw, mac...)
	raw = append(raw, h[:]...)
	raw = append(raw, ciphertext...)
	return base64.StdEncoding.EncodeToString(raw)
}
