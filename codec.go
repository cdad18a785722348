package keypool

import (
	"fmt"

	"github.com/rbaliyan/config/codec"
)

// Codec wraps an inner codec with pooled-key envelope encryption.
// On Encode, the inner codec serializes the value, then the result is sealed.
// On Decode, the envelope is opened, then the inner codec deserializes the plaintext.
//
// Codec is safe for concurrent use if the inner codec is.
type Codec struct {
	inner  codec.Codec
	cipher *Cipher
	name   string
}

// Compile-time interface check.
var _ codec.Codec = (*Codec)(nil)

// NewCodec creates an encrypting codec that wraps the given inner codec.
// The codec name is "keypool:<inner>", e.g. "keypool:json".
// Returns an error if inner or c is nil.
func NewCodec(inner codec.Codec, c *Cipher) (*Codec, error) {
	if inner == nil {
		return nil, fmt.Errorf("keypool: NewCodec inner codec is nil")
	}
	if c == nil {
		return nil, fmt.Errorf("keypool: NewCodec cipher is nil")
	}
	return &Codec{
		inner:  inner,
		cipher: c,
		name:   "keypool:" + inner.Name(),
	}, nil
}

// Name returns the codec name, e.g. "keypool:json".
func (c *Codec) Name() string {
	return c.name
}

// Encode serializes the value using the inner codec, then seals the result.
// The returned bytes are the base64 envelope text.
func (c *Codec) Encode(v any) ([]byte, error) {
	plaintext, err := c.inner.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("keypool: inner encode failed: %w", err)
	}

	envelope, err := c.cipher.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("keypool: encrypt failed: %w", err)
	}
	return []byte(envelope), nil
}

// Decode opens the envelope, then deserializes the plaintext using the inner codec.
func (c *Codec) Decode(data []byte, v any) error {
	plaintext, err := c.cipher.Decrypt(string(data))
	if err != nil {
		return fmt.Errorf("keypool: decrypt failed: %w", err)
	}

	if err := c.inner.Decode(plaintext, v); err != nil {
		return fmt.Errorf("keypool: inner decode failed: %w", err)
	}
	return nil
}
