package keypool

import (
	"context"
	"fmt"
)

// Encrypt seals plaintext and returns the base64 envelope
// MAC(32) || header(4) || ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	return c.EncryptContext(context.Background(), plaintext)
}

// EncryptContext is Encrypt with a context carrying the trace span. The
// operation does not block and ignores cancellation.
func (c *Cipher) EncryptContext(ctx context.Context, plaintext []byte) (envelope string, err error) {
	ctx, span := c.tel.start(ctx, opEncrypt)
	defer func() { c.tel.finish(ctx, span, opEncrypt, len(plaintext), err) }()

	// Draw a fresh key, IV and header for this message
	m, err := c.pool.DeriveKeyAndIV(c.algorithm, c.ivLength)
	if err != nil {
		return "", fmt.Errorf("keypool: failed to derive key: %w", err)
	}
	defer m.Wipe()

	keys := c.deriveSessionKeys(m.Key)
	defer keys.wipe()

	ciphertext, err := c.primitive.Encrypt(plaintext, c.algorithm, keys.encryption, m.IV)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCipherFailure, err)
	}

	// Authenticate header and ciphertext together
	tag := mac(keys.authentication, m.Header, ciphertext)

	return assembleEnvelope(tag, m.Header, ciphertext), nil
}
