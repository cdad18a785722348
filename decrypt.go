package keypool

import (
	"context"
	"crypto/hmac"
	"fmt"
)

// Decrypt verifies and opens an envelope produced by Encrypt.
//
// Malformed base64 yields ErrInvalidEncoding and a decoded envelope shorter
// than 36 bytes yields ErrEnvelopeTooShort. Every other failure before the MAC
// is verified, including a header that references entries outside the pool,
// yields ErrAuthenticationFailed with the same message as a bad MAC. A failure
// after the MAC is verified yields ErrDecryptionFailed.
func (c *Cipher) Decrypt(envelope string) ([]byte, error) {
	return c.DecryptContext(context.Background(), envelope)
}

// DecryptContext is Decrypt with a context carrying the trace span. The
// operation does not block and ignores cancellation.
func (c *Cipher) DecryptContext(ctx context.Context, envelope string) (plaintext []byte, err error) {
	ctx, span := c.tel.start(ctx, opDecrypt)
	defer func() { c.tel.finish(ctx, span, opDecrypt, len(plaintext), err) }()

	e, err := SplitEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	m, err := c.pool.RestoreKeyAndIV(c.algorithm, c.ivLength, e.Payload[:HeaderSize])
	if err != nil {
		c.log.WithField("stage", "restore").Debug("rejected envelope")
		return nil, ErrAuthenticationFailed
	}
	defer m.Wipe()

	keys := c.deriveSessionKeys(m.Key)
	defer keys.wipe()

	// Verify before decrypting; hmac.Equal runs in constant time
	if !hmac.Equal(e.MAC, mac(keys.authentication, e.Header, e.Ciphertext)) {
		c.log.WithField("stage", "verify").Debug("rejected envelope")
		return nil, ErrAuthenticationFailed
	}

	plaintext, err = c.primitive.Decrypt(e.Ciphertext, c.algorithm, keys.encryption, m.IV)
	if err != nil {
		c.log.WithField("stage", "decrypt").Debug("rejected envelope")
		return nil, fmt.Errorf("%w: ciphertext could not be opened", ErrDecryptionFailed)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}
