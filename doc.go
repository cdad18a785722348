// Package keypool seals small payloads with per-message keys derived from a
// fixed pool of secret entries.
//
// A Pool holds between 2 and 255 entries of 32 bytes in locked memory. For
// every message the pool picks a key entry, an IV entry and an offset into
// each, reads an 8-byte window at each offset and stretches it with SHA-256
// to the key length of the algorithm. The four choices form a 4-byte header
// that travels in the clear.
//
// A Cipher turns the derived master key into separate encryption and
// authentication keys and produces the envelope
//
//	base64(HMAC-SHA256(auth, header || ciphertext) || header || ciphertext)
//
// Decrypt verifies the MAC before decrypting. Malformed input is reported as
// ErrInvalidEncoding or ErrEnvelopeTooShort; anything that fails before the
// MAC is verified is reported as ErrAuthenticationFailed.
//
// Codec plugs a Cipher into the github.com/rbaliyan/config codec registry:
//
//	keys, _ := keypool.GenerateKeySet(32)
//	pool, _ := keypool.NewPool(keys)
//	c, _ := keypool.New("aes-256-cbc", pool)
//	enc, _ := keypool.NewCodec(codec.JSON(), c)
//	codec.Register(enc) // "keypool:json"
package keypool
