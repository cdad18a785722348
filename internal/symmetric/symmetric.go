// Package symmetric implements the block and stream ciphers envelopes are
// sealed with, addressed by OpenSSL-style names such as "aes-256-cbc".
//
// Keys follow OpenSSL semantics: a key longer than the cipher needs is
// truncated and a shorter one is padded with zero bytes. IVs must have exactly
// the length IVLength reports. CBC and ECB modes use PKCS#7 padding.
package symmetric

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/cast5"
	"golang.org/x/crypto/chacha20"
)

var (
	// ErrUnsupportedAlgorithm is returned for names not in the registry.
	ErrUnsupportedAlgorithm = errors.New("symmetric: unsupported algorithm")

	// ErrInvalidIV is returned when an IV does not have the algorithm's IV length.
	ErrInvalidIV = errors.New("symmetric: invalid IV length")

	// ErrInvalidPadding is returned when decrypted data is not PKCS#7 padded.
	ErrInvalidPadding = errors.New("symmetric: invalid padding")

	// ErrInvalidLength is returned when block-mode ciphertext is not a multiple of the block size.
	ErrInvalidLength = errors.New("symmetric: ciphertext is not a multiple of the block size")
)

// chachaBlockSize is the ChaCha20 keystream block size.
const chachaBlockSize = 64

type mode int

const (
	modeCBC mode = iota
	modeECB
	modeCTR
	modeChaCha20
)

type algorithm struct {
	keySize  int
	ivSize   int
	mode     mode
	newBlock func(key []byte) (cipher.Block, error)
}

// chacha20IVSize is the OpenSSL chacha20 IV: 4-byte little-endian counter || 12-byte nonce.
const chacha20IVSize = 16

var registry = buildRegistry()

func buildRegistry() map[string]algorithm {
	r := make(map[string]algorithm)

	for _, bits := range []int{128, 192, 256} {
		size := bits / 8
		prefix := fmt.Sprintf("aes-%d-", bits)
		r[prefix+"cbc"] = algorithm{keySize: size, ivSize: aes.BlockSize, mode: modeCBC, newBlock: aes.NewCipher}
		r[prefix+"ecb"] = algorithm{keySize: size, mode: modeECB, newBlock: aes.NewCipher}
		r[prefix+"ctr"] = algorithm{keySize: size, ivSize: aes.BlockSize, mode: modeCTR, newBlock: aes.NewCipher}
	}

	r["des-ede-cbc"] = algorithm{keySize: 16, ivSize: des.BlockSize, mode: modeCBC, newBlock: newTwoKeyTripleDES}
	r["des-ede-ecb"] = algorithm{keySize: 16, mode: modeECB, newBlock: newTwoKeyTripleDES}
	r["des-ede3-cbc"] = algorithm{keySize: 24, ivSize: des.BlockSize, mode: modeCBC, newBlock: des.NewTripleDESCipher}
	r["des-ede3-ecb"] = algorithm{keySize: 24, mode: modeECB, newBlock: des.NewTripleDESCipher}

	r["bf-cbc"] = algorithm{keySize: 16, ivSize: blowfish.BlockSize, mode: modeCBC, newBlock: newBlowfish}
	r["bf-ecb"] = algorithm{keySize: 16, mode: modeECB, newBlock: newBlowfish}
	r["cast5-cbc"] = algorithm{keySize: cast5.KeySize, ivSize: cast5.BlockSize, mode: modeCBC, newBlock: newCAST5}
	r["cast5-ecb"] = algorithm{keySize: cast5.KeySize, mode: modeECB, newBlock: newCAST5}

	r["chacha20"] = algorithm{keySize: chacha20.KeySize, ivSize: chacha20IVSize, mode: modeChaCha20}

	return r
}

func newTwoKeyTripleDES(key []byte) (cipher.Block, error) {
	// K1 K2 K1
	k := make([]byte, 0, 24)
	k = append(k, key[:16]...)
	k = append(k, key[:8]...)
	defer clear(k)
	return des.NewTripleDESCipher(k)
}

func newBlowfish(key []byte) (cipher.Block, error) {
	return blowfish.NewCipher(key)
}

func newCAST5(key []byte) (cipher.Block, error) {
	return cast5.NewCipher(key)
}

func lookup(name string) (algorithm, error) {
	alg, ok := registry[strings.ToLower(name)]
	if !ok {
		return algorithm{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return alg, nil
}

// Algorithms returns the supported algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suite is the default primitive. The zero value is ready to use and safe for
// concurrent use.
type Suite struct{}

// IVLength returns the IV length for the algorithm; zero for ECB modes.
func (Suite) IVLength(name string) (int, error) {
	alg, err := lookup(name)
	if err != nil {
		return 0, err
	}
	return alg.ivSize, nil
}

// Encrypt encrypts plaintext under key and iv.
func (Suite) Encrypt(plaintext []byte, name string, key, iv []byte) ([]byte, error) {
	alg, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if len(iv) != alg.ivSize {
		return nil, fmt.Errorf("%w: got %d bytes, %s needs %d", ErrInvalidIV, len(iv), name, alg.ivSize)
	}

	k := fitKey(key, alg.keySize)
	defer clear(k)

	if alg.mode == modeChaCha20 {
		return chacha20XOR(k, iv, plaintext)
	}

	block, err := alg.newBlock(k)
	if err != nil {
		return nil, fmt.Errorf("symmetric: %s: %w", name, err)
	}

	switch alg.mode {
	case modeCTR:
		out := make([]byte, len(plaintext))
		cipher.NewCTR(block, iv).XORKeyStream(out, plaintext)
		return out, nil
	case modeCBC:
		out := pad(plaintext, block.BlockSize())
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, out)
		return out, nil
	default:
		out := pad(plaintext, block.BlockSize())
		ecbCrypt(block.Encrypt, block.BlockSize(), out)
		return out, nil
	}
}

// Decrypt reverses Encrypt.
func (Suite) Decrypt(ciphertext []byte, name string, key, iv []byte) ([]byte, error) {
	alg, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if len(iv) != alg.ivSize {
		return nil, fmt.Errorf("%w: got %d bytes, %s needs %d", ErrInvalidIV, len(iv), name, alg.ivSize)
	}

	k := fitKey(key, alg.keySize)
	defer clear(k)

	if alg.mode == modeChaCha20 {
		return chacha20XOR(k, iv, ciphertext)
	}

	block, err := alg.newBlock(k)
	if err != nil {
		return nil, fmt.Errorf("symmetric: %s: %w", name, err)
	}

	if alg.mode == modeCTR {
		out := make([]byte, len(ciphertext))
		cipher.NewCTR(block, iv).XORKeyStream(out, ciphertext)
		return out, nil
	}

	bs := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	if alg.mode == modeCBC {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	} else {
		copy(out, ciphertext)
		ecbCrypt(block.Decrypt, bs, out)
	}
	return unpad(out, bs)
}

// fitKey returns a copy of key truncated or zero-padded to size bytes.
func fitKey(key []byte, size int) []byte {
	k := make([]byte, size)
	copy(k, key)
	return k
}

func ecbCrypt(fn func(dst, src []byte), bs int, buf []byte) {
	for i := 0; i < len(buf); i += bs {
		fn(buf[i:i+bs], buf[i:i+bs])
	}
}

// chacha20XOR applies ChaCha20 with an OpenSSL-layout IV: a little-endian
// 32-bit block counter followed by a 12-byte nonce. When the counter wraps,
// the first nonce word is incremented and the stream continues from counter
// zero.
func chacha20XOR(key, iv, in []byte) ([]byte, error) {
	counter := binary.LittleEndian.Uint32(iv[:4])
	nonce := make([]byte, chacha20.NonceSize)
	copy(nonce, iv[4:])

	out := make([]byte, len(in))
	for done := 0; ; {
		c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
		if err != nil {
			return nil, fmt.Errorf("symmetric: chacha20: %w", err)
		}
		c.SetCounter(counter)

		// Bytes left before the counter wraps; always whole blocks.
		n := len(in) - done
		if room := (1<<32 - uint64(counter)) * chachaBlockSize; uint64(n) > room {
			n = int(room)
		}
		c.XORKeyStream(out[done:done+n], in[done:done+n])
		done += n
		if done == len(in) {
			return out, nil
		}

		counter = 0
		binary.LittleEndian.PutUint32(nonce[:4], binary.LittleEndian.Uint32(nonce[:4])+1)
	}
}

func pad(b []byte, bs int) []byte {
	n := bs - len(b)%bs
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte, bs int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > bs || n > len(b) {
		return nil, ErrInvalidPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrInvalidPadding
		}
	}
	return b[:len(b)-n], nil
}
