package keypool

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rbaliyan/config-keypool/internal/symmetric"
)

func testCipher(t testing.TB, algorithm string, opts ...Option) *Cipher {
	t.Helper()
	c, err := New(algorithm, testPool(t), opts...)
	if err != nil {
		t.Fatalf("New(%q): %v", algorithm, err)
	}
	return c
}

// flaky wraps the default primitive and fails on demand.
type flaky struct {
	symmetric.Suite
	encryptErr error
	decryptErr error
}

func (f flaky) Encrypt(plaintext []byte, algorithm string, key, iv []byte) ([]byte, error) {
	if f.encryptErr != nil {
		return nil, f.encryptErr
	}
	return f.Suite.Encrypt(plaintext, algorithm, key, iv)
}

func (f flaky) Decrypt(ciphertext []byte, algorithm string, key, iv []byte) ([]byte, error) {
	if f.decryptErr != nil {
		return nil, f.decryptErr
	}
	return f.Suite.Decrypt(ciphertext, algorithm, key, iv)
}

func TestNewUnsupportedAlgorithm(t *testing.T) {
	_, err := New("rot13", testPool(t))
	if !IsCipherFailure(err) {
		t.Errorf("expected ErrCipherFailure, got %v", err)
	}
}

func TestNewNilPool(t *testing.T) {
	if _, err := New("aes-256-cbc", nil); err == nil {
		t.Error("expected error for nil pool")
	}
}

func TestCipherAccessors(t *testing.T) {
	p := testPool(t)
	c, err := New("aes-192-cbc", p)
	if err != nil {
		t.Fatal(err)
	}
	if c.Algorithm() != "aes-192-cbc" {
		t.Errorf("Algorithm(): got %q", c.Algorithm())
	}
	if c.Pool() != p {
		t.Error("Pool() does not return the bound pool")
	}
}

func TestRoundTripAllAlgorithms(t *testing.T) {
	p := testPool(t)
	for _, alg := range symmetric.Algorithms() {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()
			c, err := New(alg, p)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			for _, plaintext := range []string{"somevalue", "somevalue-somevalue-somevalue", ""} {
				// Repeat so many different entry/offset selections are exercised.
				for i := 0; i < 40; i++ {
					envelope, err := c.Encrypt([]byte(plaintext))
					if err != nil {
						t.Fatalf("Encrypt: %v", err)
					}
					if envelope == plaintext {
						t.Fatal("envelope equals plaintext")
					}
					got, err := c.Decrypt(envelope)
					if err != nil {
						t.Fatalf("Decrypt: %v", err)
					}
					if string(got) != plaintext {
						t.Fatalf("got %q, want %q", got, plaintext)
					}
				}
			}
		})
	}
}

func TestRoundTripPlaintexts(t *testing.T) {
	c := testCipher(t, "aes-256-cbc")

	binary := make([]byte, 256)
	for i := range binary {
		binary[i] = byte(i)
	}

	tests := map[string][]byte{
		"special characters": []byte(`!@#$%^&*()_+-=[]{}|;:'",.<>/?\`),
		"japanese":           []byte("こんにちは世界!"),
		"russian":            []byte("Привет, мир!"),
		"chinese":            []byte("你好，世界！"),
		"emojis":             []byte("😀 🚀 🌍 🔒 💻"),
		"binary":             binary,
		"empty":              {},
		"very long":          bytes.Repeat([]byte("Long text with some variation 123!@#$ "), 100),
		"newlines and tabs":  []byte("Line 1\nLine 2\tTabbed\rCarriage Return"),
		"null bytes":         []byte("Before\x00After"),
		"high unicode":       []byte("𝕳𝖊𝖑𝖑𝖔 𝖂𝖔𝖗𝖑𝖉"),
		"rtl":                []byte("مرحبا بالعالم"),
		"mixed scripts":      []byte("Hello Привет こんにちは 你好 مرحبا"),
	}
	for name, plaintext := range tests {
		t.Run(name, func(t *testing.T) {
			envelope, err := c.Encrypt(plaintext)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			got, err := c.Decrypt(envelope)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Errorf("got %q, want %q", got, plaintext)
			}
		})
	}
}

func TestDecryptEmptyPlaintextIsNotNil(t *testing.T) {
	c := testCipher(t, "aes-256-ctr")
	envelope, err := c.Encrypt(nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decrypt(envelope)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

func TestEncryptSameInputDiffers(t *testing.T) {
	c := testCipher(t, "aes-256-cbc")

	a, err := c.Encrypt([]byte("same input"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Encrypt([]byte("same input"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two encryptions of same input produced identical output")
	}

	for _, e := range []string{a, b} {
		got, err := c.Decrypt(e)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "same input" {
			t.Errorf("got %q", got)
		}
	}
}

func TestEnvelopeConstruction(t *testing.T) {
	// All-zero picks select entry 0, offset 0 for both key and IV.
	p := testPool(t, WithRandomSource(bytes.NewReader(make([]byte, HeaderSize))))
	c, err := New("aes-256-cbc", p)
	if err != nil {
		t.Fatal(err)
	}

	envelope, err := c.Encrypt([]byte("Format validation test"))
	if err != nil {
		t.Fatal(err)
	}
	e, err := SplitEnvelope(envelope)
	if err != nil {
		t.Fatal(err)
	}

	if e.Header != (Header{0, 0, 0, 0}) {
		t.Errorf("header: got %v", e.Header)
	}

	master := unhex(t, "c31743582480317cab98153c4ada8dfa4f2a954a3f37e5953bd8e5e32add5390")
	encKey := unhex(t, "032cec6a5170a3dcc12d47e8400c2f07ea28fbe06d8bfb171ea58ab5ce94a267")
	authKey := unhex(t, "0ae6ea6b0b989ed806a60a232928e59cd19bb56d44b9791f4a247eba3210bc72")

	m := hmac.New(sha256.New, authKey)
	m.Write(e.Payload)
	if !hmac.Equal(e.MAC, m.Sum(nil)) {
		t.Error("MAC is not HMAC-SHA256(authentication key, header || ciphertext)")
	}

	// The IV derives from the same window with the 32-byte target, so it is the master key prefix.
	plaintext, err := symmetric.Suite{}.Decrypt(e.Ciphertext, "aes-256-cbc", encKey, master[:16])
	if err != nil {
		t.Fatalf("decrypt with derived keys: %v", err)
	}
	if string(plaintext) != "Format validation test" {
		t.Errorf("plaintext: got %q", plaintext)
	}
}

func TestDeriveSessionKeys(t *testing.T) {
	master := unhex(t, "c31743582480317cab98153c4ada8dfa4f2a954a3f37e5953bd8e5e32add5390")

	k := testCipher(t, "aes-256-cbc").deriveSessionKeys(master)
	if diff := cmp.Diff(unhex(t, "032cec6a5170a3dcc12d47e8400c2f07ea28fbe06d8bfb171ea58ab5ce94a267"), k.encryption); diff != "" {
		t.Errorf("encryption key (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(unhex(t, "0ae6ea6b0b989ed806a60a232928e59cd19bb56d44b9791f4a247eba3210bc72"), k.authentication); diff != "" {
		t.Errorf("authentication key (-want +got):\n%s", diff)
	}

	master128 := master[:16]
	k = testCipher(t, "aes-128-cbc").deriveSessionKeys(master128)
	if diff := cmp.Diff(unhex(t, "aa42158b612f3857d7556479cad371a0"), k.encryption); diff != "" {
		t.Errorf("128-bit encryption key (-want +got):\n%s", diff)
	}
	if len(k.authentication) != 32 {
		t.Errorf("authentication key length: got %d, want 32", len(k.authentication))
	}
}

func TestTamperingEveryBit(t *testing.T) {
	c := testCipher(t, "aes-256-cbc")
	envelope, err := c.Encrypt([]byte("This is a secret message that should be protected from tampering"))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		t.Fatal(err)
	}

	region := func(i int) string {
		switch {
		case i < MACSize:
			return "mac"
		case i < MACSize+HeaderSize:
			return "header"
		default:
			return "ciphertext"
		}
	}

	var uniform string
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), raw...)
			tampered[i] ^= 1 << bit

			_, err := c.Decrypt(base64.StdEncoding.EncodeToString(tampered))
			if !IsAuthenticationFailed(err) {
				t.Fatalf("%s byte %d bit %d: expected ErrAuthenticationFailed, got %v", region(i), i, bit, err)
			}
			if uniform == "" {
				uniform = err.Error()
			}
			if err.Error() != uniform {
				t.Fatalf("%s byte %d bit %d: error %q differs from %q", region(i), i, bit, err, uniform)
			}
		}
	}
}

func TestDecryptHeaderOutsidePool(t *testing.T) {
	c := testCipher(t, "aes-256-cbc")
	envelope, err := c.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := base64.StdEncoding.DecodeString(envelope)
	raw[MACSize] = 200 // key entry beyond the 32-entry pool

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString(raw))
	if !IsAuthenticationFailed(err) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if IsMalformedHeader(err) {
		t.Error("header validity leaked through the error chain")
	}
	if err.Error() != ErrAuthenticationFailed.Error() {
		t.Errorf("error message %q reveals detail", err)
	}
}

func TestDecryptInvalidBase64(t *testing.T) {
	c := testCipher(t, "aes-256-cbc")
	_, err := c.Decrypt("!!!Invalid@Base64#String$$$")
	if !IsInvalidEncoding(err) {
		t.Errorf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestDecryptTooShort(t *testing.T) {
	c := testCipher(t, "aes-256-cbc")
	for _, n := range []int{0, 5, 35} {
		_, err := c.Decrypt(base64.StdEncoding.EncodeToString(make([]byte, n)))
		if !IsEnvelopeTooShort(err) {
			t.Errorf("%d bytes: expected ErrEnvelopeTooShort, got %v", n, err)
		}
	}
}

func TestDecryptHeaderOnly(t *testing.T) {
	// 36 bytes parse but cannot carry a valid MAC.
	c := testCipher(t, "aes-256-cbc")
	_, err := c.Decrypt(base64.StdEncoding.EncodeToString(make([]byte, 36)))
	if !IsAuthenticationFailed(err) {
		t.Errorf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestDecryptWrongPool(t *testing.T) {
	c := testCipher(t, "aes-256-cbc")
	envelope, err := c.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	other, err := NewPool(makeKeys(32))
	if err != nil {
		t.Fatal(err)
	}
	defer other.Destroy()
	wrong, err := New("aes-256-cbc", other)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := wrong.Decrypt(envelope); !IsAuthenticationFailed(err) {
		t.Errorf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestDecryptWrongAlgorithm(t *testing.T) {
	p := testPool(t)
	a, err := New("aes-256-cbc", p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("aes-128-cbc", p)
	if err != nil {
		t.Fatal(err)
	}

	envelope, err := a.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Decrypt(envelope); !IsAuthenticationFailed(err) {
		t.Errorf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestEncryptCipherFailure(t *testing.T) {
	boom := errors.New("engine exploded")
	c := testCipher(t, "aes-256-cbc", WithBlockCipher(flaky{encryptErr: boom}))

	_, err := c.Encrypt([]byte("x"))
	if !IsCipherFailure(err) {
		t.Fatalf("expected ErrCipherFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "engine exploded") {
		t.Errorf("primitive diagnostic was suppressed: %v", err)
	}
}

func TestDecryptFailureAfterVerification(t *testing.T) {
	p := testPool(t)
	good, err := New("aes-256-cbc", p)
	if err != nil {
		t.Fatal(err)
	}
	bad, err := New("aes-256-cbc", p, WithBlockCipher(flaky{decryptErr: errors.New("internal detail")}))
	if err != nil {
		t.Fatal(err)
	}

	envelope, err := good.Encrypt([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = bad.Decrypt(envelope)
	if !IsDecryptionFailed(err) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
	if strings.Contains(err.Error(), "internal detail") {
		t.Errorf("primitive error leaked: %v", err)
	}
}

func TestEncryptDestroyedPool(t *testing.T) {
	p, err := NewPool(fixedKeys)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New("aes-256-cbc", p)
	if err != nil {
		t.Fatal(err)
	}
	p.Destroy()

	if _, err := c.Encrypt([]byte("x")); !IsPoolDestroyed(err) {
		t.Errorf("expected ErrPoolDestroyed, got %v", err)
	}
}

func TestCipherConcurrent(t *testing.T) {
	c := testCipher(t, "aes-256-cbc")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			plaintext := []byte(strings.Repeat("x", n))
			envelope, err := c.Encrypt(plaintext)
			if err != nil {
				t.Errorf("Encrypt(%d): %v", n, err)
				return
			}
			got, err := c.Decrypt(envelope)
			if err != nil {
				t.Errorf("Decrypt(%d): %v", n, err)
				return
			}
			if !bytes.Equal(got, plaintext) {
				t.Errorf("round trip %d mismatch", n)
			}
		}(i)
	}
	wg.Wait()
}

func TestChaCha20LargePlaintextAcrossCounterWrap(t *testing.T) {
	// The window 00000000000877aa stretches to an IV whose counter word is
	// 0xffffe5bf, leaving 0x1a41 blocks before it wraps.
	keys := []string{
		"00000000000877aa" + strings.Repeat("00", EntrySize-8),
		strings.Repeat("11", EntrySize),
	}
	p, err := NewPool(keys, WithRandomSource(bytes.NewReader(make([]byte, HeaderSize))))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Destroy)

	m, err := p.RestoreKeyAndIV("chacha20", 16, []byte{0, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if got := binary.LittleEndian.Uint32(m.IV[:4]); got != 0xffffe5bf {
		t.Fatalf("IV counter: got %#x, want 0xffffe5bf", got)
	}
	m.Wipe()

	c, err := New("chacha20", p)
	if err != nil {
		t.Fatal(err)
	}
	msg := bytes.Repeat([]byte{0x5a}, 1<<20)
	envelope, err := c.Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := c.Decrypt(envelope)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Error("round trip mismatch")
	}
}
