package keypool

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

// Pool is an immutable set of 32-byte key-seed entries.
//
// Entries live in a single memguard buffer that is frozen read-only after
// construction, so a Pool is safe for concurrent use without locking as long
// as the random source is. Destroy must not race with other calls.
type Pool struct {
	entries *memguard.LockedBuffer
	size    int
	random  io.Reader
}

// PoolOption configures a Pool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	random io.Reader
	err    error // deferred validation error from options
}

// WithRandomSource sets the source used to pick entries and offsets.
// It defaults to crypto/rand.Reader and must be safe for concurrent use if
// the pool is shared between goroutines.
func WithRandomSource(r io.Reader) PoolOption {
	return func(o *poolOptions) {
		if o.err != nil {
			return
		}
		if r == nil {
			o.err = fmt.Errorf("%w: random source must not be nil", ErrInvalidKeyPool)
			return
		}
		o.random = r
	}
}

// NewPool creates a Pool from hex-encoded entries. Each entry must be 64 hex
// characters (32 bytes) and there must be between 2 and 255 entries.
func NewPool(hexEntries []string, opts ...PoolOption) (*Pool, error) {
	return newPool(len(hexEntries), func(dst []byte, i int) error {
		e := hexEntries[i]
		if len(e) != hex.EncodedLen(EntrySize) {
			return fmt.Errorf("%w: entry %d has %d hex characters, want %d", ErrInvalidKeyPool, i, len(e), hex.EncodedLen(EntrySize))
		}
		if _, err := hex.Decode(dst, []byte(e)); err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrInvalidKeyPool, i, err)
		}
		return nil
	}, opts)
}

// NewPoolFromBytes creates a Pool from raw 32-byte entries.
// Entries are copied; the caller may wipe the originals after construction.
func NewPoolFromBytes(entries [][]byte, opts ...PoolOption) (*Pool, error) {
	return newPool(len(entries), func(dst []byte, i int) error {
		if len(entries[i]) != EntrySize {
			return fmt.Errorf("%w: entry %d has %d bytes, want %d", ErrInvalidKeyPool, i, len(entries[i]), EntrySize)
		}
		copy(dst, entries[i])
		return nil
	}, opts)
}

func newPool(n int, fill func(dst []byte, i int) error, opts []PoolOption) (*Pool, error) {
	if n < MinEntries || n > MaxEntries {
		return nil, fmt.Errorf("%w: got %d entries, want %d to %d", ErrInvalidKeyPool, n, MinEntries, MaxEntries)
	}

	o := poolOptions{random: rand.Reader}
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}

	buf := memguard.NewBuffer(n * EntrySize)
	b := buf.Bytes()
	for i := range n {
		if err := fill(b[i*EntrySize:(i+1)*EntrySize], i); err != nil {
			buf.Destroy()
			return nil, err
		}
	}
	buf.Freeze()

	return &Pool{entries: buf, size: n, random: o.random}, nil
}

// GenerateKeySet returns n random hex-encoded entries suitable for NewPool.
func GenerateKeySet(n int) ([]string, error) {
	if n < MinEntries || n > MaxEntries {
		return nil, fmt.Errorf("%w: got %d entries, want %d to %d", ErrInvalidKeyPool, n, MinEntries, MaxEntries)
	}

	entry := make([]byte, EntrySize)
	defer memguard.WipeBytes(entry)

	keys := make([]string, n)
	for i := range keys {
		if _, err := io.ReadFull(rand.Reader, entry); err != nil {
			return nil, fmt.Errorf("keypool: failed to generate entry: %w", err)
		}
		keys[i] = hex.EncodeToString(entry)
	}
	return keys, nil
}

// Size returns the number of entries in the pool.
func (p *Pool) Size() int {
	return p.size
}

// Destroy wipes and releases the entries. Any later call fails with ErrPoolDestroyed.
func (p *Pool) Destroy() {
	p.entries.Destroy()
}

func (p *Pool) entry(i int) ([]byte, error) {
	if !p.entries.IsAlive() {
		return nil, ErrPoolDestroyed
	}
	if i < 0 || i >= p.size {
		return nil, fmt.Errorf("%w: entry %d, pool has %d", ErrOutOfRange, i, p.size)
	}
	return p.entries.Bytes()[i*EntrySize : (i+1)*EntrySize], nil
}

// ExtractKeyMaterial derives KeyLength(algorithm) bytes from the windowSize
// bytes of entry entryIndex starting at offset. Windows shorter than the key
// length are stretched by iterated SHA-256: each round appends
// SHA-256(window || material so far) until the length is reached.
//
// The result is a fresh slice owned by the caller.
func (p *Pool) ExtractKeyMaterial(entryIndex, offset, windowSize int, algorithm string) ([]byte, error) {
	e, err := p.entry(entryIndex)
	if err != nil {
		return nil, err
	}
	if windowSize <= 0 || offset < 0 || offset+windowSize > EntrySize {
		return nil, fmt.Errorf("%w: window %d+%d exceeds %d-byte entry", ErrOutOfRange, offset, windowSize, EntrySize)
	}
	return stretch(e[offset:offset+windowSize], KeyLength(algorithm)), nil
}

func stretch(window []byte, length int) []byte {
	if len(window) >= length {
		return append([]byte(nil), window[:length]...)
	}

	out := make([]byte, 0, length+sha256.Size)
	h := sha256.New()
	for len(out) < length {
		h.Reset()
		h.Write(window)
		h.Write(out)
		out = h.Sum(out)
	}
	memguard.WipeBytes(out[length:])
	return out[:length:length]
}

// Material is the key and IV for one message plus the header that reproduces it.
type Material struct {
	Key    []byte
	IV     []byte
	Header Header
}

// Wipe zeroes the key and IV.
func (m *Material) Wipe() {
	memguard.WipeBytes(m.Key)
	memguard.WipeBytes(m.IV)
}

// DeriveKeyAndIV picks a random key entry, IV entry and window offsets and
// returns the derived master key, an ivLength-byte IV and the header that
// records the selection.
func (p *Pool) DeriveKeyAndIV(algorithm string, ivLength int) (*Material, error) {
	if ivLength < 0 || ivLength > EntrySize {
		return nil, fmt.Errorf("%w: IV length %d", ErrOutOfRange, ivLength)
	}
	if !p.entries.IsAlive() {
		return nil, ErrPoolDestroyed
	}

	var picks [HeaderSize]int
	for i, bound := range [HeaderSize]int{p.size - 1, p.size - 1, maxKeyOffset, maxIVOffset(ivLength)} {
		n, err := p.randomInt(bound)
		if err != nil {
			return nil, err
		}
		picks[i] = n
	}

	keyEntry, ivEntry, keyOffset, ivOffset := picks[0], picks[1], picks[2], picks[3]
	return p.material(algorithm, ivLength, newHeader(keyEntry, keyOffset, ivEntry, ivOffset))
}

// RestoreKeyAndIV recomputes the material DeriveKeyAndIV returned for header.
func (p *Pool) RestoreKeyAndIV(algorithm string, ivLength int, header []byte) (*Material, error) {
	if ivLength < 0 || ivLength > EntrySize {
		return nil, fmt.Errorf("%w: IV length %d", ErrOutOfRange, ivLength)
	}
	h, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	if h.KeyEntry() >= p.size || h.IVEntry() >= p.size {
		return nil, fmt.Errorf("%w: entry out of range for pool of %d", ErrMalformedHeader, p.size)
	}
	if h.KeyOffset() > maxKeyOffset || h.IVOffset() > maxIVOffset(ivLength) {
		return nil, fmt.Errorf("%w: offset out of range", ErrMalformedHeader)
	}
	return p.material(algorithm, ivLength, h)
}

func (p *Pool) material(algorithm string, ivLength int, h Header) (*Material, error) {
	key, err := p.ExtractKeyMaterial(h.KeyEntry(), h.KeyOffset(), WindowSize, algorithm)
	if err != nil {
		return nil, err
	}

	// IV material always uses the unspecified-algorithm length (32 bytes).
	ivMaterial, err := p.ExtractKeyMaterial(h.IVEntry(), h.IVOffset(), WindowSize, "")
	if err != nil {
		memguard.WipeBytes(key)
		return nil, err
	}
	iv := append([]byte(nil), ivMaterial[:ivLength]...)
	memguard.WipeBytes(ivMaterial)

	return &Material{Key: key, IV: iv, Header: h}, nil
}

// randomInt returns a uniform integer in [0, bound] for bound <= 255, rejecting
// bytes above the largest multiple of bound+1 to avoid modulo bias.
func (p *Pool) randomInt(bound int) (int, error) {
	n := bound + 1
	limit := 256 - 256%n
	var b [1]byte
	for {
		if _, err := io.ReadFull(p.random, b[:]); err != nil {
			return 0, fmt.Errorf("keypool: random source: %w", err)
		}
		if int(b[0]) < limit {
			return int(b[0]) % n, nil
		}
	}
}
