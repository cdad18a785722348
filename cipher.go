package keypool

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"github.com/rbaliyan/config-keypool/internal/symmetric"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Domain separation labels for the session keys.
const (
	labelEncryption     = "encryption"
	labelAuthentication = "authentication"
)

// BlockCipher is the symmetric primitive envelopes are sealed with.
// Implementations must be safe for concurrent use.
type BlockCipher interface {
	// Encrypt encrypts plaintext with the named algorithm; padding and mode are
	// the implementation's concern.
	Encrypt(plaintext []byte, algorithm string, key, iv []byte) ([]byte, error)

	// Decrypt reverses Encrypt.
	Decrypt(ciphertext []byte, algorithm string, key, iv []byte) ([]byte, error)

	// IVLength returns the IV length in bytes the algorithm requires.
	IVLength(algorithm string) (int, error)
}

// Option configures a Cipher.
type Option func(*options)

type options struct {
	primitive BlockCipher
	tracer    trace.TracerProvider
	meter     metric.MeterProvider
	logger    logrus.FieldLogger
}

// WithBlockCipher replaces the built-in primitive.
func WithBlockCipher(bc BlockCipher) Option {
	return func(o *options) {
		if bc != nil {
			o.primitive = bc
		}
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp
		}
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meter = mp
		}
	}
}

// WithLogger sets the logger rejected decryptions are reported to at debug
// level. Defaults to a logger that discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Cipher seals and opens envelopes with per-message keys drawn from a Pool.
//
// A Cipher is bound to one algorithm and one pool for its lifetime and holds
// no per-call state, so it is safe for concurrent use.
type Cipher struct {
	algorithm string
	pool      *Pool
	primitive BlockCipher
	keyLength int
	ivLength  int
	tel       *telemetry
	log       logrus.FieldLogger
}

// New creates a Cipher for the named algorithm (for example "aes-256-cbc").
// Returns ErrCipherFailure if the primitive does not support the algorithm.
func New(algorithm string, pool *Pool, opts ...Option) (*Cipher, error) {
	if pool == nil {
		return nil, fmt.Errorf("keypool: New pool is nil")
	}

	o := options{
		primitive: symmetric.Suite{},
		tracer:    otel.GetTracerProvider(),
		meter:     otel.GetMeterProvider(),
		logger:    discardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ivLength, err := o.primitive.IVLength(algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipherFailure, err)
	}
	if ivLength < 0 || ivLength > EntrySize {
		return nil, fmt.Errorf("%w: %s needs a %d-byte IV, at most %d supported", ErrCipherFailure, algorithm, ivLength, EntrySize)
	}

	tel, err := newTelemetry(o.tracer, o.meter, algorithm)
	if err != nil {
		return nil, err
	}

	return &Cipher{
		algorithm: algorithm,
		pool:      pool,
		primitive: o.primitive,
		keyLength: KeyLength(algorithm),
		ivLength:  ivLength,
		tel:       tel,
		log:       o.logger.WithField("algorithm", algorithm),
	}, nil
}

// Algorithm returns the algorithm identifier the cipher is bound to.
func (c *Cipher) Algorithm() string {
	return c.algorithm
}

// Pool returns the pool the cipher draws keys from.
func (c *Cipher) Pool() *Pool {
	return c.pool
}

// sessionKeys holds the keys split from one master key.
type sessionKeys struct {
	encryption     []byte
	authentication []byte
}

func (k *sessionKeys) wipe() {
	memguard.WipeBytes(k.encryption)
	memguard.WipeBytes(k.authentication)
}

// deriveSessionKeys splits a master key into an encryption key of the
// algorithm's key length and a 32-byte authentication key.
func (c *Cipher) deriveSessionKeys(master []byte) *sessionKeys {
	enc := labeledDigest(master, labelEncryption)
	auth := labeledDigest(master, labelAuthentication)

	k := &sessionKeys{
		encryption:     append([]byte(nil), enc[:min(c.keyLength, len(enc))]...),
		authentication: auth,
	}
	memguard.WipeBytes(enc)
	return k
}

// labeledDigest returns SHA-256(master || label).
func labeledDigest(master []byte, label string) []byte {
	h := sha256.New()
	h.Write(master)
	io.WriteString(h, label)
	return h.Sum(nil)
}

// mac returns HMAC-SHA256(key, payload), where payload is header || ciphertext.
func mac(key []byte, h Header, ciphertext []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(h[:])
	m.Write(ciphertext)
	return m.Sum(nil)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}
