// Package awskms builds a keypool.Pool from entries wrapped with AWS KMS.
//
// Entries are unwrapped at construction time with KMS Decrypt and copied into
// the pool's locked memory. The unwrapped bytes are zeroed before New returns.
//
// Usage:
//
//	cfg, err := awsconfig.LoadDefaultConfig(ctx)
//	kmsClient := kms.NewFromConfig(cfg)
//
//	pool, err := awskms.New(ctx, kmsClient,
//	    awskms.WithEncryptedEntry(wrapped[0]),
//	    awskms.WithEncryptedEntry(wrapped[1]),
//	)
package awskms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	keypool "github.com/rbaliyan/config-keypool"
)

// Client is the subset of the AWS KMS API used by this package.
type Client interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Option configures New.
type Option func(*options)

type options struct {
	entries     []encryptedEntry
	poolOptions []keypool.PoolOption
}

type encryptedEntry struct {
	ciphertext []byte
	kmsKeyID   string // KMS key ARN or alias; empty = let KMS determine
}

// WithEncryptedEntry adds a pool entry to be unwrapped via KMS Decrypt.
// The ciphertext should be the output of KMS Encrypt or GenerateDataKey for a
// 32-byte plaintext. Entries keep the order they are added in.
func WithEncryptedEntry(ciphertext []byte) Option {
	return func(o *options) {
		o.entries = append(o.entries, encryptedEntry{ciphertext: ciphertext})
	}
}

// WithEncryptedEntryForKMSKey is like WithEncryptedEntry but names the KMS key
// ARN or alias to decrypt with.
func WithEncryptedEntryForKMSKey(ciphertext []byte, kmsKeyID string) Option {
	return func(o *options) {
		o.entries = append(o.entries, encryptedEntry{ciphertext: ciphertext, kmsKeyID: kmsKeyID})
	}
}

// WithPoolOptions passes options through to keypool.NewPoolFromBytes.
func WithPoolOptions(opts ...keypool.PoolOption) Option {
	return func(o *options) {
		o.poolOptions = append(o.poolOptions, opts...)
	}
}

// New unwraps every entry with KMS and builds a Pool from them.
//
// At least two entries are required. The KMS client is not retained after
// construction.
func New(ctx context.Context, client Client, opts ...Option) (*keypool.Pool, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(o.entries) < keypool.MinEntries {
		return nil, fmt.Errorf("awskms: at least %d encrypted entries are required, got %d", keypool.MinEntries, len(o.entries))
	}

	entries := make([][]byte, 0, len(o.entries))
	defer func() {
		for _, e := range entries {
			clear(e)
		}
	}()

	for i, ee := range o.entries {
		input := &kms.DecryptInput{
			CiphertextBlob: ee.ciphertext,
		}
		if ee.kmsKeyID != "" {
			input.KeyId = &ee.kmsKeyID
		}

		out, err := client.Decrypt(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("awskms: failed to decrypt entry %d: %w", i, err)
		}
		entries = append(entries, out.Plaintext)
	}

	pool, err := keypool.NewPoolFromBytes(entries, o.poolOptions...)
	if err != nil {
		return nil, fmt.Errorf("awskms: %w", err)
	}
	return pool, nil
}
