// Package gcpkms builds a keypool.Pool from entries encrypted with a Google
// Cloud KMS CryptoKey.
//
// Entries are decrypted at construction time with the CryptoKeys.Decrypt RPC
// and copied into the pool's locked memory. The decrypted bytes are zeroed
// before New returns.
//
// Usage:
//
//	client, err := kms.NewKeyManagementClient(ctx)
//	pool, err := gcpkms.New(ctx, client,
//	    "projects/p/locations/global/keyRings/r/cryptoKeys/pool",
//	    gcpkms.WithEncryptedEntry(ciphertext[0]),
//	    gcpkms.WithEncryptedEntry(ciphertext[1]),
//	)
package gcpkms

import (
	"context"
	"fmt"

	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	keypool "github.com/rbaliyan/config-keypool"
)

// Client is the subset of the GCP Cloud KMS API used by this package.
type Client interface {
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error)
}

// Option configures New.
type Option func(*options)

type options struct {
	ciphertexts [][]byte
	aad         []byte
	poolOptions []keypool.PoolOption
}

// WithEncryptedEntry adds an entry encrypted with the CryptoKey. Entries keep
// the order they are added in.
func WithEncryptedEntry(ciphertext []byte) Option {
	return func(o *options) {
		o.ciphertexts = append(o.ciphertexts, ciphertext)
	}
}

// WithAdditionalAuthenticatedData sets the AAD every entry was encrypted with.
func WithAdditionalAuthenticatedData(aad []byte) Option {
	return func(o *options) {
		o.aad = aad
	}
}

// WithPoolOptions passes options through to keypool.NewPoolFromBytes.
func WithPoolOptions(opts ...keypool.PoolOption) Option {
	return func(o *options) {
		o.poolOptions = append(o.poolOptions, opts...)
	}
}

// New decrypts every entry with the CryptoKey named by resourceName
// (projects/*/locations/*/keyRings/*/cryptoKeys/*) and builds a Pool from them.
//
// At least two entries are required. The KMS client is not retained after
// construction.
func New(ctx context.Context, client Client, resourceName string, opts ...Option) (*keypool.Pool, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if resourceName == "" {
		return nil, fmt.Errorf("gcpkms: resource name is required")
	}
	if len(o.ciphertexts) < keypool.MinEntries {
		return nil, fmt.Errorf("gcpkms: at least %d encrypted entries are required, got %d", keypool.MinEntries, len(o.ciphertexts))
	}

	entries := make([][]byte, 0, len(o.ciphertexts))
	defer func() {
		for _, e := range entries {
			clear(e)
		}
	}()

	for i, ct := range o.ciphertexts {
		resp, err := client.Decrypt(ctx, &kmspb.DecryptRequest{
			Name:                        resourceName,
			Ciphertext:                  ct,
			AdditionalAuthenticatedData: o.aad,
		})
		if err != nil {
			return nil, fmt.Errorf("gcpkms: failed to decrypt entry %d: %w", i, err)
		}
		entries = append(entries, resp.Plaintext)
	}

	pool, err := keypool.NewPoolFromBytes(entries, o.poolOptions...)
	if err != nil {
		return nil, fmt.Errorf("gcpkms: %w", err)
	}
	return pool, nil
}
