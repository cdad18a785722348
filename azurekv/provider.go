// Package azurekv builds a keypool.Pool from entries wrapped with an Azure Key
// Vault key.
//
// Entries are unwrapped at construction time with UnwrapKey and copied into
// the pool's locked memory. The unwrapped bytes are zeroed before New returns.
//
// Usage:
//
//	cred, err := azidentity.NewDefaultAzureCredential(nil)
//	client, err := azkeys.NewClient("https://my-vault.vault.azure.net/", cred, nil)
//
//	pool, err := azurekv.New(ctx, client, "my-key-name", "key-version",
//	    azurekv.WithWrappedEntry(wrapped[0]),
//	    azurekv.WithWrappedEntry(wrapped[1]),
//	)
package azurekv

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	keypool "github.com/rbaliyan/config-keypool"
)

// Client is the subset of the Azure Key Vault API used by this package.
type Client interface {
	UnwrapKey(ctx context.Context, keyName string, keyVersion string, parameters azkeys.KeyOperationParameters, options *azkeys.UnwrapKeyOptions) (azkeys.UnwrapKeyResponse, error)
}

// Option configures New.
type Option func(*options)

type options struct {
	wrapped     [][]byte
	algorithm   azkeys.EncryptionAlgorithm
	poolOptions []keypool.PoolOption
}

// WithWrappedEntry adds an entry that was wrapped with the Key Vault key.
// Entries keep the order they are added in.
func WithWrappedEntry(ciphertext []byte) Option {
	return func(o *options) {
		o.wrapped = append(o.wrapped, ciphertext)
	}
}

// WithAlgorithm sets the unwrap algorithm. Defaults to RSA-OAEP-256.
func WithAlgorithm(alg azkeys.EncryptionAlgorithm) Option {
	return func(o *options) {
		o.algorithm = alg
	}
}

// WithPoolOptions passes options through to keypool.NewPoolFromBytes.
func WithPoolOptions(opts ...keypool.PoolOption) Option {
	return func(o *options) {
		o.poolOptions = append(o.poolOptions, opts...)
	}
}

// New unwraps every entry with the named Key Vault key and builds a Pool from
// them. An empty keyVersion selects the latest version.
//
// At least two entries are required. The Key Vault client is not retained
// after construction.
func New(ctx context.Context, client Client, keyName, keyVersion string, opts ...Option) (*keypool.Pool, error) {
	o := options{algorithm: azkeys.EncryptionAlgorithmRSAOAEP256}
	for _, opt := range opts {
		opt(&o)
	}

	if keyName == "" {
		return nil, fmt.Errorf("azurekv: key name is required")
	}
	if len(o.wrapped) < keypool.MinEntries {
		return nil, fmt.Errorf("azurekv: at least %d wrapped entries are required, got %d", keypool.MinEntries, len(o.wrapped))
	}

	entries := make([][]byte, 0, len(o.wrapped))
	defer func() {
		for _, e := range entries {
			clear(e)
		}
	}()

	for i, ct := range o.wrapped {
		resp, err := client.UnwrapKey(ctx, keyName, keyVersion, azkeys.KeyOperationParameters{
			Algorithm: &o.algorithm,
			Value:     ct,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("azurekv: failed to unwrap entry %d: %w", i, err)
		}
		entries = append(entries, resp.Result)
	}

	pool, err := keypool.NewPoolFromBytes(entries, o.poolOptions...)
	if err != nil {
		return nil, fmt.Errorf("azurekv: %w", err)
	}
	return pool, nil
}
