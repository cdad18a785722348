// Package vault builds a keypool.Pool from entries encrypted with a HashiCorp
// Vault Transit key.
//
// Entries are decrypted through the Transit engine at construction time and
// copied into the pool's locked memory. The decrypted bytes are zeroed before
// New returns.
//
// Usage:
//
//	client := newTransitClient("https://vault.example.com:8200", "hvs.token123")
//	pool, err := vault.New(ctx, client, "config-pool", wrapped...)
package vault

import (
	"context"
	"fmt"
	"strings"

	keypool "github.com/rbaliyan/config-keypool"
)

// Client abstracts the Vault Transit decrypt operation.
// This allows injecting a mock for testing or wrapping any Vault client library.
type Client interface {
	// TransitDecrypt decrypts ciphertext using the named Transit key.
	// The ciphertext is in Vault's format (e.g., "vault:v1:base64data").
	// Returns the plaintext bytes.
	TransitDecrypt(ctx context.Context, keyName string, ciphertext string) ([]byte, error)
}

// New decrypts every ciphertext with the Transit key named transitKeyName and
// builds a Pool from the results, in order.
//
// At least two ciphertexts are required. The Vault client is not retained
// after construction.
func New(ctx context.Context, client Client, transitKeyName string, ciphertexts ...string) (*keypool.Pool, error) {
	return NewWithOptions(ctx, client, transitKeyName, ciphertexts)
}

// NewWithOptions is New with options for the resulting pool.
func NewWithOptions(ctx context.Context, client Client, transitKeyName string, ciphertexts []string, opts ...keypool.PoolOption) (*keypool.Pool, error) {
	if transitKeyName == "" {
		return nil, fmt.Errorf("vault: transit key name is required")
	}
	if len(ciphertexts) < keypool.MinEntries {
		return nil, fmt.Errorf("vault: at least %d encrypted entries are required, got %d", keypool.MinEntries, len(ciphertexts))
	}

	entries := make([][]byte, 0, len(ciphertexts))
	defer func() {
		for _, e := range entries {
			clear(e)
		}
	}()

	for i, ct := range ciphertexts {
		if !strings.HasPrefix(ct, "vault:") {
			return nil, fmt.Errorf("vault: entry %d is not a Transit ciphertext", i)
		}
		plaintext, err := client.TransitDecrypt(ctx, transitKeyName, ct)
		if err != nil {
			return nil, fmt.Errorf("vault: failed to decrypt entry %d: %w", i, err)
		}
		entries = append(entries, plaintext)
	}

	pool, err := keypool.NewPoolFromBytes(entries, opts...)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return pool, nil
}
