package keypool

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"
)

// KeySet is the YAML form of a pool:
//
//	keys:
//	  - 51f7664d55c6c00640a78be71ceab0e5234e59c5f8007613584f27f28c2af2e6
//	  - daaec6ba804b3539e75733470453804031e37cb8d52a9d284c8bcf225c3d455b
type KeySet struct {
	Keys []string `yaml:"keys"`
}

// LoadKeySet reads a YAML key set from r and builds a Pool from it.
func LoadKeySet(r io.Reader, opts ...PoolOption) (*Pool, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("keypool: failed to read key set: %w", err)
	}

	var ks KeySet
	if err := yaml.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyPool, err)
	}
	return NewPool(ks.Keys, opts...)
}

// ReadKeySetFile is LoadKeySet for a file path.
func ReadKeySetFile(path string, opts ...PoolOption) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("keypool: failed to open key set: %w", err)
	}
	defer f.Close()

	return LoadKeySet(f, opts...)
}

// WriteKeySet writes keys to w in the YAML form LoadKeySet reads.
func WriteKeySet(w io.Writer, keys []string) error {
	data, err := yaml.Marshal(KeySet{Keys: keys})
	if err != nil {
		return fmt.Errorf("keypool: failed to encode key set: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("keypool: failed to write key set: %w", err)
	}
	return nil
}
