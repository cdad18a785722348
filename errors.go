package keypool

import "errors"

var (
	// ErrInvalidKeyPool is returned when a pool is built from the wrong number of
	// entries or from an entry that is not 32 bytes (64 hex characters).
	ErrInvalidKeyPool = errors.New("keypool: invalid key pool")

	// ErrOutOfRange is returned when an entry index or offset falls outside the pool.
	ErrOutOfRange = errors.New("keypool: index or offset out of range")

	// ErrMalformedHeader is returned when an envelope header is not 4 bytes or
	// references entries or offsets that derivation can never produce.
	ErrMalformedHeader = errors.New("keypool: malformed header")

	// ErrInvalidEncoding is returned when an envelope is not valid base64.
	ErrInvalidEncoding = errors.New("keypool: invalid base64 encoding")

	// ErrEnvelopeTooShort is returned when a decoded envelope is shorter than
	// the MAC plus the header.
	ErrEnvelopeTooShort = errors.New("keypool: encrypted text too short")

	// ErrAuthenticationFailed is returned when the envelope MAC does not verify.
	// Tampering with the MAC, the header or the ciphertext all yield this error.
	ErrAuthenticationFailed = errors.New("keypool: authentication failed")

	// ErrCipherFailure is returned when the symmetric primitive rejects an
	// algorithm, a key or an IV.
	ErrCipherFailure = errors.New("keypool: cipher failure")

	// ErrDecryptionFailed is returned when an authenticated envelope still
	// fails to decrypt.
	ErrDecryptionFailed = errors.New("keypool: decryption failed")

	// ErrPoolDestroyed is returned when a pool is used after Destroy.
	ErrPoolDestroyed = errors.New("keypool: pool destroyed")
)

// IsInvalidKeyPool returns true if the error is or wraps ErrInvalidKeyPool.
func IsInvalidKeyPool(err error) bool {
	return errors.Is(err, ErrInvalidKeyPool)
}

// IsOutOfRange returns true if the error is or wraps ErrOutOfRange.
func IsOutOfRange(err error) bool {
	return errors.Is(err, ErrOutOfRange)
}

// IsMalformedHeader returns true if the error is or wraps ErrMalformedHeader.
func IsMalformedHeader(err error) bool {
	return errors.Is(err, ErrMalformedHeader)
}

// IsInvalidEncoding returns true if the error is or wraps ErrInvalidEncoding.
func IsInvalidEncoding(err error) bool {
	return errors.Is(err, ErrInvalidEncoding)
}

// IsEnvelopeTooShort returns true if the error is or wraps ErrEnvelopeTooShort.
func IsEnvelopeTooShort(err error) bool {
	return errors.Is(err, ErrEnvelopeTooShort)
}

// IsAuthenticationFailed returns true if the error is or wraps ErrAuthenticationFailed.
func IsAuthenticationFailed(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}

// IsCipherFailure returns true if the error is or wraps ErrCipherFailure.
func IsCipherFailure(err error) bool {
	return errors.Is(err, ErrCipherFailure)
}

// IsDecryptionFailed returns true if the error is or wraps ErrDecryptionFailed.
func IsDecryptionFailed(err error) bool {
	return errors.Is(err, ErrDecryptionFailed)
}

// IsPoolDestroyed returns true if the error is or wraps ErrPoolDestroyed.
func IsPoolDestroyed(err error) bool {
	return errors.Is(err, ErrPoolDestroyed)
}
