package keypool

import "strings"

// defaultKeyLength applies to identifiers no rule recognizes. It matches no
// real cipher family and is kept only because existing envelopes depend on it.
const defaultKeyLength = 24

// keyLengthRule maps identifiers that satisfy match to a key length.
type keyLengthRule struct {
	match  func(id string) bool
	length int
}

// keyLengthRules is evaluated in order; the first match wins.
var keyLengthRules = []keyLengthRule{
	{length: 32, match: func(id string) bool { return id == "" }},
	{length: 16, match: func(id string) bool {
		return strings.Contains(id, "-128") || strings.Contains(id, "sm4") || containsTwoKeyEDE(id)
	}},
	{length: 24, match: func(id string) bool {
		return strings.Contains(id, "-192") || strings.Contains(id, "des-ede3")
	}},
	{length: 32, match: func(id string) bool { return strings.Contains(id, "-256") }},
}

// containsTwoKeyEDE reports whether id names two-key triple DES, i.e. contains
// "des-ede" somewhere not immediately followed by "3".
func containsTwoKeyEDE(id string) bool {
	const ede = "des-ede"
	for rest := id; ; {
		i := strings.Index(rest, ede)
		if i < 0 {
			return false
		}
		rest = rest[i+len(ede):]
		if !strings.HasPrefix(rest, "3") {
			return true
		}
	}
}

// KeyLength returns the key length in bytes used for the given algorithm identifier.
// Identifiers are compared case-insensitively. Unrecognized identifiers get 24 bytes.
//
// The mapping determines how much key material envelopes carry; changing it
// makes previously encrypted data undecryptable.
func KeyLength(algorithm string) int {
	id := strings.ToLower(strings.TrimSpace(algorithm))
	for _, r := range keyLengthRules {
		if r.match(id) {
			return r.length
		}
	}
	return defaultKeyLength
}
