package canonical

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for digests. The version suffix allows a later algorithm
// change without colliding with stored digests.
const (
	DomainOperation = "possync/operation/v1"
	DomainTrace     = "possync/trace/v1"
)

// HashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash canonicalizes v and hashes it under domain.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return HashWithDomain(domain, data), nil
}
