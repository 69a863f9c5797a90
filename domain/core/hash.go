package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, for logs and file names
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Domain-specific hash types
type (
	GridHash      Hash
	ConstantsHash Hash
)

func (h GridHash) String() string      { return Hash(h).String() }
func (h ConstantsHash) String() string { return Hash(h).String() }

// ComputeGridHash hashes the ordered list of sample sizes and the iteration count
func ComputeGridHash(sampleSizes []int, iterations int) GridHash {
	var data strings.Builder
	for _, n := range sampleSizes {
		data.WriteString(fmt.Sprintf("%d,", n))
	}
	data.WriteString(fmt.Sprintf("|iterations:%d", iterations))
	return GridHash(NewHash([]byte(data.String())))
}

// ComputeConstantsHash hashes a flat parameter map with sorted keys
func ComputeConstantsHash(params map[string]float64) ConstantsHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fmt.Sprintf("%v", params[key]))
		data.WriteString(";")
	}

	return ConstantsHash(NewHash([]byte(data.String())))
}
