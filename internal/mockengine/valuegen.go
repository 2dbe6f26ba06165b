package mockengine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// scalarValue produces a type-appropriate default for one of GraphQL's
// built-in scalars, or a string fallback for any custom scalar.
// The value is deterministic in seed so repeated requests along the same
// selection path return the same mock data (spec.md §4.4's built-in
// default resolvers, made stable rather than random).
func scalarValue(typeName, seed string) any {
	switch typeName {
	case "Int":
		return deterministicIndex(seed, 1000)
	case "Float":
		return float64(deterministicIndex(seed, 10000)) / 100.0
	case "Boolean":
		return deterministicIndex(seed, 2) == 1
	case "ID":
		return deterministicID(seed)
	default: // String and any custom scalar
		return "mock-" + lastSegment(seed)
	}
}

// deterministicIndex maps seed to [0, mod) by hashing it.
func deterministicIndex(seed string, mod int) int {
	if mod <= 0 {
		return 0
	}
	sum := sha256.Sum256([]byte(seed))
	n := binary.BigEndian.Uint32(sum[:4])
	return int(n % uint32(mod))
}

// deterministicID hashes seed into a short hex identifier, used both for
// ID-typed scalars and for a generated entity's @key fields.
func deterministicID(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:8])
}

func lastSegment(seed string) string {
	idx := strings.LastIndexAny(seed, ".[")
	if idx == -1 {
		return seed
	}
	return strings.Trim(seed[idx+1:], "[]")
}
