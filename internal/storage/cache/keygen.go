package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"
)

const defaultKeyPrefix = "pk"

// KeyGenerator derives cache keys from parameter vectors. Keys are namespaced
// by the artifact fingerprint so that a reloaded model never reads spectra
// produced by a different one.
type KeyGenerator struct {
	prefix string
}

// NewKeyGenerator returns a generator whose keys look like
// "pk:<fingerprint>:<units>:<hash>".
func NewKeyGenerator(fingerprint string) *KeyGenerator {
	prefix := defaultKeyPrefix
	if fingerprint != "" {
		prefix = prefix + ":" + fingerprint
	}
	return &KeyGenerator{prefix: prefix}
}

// Prefix returns the namespace shared by every key this generator produces.
func (g *KeyGenerator) Prefix() string {
	return g.prefix
}

// Key hashes the exact bit pattern of params, so 0.1 and 0.1000000001 map
// to different entries. Negative zero is folded into positive zero.
func (g *KeyGenerator) Key(params []float64, units string) string {
	h := sha256.New()
	var buf [8]byte
	for _, p := range params {
		if p == 0 {
			p = 0
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p))
		h.Write(buf[:])
	}

	var b strings.Builder
	b.WriteString(g.prefix)
	b.WriteByte(':')
	if units != "" {
		b.WriteString(units)
		b.WriteByte(':')
	}
	b.WriteString(hex.EncodeToString(h.Sum(nil)))
	return b.String()
}
