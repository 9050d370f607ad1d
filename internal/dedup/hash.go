package dedup

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds text to NFKC, lowercases it, and collapses whitespace.
func Normalize(text string) string {
	folded := strings.ToLower(norm.NFKC.String(text))
	return strings.Join(strings.Fields(folded), " ")
}

// ContentHash returns the hex MD5 digest of the normalized text.
func ContentHash(text string) string {
	sum := md5.Sum([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// NormalizePayload renders a fact payload as canonical JSON: keys sorted at
// every level and string values normalized. Equal payloads render equal.
func NormalizePayload(payload map[string]any) (string, error) {
	data, err := json.Marshal(normalizeValue(payload))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[strings.TrimSpace(key)] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = normalizeValue(inner)
		}
		return out
	case string:
		return Normalize(v)
	default:
		return v
	}
}

// EmbeddingHash returns the hex MD5 digest of the vector's little-endian
// float64 bytes. An empty vector has no hash.
func EmbeddingHash(vector []float64) string {
	if len(vector) == 0 {
		return ""
	}
	buf := make([]byte, 8*len(vector))
	for i, f := range vector {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	sum := md5.Sum(buf)
	return hex.EncodeToString(sum[:])
}
