package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// NormalizeQuery canonicalizes query text so that trivially different phrasings
// of the same question share a cache entry. It lowercases, collapses runs of
// whitespace to a single space, and strips trailing punctuation.
func NormalizeQuery(query string) string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	fields := strings.Fields(lowered)
	joined := strings.Join(fields, " ")
	return strings.TrimRight(joined, "?!. ")
}

// Fingerprint derives the cache key for a query. Filters are folded in sorted
// by name so that map iteration order never changes the key.
func Fingerprint(userID, query string, filters map[string]string) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeQuery(query)))

	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{'='})
		h.Write([]byte(filters[name]))
	}

	return hex.EncodeToString(h.Sum(nil))
}
