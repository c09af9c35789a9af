// Package version computes the content hash that identifies a data version.
//
// Two pipeline definitions that would produce the same data must hash to the
// same value, so the hash is computed over a canonical form of the raw
// definition document: scheduling metadata (`triggers`) is stripped, the map
// is serialized to JSON (which sorts object keys), and the sha256 digest is
// truncated to 8 hex characters. The same value names the snapshot directory
// and is reported to the user as the current version.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/LOLA0786/Devlake/internal/config"
)

// HashLen is the length, in hex characters, of a data version identifier.
const HashLen = 8

// Hash returns the 8-hex-character data version identifier for a definition.
func Hash(def *config.Definition) (string, error) {
	return hashDocument(def.Document())
}

func hashDocument(doc map[string]any) (string, error) {
	canonical := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "triggers" {
			continue
		}
		canonical[k] = v
	}

	// encoding/json serializes map keys in sorted order, which makes the
	// digest insensitive to key ordering in the source document.
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("canonicalize definition: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:HashLen], nil
}
