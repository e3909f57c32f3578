package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"
)

// chunkIDLength is the number of hex characters kept from the digest.
const chunkIDLength = 32

// ChunkID derives the identifier of a chunk from its document, position
// and text. Identical input always yields the same identifier, so
// re-ingesting unchanged content overwrites entries instead of adding new ones.
func ChunkID(documentID string, seq int, text string) string {
	h := sha256.New()
	h.Write([]byte(documentID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(seq)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:chunkIDLength]
}

// DocumentIDFromPath derives a document identifier from a file path
// relative to the ingestion root: slash separated, without extension.
// Files outside root fall back to their base name.
func DocumentIDFromPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}
