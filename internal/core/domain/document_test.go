package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestDocument_Fields tests Document structure fields
func TestDocument_Fields(t *testing.T) {
	now := time.Now()

	doc := Document{
		ID:        "civil/sts-123",
		URI:       "/data/civil/sts-123.pdf",
		Title:     "sts-123.pdf",
		Content:   "El tribunal estima el recurso.",
		Metadata:  Metadata{"tribunal": "TS"},
		ChunkIDs:  []string{"a", "b"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	assert.Equal(t, "civil/sts-123", doc.ID)
	assert.Equal(t, "TS", doc.Metadata.String("tribunal"))
	assert.Len(t, doc.ChunkIDs, 2)
	assert.Equal(t, now, doc.UpdatedAt)
}

func TestSourceFile_DocumentID(t *testing.T) {
	f := SourceFile{Root: "/data", Path: "/data/penal/auto-7.txt", Extension: ".txt"}
	assert.Equal(t, "penal/auto-7", f.DocumentID())
}

func TestChangeType_String(t *testing.T) {
	assert.Equal(t, "created", ChangeCreated.String())
	assert.Equal(t, "updated", ChangeUpdated.String())
	assert.Equal(t, "deleted", ChangeDeleted.String())
	assert.Equal(t, "unknown", ChangeType(9).String())
}
