// Package annotate stamps chunk metadata with its provenance.
package annotate

import (
	"context"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// Processor adds doc_id and chunk_index to every chunk's metadata.
type Processor struct{}

// New creates an annotate processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "annotate"
}

// Process sets doc_id and chunk_index on each chunk, overwriting any
// values inherited from the document.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = domain.Metadata{}
		}
		docID := chunks[i].DocumentID
		if docID == "" {
			docID = doc.ID
		}
		chunks[i].Metadata[domain.MetaDocID] = docID
		chunks[i].Metadata[domain.MetaChunkIndex] = int64(chunks[i].Position)
	}
	return chunks, nil
}
