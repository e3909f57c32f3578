// Package chunker splits document text into overlapping passages.
//
// Sizes are counted in runes (Unicode code points). A chunk ends at the
// best boundary found near its size limit: a blank line first, then a
// line break or sentence end, then any whitespace, and only then a hard
// cut. Consecutive chunks share exactly `overlap` runes, so the original
// text is the first chunk followed by every later chunk minus its first
// `overlap` runes.
package chunker

import (
	"context"
	"fmt"
	"unicode"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// toleranceDivisor sets the default boundary search window to size/5.
const toleranceDivisor = 5

// Processor splits document content into chunks with deterministic ids.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
	tolerance int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithTolerance sets how many runes before the size limit are searched
// for a boundary.
func WithTolerance(runes int) Option {
	return func(p *Processor) {
		p.tolerance = runes
	}
}

// New creates a chunker processor. An overlap that is negative or not
// smaller than the chunk size fails with domain.ErrInvalidArgument.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		tolerance: -1,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := validate(p.chunkSize, p.overlap); err != nil {
		return nil, err
	}
	if p.tolerance < 0 {
		p.tolerance = p.chunkSize / toleranceDivisor
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured size in runes.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap in runes.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
// Every chunk carries a copy of the document metadata.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	texts := split(doc.Content, p.chunkSize, p.overlap, p.tolerance)
	if len(texts) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:         domain.ChunkID(doc.ID, i, text),
			DocumentID: doc.ID,
			Content:    text,
			Position:   i,
			Metadata:   doc.Metadata.Clone(),
		}
	}

	return chunks, nil
}

// Split divides text into chunks of at most maxSize runes where each
// chunk after the first starts with the last overlap runes of the
// previous one. Empty text yields no chunks.
func Split(text string, maxSize, overlap int) ([]string, error) {
	if err := validate(maxSize, overlap); err != nil {
		return nil, err
	}
	return split(text, maxSize, overlap, maxSize/toleranceDivisor), nil
}

func validate(maxSize, overlap int) error {
	if maxSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidArgument, maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", domain.ErrInvalidArgument, overlap, maxSize)
	}
	return nil
}

func split(text string, maxSize, overlap, tolerance int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	if n <= maxSize {
		return []string{text}
	}

	chunks := make([]string, 0, n/(maxSize-overlap)+1)
	start := 0
	for {
		if n-start <= maxSize {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		end := cutPoint(runes, start, maxSize, overlap, tolerance)
		chunks = append(chunks, string(runes[start:end]))
		start = end - overlap
	}
}

// boundary ranks a cut position; higher is preferred.
type boundary int

const (
	boundaryNone boundary = iota
	boundarySpace
	boundarySentence
	boundaryParagraph
)

// cutPoint returns the exclusive end of the chunk starting at start.
// Candidates lie in [hard-tolerance, hard] and must leave the chunk
// longer than overlap so the next chunk starts further on.
func cutPoint(runes []rune, start, maxSize, overlap, tolerance int) int {
	hard := start + maxSize
	lo := hard - tolerance
	if minEnd := start + overlap + 1; lo < minEnd {
		lo = minEnd
	}

	best, bestPos := boundaryNone, hard
	for pos := hard; pos >= lo; pos-- {
		b := classify(runes, pos)
		if b > best {
			best, bestPos = b, pos
			if b == boundaryParagraph {
				break
			}
		}
	}
	return bestPos
}

// classify ranks cutting right before runes[pos].
func classify(runes []rune, pos int) boundary {
	if pos < 2 || pos > len(runes) {
		return boundaryNone
	}
	last, prev := runes[pos-1], runes[pos-2]
	switch {
	case last == '\n' && prev == '\n':
		return boundaryParagraph
	case last == '\n':
		return boundarySentence
	case unicode.IsSpace(last) && isSentenceEnd(prev):
		return boundarySentence
	case unicode.IsSpace(last):
		return boundarySpace
	default:
		return boundaryNone
	}
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':', '…':
		return true
	default:
		return false
	}
}
