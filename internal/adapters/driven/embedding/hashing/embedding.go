// Package hashing provides a deterministic local embedder based on
// feature hashing. It needs no network, which makes it the offline
// default and a stable test double.
//
// Text is folded to lower-case ASCII where possible, split into word
// tokens, stripped of common Spanish and English stop words and lightly
// stemmed. Each token, each adjacent token pair and each character
// trigram is hashed into a signed bucket; the vector is L2-normalised so
// cosine similarity reduces to a dot product. Text made only of stop
// words or punctuation falls back to character trigrams of the folded
// text, so short headings such as "1." or "De la" still embed.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/sibila/internal/adapters/driven/embedding"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
)

// Ensure Embedder implements the interface.
var _ driven.EmbeddingService = (*Embedder)(nil)

// Default configuration values.
const (
	DefaultModel      = "hashing-v1"
	DefaultDimensions = 384
)

// Feature weights.
const (
	tokenWeight   = 1.0
	bigramWeight  = 0.5
	trigramWeight = 0.25
)

// Embedder hashes text features into a fixed-size vector.
type Embedder struct {
	dimensions int
	model      string
}

// New creates a hashing embedder. A non-positive dimension selects
// DefaultDimensions.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{
		dimensions: dimensions,
		model:      DefaultModel,
	}
}

// Embed returns the normalised feature vector of text. Only blank text
// is rejected.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc := make([]float64, e.dimensions)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		raw := strings.Join(strings.Fields(Fold(text)), " ")
		if raw == "" {
			return nil, fmt.Errorf("%w: blank text", domain.ErrEmbeddingRejected)
		}
		for _, tri := range charTrigrams(raw) {
			e.add(acc, "~"+tri, trigramWeight)
		}
	}
	for i, tok := range tokens {
		e.add(acc, tok, tokenWeight)
		if i > 0 {
			e.add(acc, tokens[i-1]+" "+tok, bigramWeight)
		}
		for _, tri := range trigrams(tok) {
			e.add(acc, "#"+tri, trigramWeight)
		}
	}

	var norm2 float64
	for _, v := range acc {
		norm2 += v * v
	}
	if norm2 == 0 {
		return nil, fmt.Errorf("%w: features cancelled out", domain.ErrEmbeddingRejected)
	}
	vec := make([]float32, e.dimensions)
	inv := 1 / math.Sqrt(norm2)
	for i, v := range acc {
		vec[i] = float32(v * inv)
	}
	return vec, nil
}

// EmbedBatch embeds each text; any rejection fails the whole batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := embedding.CheckInputs(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the model identifier.
func (e *Embedder) ModelName() string {
	return e.model
}

// Ping always succeeds.
func (e *Embedder) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (e *Embedder) Close() error {
	return nil
}

func (e *Embedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := sum % uint64(len(acc))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

// Tokenize folds, splits, filters and stems text into feature tokens.
func Tokenize(text string) []string {
	folded := Fold(text)
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		tokens = append(tokens, stem(w))
	}
	return tokens
}

// Fold lower-cases text and strips combining accents, so "Casación"
// and "casacion" produce the same tokens. The letter ñ is kept.
func Fold(text string) string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "ñ", "\x00n~")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ReplaceAll(folded, "\x00n~", "ñ")
}

// suffixes are stripped longest first while leaving a stem of at least
// minStem runes.
var suffixes = []string{
	"amientos", "imientos", "amiento", "imiento",
	"aciones", "uciones", "acion", "ucion",
	"idades", "idad", "mente",
	"ciones", "cion", "siones", "sion",
	"ables", "ibles", "able", "ible",
	"istas", "ista", "osos", "osas", "oso", "osa",
	"ings", "ing", "ies", "es", "s",
}

const minStem = 4

func stem(word string) string {
	n := len([]rune(word))
	if n <= minStem {
		return word
	}
	for _, suf := range suffixes {
		if strings.HasSuffix(word, suf) && n-len([]rune(suf)) >= minStem {
			return strings.TrimSuffix(word, suf)
		}
	}
	return word
}

func trigrams(tok string) []string {
	r := []rune(tok)
	if len(r) < 4 {
		return nil
	}
	out := make([]string, 0, len(r)-2)
	for i := 0; i+3 <= len(r); i++ {
		out = append(out, string(r[i:i+3]))
	}
	return out
}

// charTrigrams covers every rune of s, punctuation included. Strings
// shorter than three runes are a single feature.
func charTrigrams(s string) []string {
	r := []rune(s)
	if len(r) < 3 {
		return []string{s}
	}
	out := make([]string, 0, len(r)-2)
	for i := 0; i+3 <= len(r); i++ {
		out = append(out, string(r[i:i+3]))
	}
	return out
}

var stopWords = func() map[string]struct{} {
	words := strings.Fields(`
		a al ante bajo con contra de del desde durante e el ella ellas ellos en entre es esa ese eso esta
		este esto fue ha han hasta la las le les lo los mas me mi o para pero por que quien se segun
		ser si sin sobre su sus tambien un una uno unos unas y ya
		an and are as at be by for from has have in is it its of on or that the their this to was
		were which with`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
