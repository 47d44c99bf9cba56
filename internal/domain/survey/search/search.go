// Package search keeps an in-memory full-text index of delegate comments.
package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/analytics"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/normalizer"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// ErrEmptyQuery is returned for blank search text.
var ErrEmptyQuery = errors.New("search query is empty")

// Comment is one indexed delegate comment.
type Comment struct {
	ID      string  `json:"id"`
	Row     int     `json:"row"`
	Text    string  `json:"text"`
	Trainer string  `json:"trainer,omitempty"`
	Course  string  `json:"course,omitempty"`
	Quarter string  `json:"quarter,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
}

// Hit is a matching comment and its relevance.
type Hit struct {
	Comment
	Score float64 `json:"score"`
}

// Index is safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
	size  int
}

func buildIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = simple.Name

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	numeric := bleve.NewNumericFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("trainer", exact)
	doc.AddFieldMappingsAt("course", exact)
	doc.AddFieldMappingsAt("quarter", exact)
	doc.AddFieldMappingsAt("rating", numeric)
	doc.AddFieldMappingsAt("row", numeric)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = simple.Name
	return im
}

// Build indexes every non-blank comment of the engine's table. A table
// without a comments column yields an empty index.
func Build(e *analytics.Engine) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create comment index: %w", err)
	}
	return fill(idx, e)
}

// fill indexes the comments into idx, closing idx when indexing fails.
func fill(idx bleve.Index, e *analytics.Engine) (*Index, error) {
	out := &Index{index: idx}

	schema := e.Schema()
	if schema.Comments == "" {
		return out, nil
	}

	t := e.Table()
	batch := idx.NewBatch()
	for i := range t.Len() {
		text := strings.TrimSpace(t.Cell(i, schema.Comments).String())
		if text == "" {
			continue
		}
		c := Comment{
			ID:      "row_" + strconv.Itoa(i),
			Row:     i,
			Text:    text,
			Quarter: t.Cell(i, normalizer.QuarterColumn).String(),
		}
		if schema.Trainer != "" {
			c.Trainer = t.Cell(i, schema.Trainer).String()
		}
		if schema.Course != "" {
			c.Course = t.Cell(i, schema.Course).String()
		}
		if schema.Rating != "" {
			c.Rating, _ = t.Cell(i, schema.Rating).Float()
		}
		if err := batch.Index(c.ID, c); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to index comment %s: %w", c.ID, err)
		}
		out.size++
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to execute comment batch: %w", err)
	}
	return out, nil
}

// Len returns the number of indexed comments.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

// Search finds comments matching text, tolerating one typo per term. A
// non-empty trainer restricts hits to that exact trainer name.
func (ix *Index) Search(text, trainer string, limit int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	match := bleve.NewMatchQuery(text)
	match.SetField("text")
	match.SetFuzziness(1)

	var q query.Query = match
	if trainer != "" {
		term := bleve.NewTermQuery(trainer)
		term.SetField("trainer")
		q = bleve.NewConjunctionQuery(match, term)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.index == nil {
		return nil, errors.New("comment index is closed")
	}
	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("comment search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		c := Comment{ID: h.ID}
		if v, ok := h.Fields["text"].(string); ok {
			c.Text = v
		}
		if v, ok := h.Fields["trainer"].(string); ok {
			c.Trainer = v
		}
		if v, ok := h.Fields["course"].(string); ok {
			c.Course = v
		}
		if v, ok := h.Fields["quarter"].(string); ok {
			c.Quarter = v
		}
		if v, ok := h.Fields["rating"].(float64); ok {
			c.Rating = v
		}
		if v, ok := h.Fields["row"].(float64); ok {
			c.Row = int(v)
		}
		hits = append(hits, Hit{Comment: c, Score: h.Score})
	}
	return hits, nil
}

// Close releases the index. Further searches fail.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.index == nil {
		return nil
	}
	err := ix.index.Close()
	ix.index = nil
	return err
}
