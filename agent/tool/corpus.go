package tool

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrDocumentNotFound = errors.New("document not found")

//go:embed data/documents.yaml
var seedCorpus []byte

// amountFields is the metadata priority order for a document's headline amount.
var amountFields = []string{"total", "amount", "value", "total_amount", "total_value"}

type Document struct {
	ID       string         `yaml:"id" json:"id"`
	Title    string         `yaml:"title" json:"title"`
	Type     string         `yaml:"type" json:"type"`
	Content  string         `yaml:"content" json:"content"`
	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Amount returns the first numeric amount found in metadata.
func (d Document) Amount() (float64, bool) {
	for _, field := range amountFields {
		raw, ok := d.Metadata[field]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Render is the text handed to agents as the lookup result.
func (d Document) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document %s: %s (%s)\n", d.ID, d.Title, d.Type)
	if amount, ok := d.Amount(); ok {
		fmt.Fprintf(&b, "Amount: $%s\n", formatAmount(amount))
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(d.Content))
	return b.String()
}

type corpusFile struct {
	Documents []Document `yaml:"documents"`
}

// Corpus is an immutable in-memory document set.
type Corpus struct {
	docs  []Document
	index map[string]int
}

// LoadCorpus reads a YAML corpus from path, or the embedded seed corpus when path is empty.
func LoadCorpus(path string) (*Corpus, error) {
	raw := seedCorpus
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read corpus: %w", err)
		}
		raw = data
	}

	var file corpusFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	return NewCorpus(file.Documents...)
}

func NewCorpus(docs ...Document) (*Corpus, error) {
	c := &Corpus{index: make(map[string]int, len(docs))}
	for _, doc := range docs {
		id := strings.TrimSpace(doc.ID)
		if id == "" {
			return nil, errors.New("corpus document has empty id")
		}
		key := strings.ToLower(id)
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("duplicate corpus document id %q", id)
		}
		doc.ID = id
		c.index[key] = len(c.docs)
		c.docs = append(c.docs, doc)
	}
	return c, nil
}

func (c *Corpus) Len() int {
	return len(c.docs)
}

func (c *Corpus) All() []Document {
	return append([]Document(nil), c.docs...)
}

// Get matches an id case-insensitively.
func (c *Corpus) Get(id string) (Document, bool) {
	i, ok := c.index[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Document{}, false
	}
	return c.docs[i], true
}

func (c *Corpus) Known(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Find resolves an exact id first, then the best keyword match.
func (c *Corpus) Find(idOrQuery string) (Document, error) {
	query := strings.TrimSpace(idOrQuery)
	if query == "" {
		return Document{}, fmt.Errorf("%w: empty query", ErrDocumentNotFound)
	}
	if doc, ok := c.Get(query); ok {
		return doc, nil
	}
	hits := c.Search(query, 1)
	if len(hits) == 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, query)
	}
	return hits[0], nil
}

// Search ranks documents by keyword hits: title 2, metadata 1, content 0.5 per occurrence.
func (c *Corpus) Search(query string, limit int) []Document {
	keywords := strings.Fields(strings.ToLower(query))
	type scored struct {
		pos   int
		score float64
	}
	var hits []scored
	for i, doc := range c.docs {
		title := strings.ToLower(doc.Title)
		content := strings.ToLower(doc.Content)
		score := 0.0
		for _, kw := range keywords {
			kw = strings.Trim(kw, "?.,!;:\"'")
			if len(kw) < 3 {
				continue
			}
			if strings.Contains(title, kw) || strings.EqualFold(doc.ID, kw) {
				score += 2
			}
			score += float64(strings.Count(content, kw)) * 0.5
			for _, v := range doc.Metadata {
				if strings.Contains(strings.ToLower(fmt.Sprint(v)), kw) {
					score++
				}
			}
		}
		if score > 0 {
			hits = append(hits, scored{pos: i, score: score})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Document, 0, len(hits))
	for _, h := range hits {
		out = append(out, c.docs[h.pos])
	}
	return out
}

func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
