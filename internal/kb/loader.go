// internal/kb/loader.go
package kb

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	errs "rag-pipelines/internal/common/errors"
)

// entrySchema validates each corpus record before it is admitted. Extra
// fields are rejected so a malformed corpus fails loudly at load time
// rather than surfacing as odd retrieval results later.
const entrySchema = `{
	"type": "object",
	"required": ["doc_id", "question", "answer_snippet", "source", "confidence_indicator", "last_updated"],
	"additionalProperties": false,
	"properties": {
		"doc_id":               {"type": "string", "minLength": 1},
		"question":             {"type": "string", "minLength": 1},
		"answer_snippet":       {"type": "string", "minLength": 1},
		"source":               {"type": "string"},
		"confidence_indicator": {"type": "string", "enum": ["high", "medium", "low"]},
		"last_updated":         {"type": "string"}
	}
}`

// Corpus is an immutable, validated knowledge base loaded from disk.
// Entries are held in doc_id order so repeated loads of the same file
// produce identical corpora.
type Corpus struct {
	Entries []Entry
	byID    map[string]Entry
}

// Load reads and validates the corpus file at path.
func Load(path string) (*Corpus, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NewNotFoundError("knowledge base file", path)
		}
		return nil, errs.NewServiceError("kb", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errs.NewParseError("knowledge base file", err.Error())
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(entrySchema))
	if err != nil {
		return nil, errs.NewServiceError("kb", err)
	}

	entries := make([]Entry, 0, len(records))
	for i, rec := range records {
		result, err := schema.Validate(gojsonschema.NewBytesLoader(rec))
		if err != nil {
			return nil, errs.NewParseError("knowledge base entry", err.Error())
		}
		if !result.Valid() {
			var problems []string
			for _, desc := range result.Errors() {
				problems = append(problems, desc.String())
			}
			return nil, errs.NewValidationError(
				fmt.Sprintf("knowledge base entry %d failed validation", i),
				strings.Join(problems, "; "),
			)
		}

		var entry Entry
		if err := json.Unmarshal(rec, &entry); err != nil {
			return nil, errs.NewParseError("knowledge base entry", err.Error())
		}
		entries = append(entries, entry)
	}

	return NewCorpus(entries)
}

// NewCorpus builds a corpus from already-decoded entries. Duplicate doc
// IDs are rejected.
func NewCorpus(entries []Entry) (*Corpus, error) {
	corpus := &Corpus{
		Entries: make([]Entry, 0, len(entries)),
		byID:    make(map[string]Entry, len(entries)),
	}

	for _, entry := range entries {
		if _, exists := corpus.byID[entry.DocID]; exists {
			return nil, errs.NewValidationError(
				"duplicate doc_id in knowledge base",
				entry.DocID,
			)
		}
		corpus.Entries = append(corpus.Entries, entry)
		corpus.byID[entry.DocID] = entry
	}

	sort.Slice(corpus.Entries, func(i, j int) bool {
		return corpus.Entries[i].DocID < corpus.Entries[j].DocID
	})

	return corpus, nil
}

// Get returns the entry for docID, if present.
func (c *Corpus) Get(docID string) (Entry, bool) {
	e, ok := c.byID[docID]
	return e, ok
}

// Contains reports whether docID is part of the corpus.
func (c *Corpus) Contains(docID string) bool {
	_, ok := c.byID[docID]
	return ok
}

// Len returns the number of entries.
func (c *Corpus) Len() int {
	return len(c.Entries)
}
