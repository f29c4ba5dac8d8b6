package corpus

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// DocumentRef identifies a selectable code document. Values are never mutated
// after the corpus is loaded.
type DocumentRef struct {
	ID           string `json:"id" yaml:"id"`
	DisplayLabel string `json:"display_label" yaml:"label"`
	SourceURL    string `json:"source_url" yaml:"url"`
}

// Entry is a DocumentRef plus an optional hand-maintained clause -> page table.
type Entry struct {
	DocumentRef `yaml:",inline"`
	Clauses     map[string]int `yaml:"clauses,omitempty"`
}

type file struct {
	Documents []Entry `yaml:"documents"`
}

var ErrDocumentNotFound = errors.New("document not found")

// Catalog is the externally supplied set of documents. It is read-only after
// construction.
type Catalog struct {
	entries map[string]Entry
	order   []string
}

func NewCatalog(entries ...Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if err := validate(e); err != nil {
			return nil, err
		}
		if _, dup := c.entries[e.ID]; dup {
			return nil, fmt.Errorf("duplicate document id %q", e.ID)
		}
		c.entries[e.ID] = e
		c.order = append(c.order, e.ID)
	}
	return c, nil
}

// LoadFile reads a YAML corpus listing. A missing file yields an empty catalog.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCatalog()
		}
		return nil, fmt.Errorf("read corpus file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse corpus file: %w", err)
	}
	return NewCatalog(f.Documents...)
}

func validate(e Entry) error {
	if e.ID == "" {
		return errors.New("document id is required")
	}
	u, err := url.Parse(e.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("document %q: source url must be absolute http(s)", e.ID)
	}
	for clause, page := range e.Clauses {
		if page < 1 {
			return fmt.Errorf("document %q: clause %s maps to invalid page %d", e.ID, clause, page)
		}
	}
	return nil
}

func (c *Catalog) Get(id string) (Entry, error) {
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return e, nil
}

// List returns documents in file order.
func (c *Catalog) List() []DocumentRef {
	refs := make([]DocumentRef, 0, len(c.order))
	for _, id := range c.order {
		refs = append(refs, c.entries[id].DocumentRef)
	}
	return refs
}
