package index

import (
	"slices"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
)

// Span is the byte range [Start, End) of one occurrence in a document's text.
type Span struct {
	Start int `json:"s"`
	End   int `json:"e"`
}

// Entry is one document's share of a posting. It carries the exact document
// version its spans were computed from, so excerpts are always cut from the
// matching text even while that document is being re-indexed.
type Entry struct {
	DocID string
	Spans []Span
	doc   *document.Document
}

// Occurrences is the number of spans recorded for the document.
func (e Entry) Occurrences() int {
	return len(e.Spans)
}

// Document returns the document version the spans refer to.
func (e Entry) Document() document.Document {
	if e.doc == nil {
		return document.Document{ID: e.DocID}
	}
	return *e.doc
}

// SameVersion reports whether both entries were built from the same indexed
// version of a document.
func (e Entry) SameVersion(o Entry) bool {
	return e.doc == o.doc
}

func (e Entry) clone() Entry {
	e.Spans = slices.Clone(e.Spans)
	return e
}

// Posting is an immutable snapshot of the documents containing a term,
// ordered by document id. A published Posting is never modified; writers
// publish a new value instead.
type Posting struct {
	term    string
	entries []Entry
}

// Term returns the normalised term this posting belongs to.
func (p Posting) Term() string {
	return p.term
}

// Len returns the number of documents containing the term.
func (p Posting) Len() int {
	return len(p.entries)
}

// Entries returns a copy of the posting's entries.
func (p Posting) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.clone()
	}
	return out
}

// Entry returns a copy of the entry for docID.
func (p Posting) Entry(docID string) (Entry, bool) {
	i, ok := p.find(docID)
	if !ok {
		return Entry{}, false
	}
	return p.entries[i].clone(), true
}

// Contains reports whether docID has an entry in the posting.
func (p Posting) Contains(docID string) bool {
	_, ok := p.find(docID)
	return ok
}

// DocIDs returns the ids of all documents in the posting, ascending.
func (p Posting) DocIDs() []string {
	ids := make([]string, len(p.entries))
	for i, e := range p.entries {
		ids[i] = e.DocID
	}
	return ids
}

func (p Posting) find(docID string) (int, bool) {
	return sort.Find(len(p.entries), func(i int) int {
		return strings.Compare(docID, p.entries[i].DocID)
	})
}

// with returns a new posting in which docID's entry is replaced by spans, or
// removed when spans is empty. It returns nil if no entries remain.
func (p *Posting) with(term, docID string, doc *document.Document, spans []Span) *Posting {
	var current []Entry
	if p != nil {
		current = p.entries
	}
	next := make([]Entry, 0, len(current)+1)
	inserted := len(spans) == 0
	for _, e := range current {
		if e.DocID == docID {
			continue
		}
		if !inserted && docID < e.DocID {
			next = append(next, Entry{DocID: docID, Spans: spans, doc: doc})
			inserted = true
		}
		next = append(next, e)
	}
	if !inserted {
		next = append(next, Entry{DocID: docID, Spans: spans, doc: doc})
	}
	if len(next) == 0 {
		return nil
	}
	return &Posting{term: term, entries: next}
}

// TermEntry is the serialisable form of one term's posting.
type TermEntry struct {
	Term     string       `json:"term"`
	Postings []EntryState `json:"postings"`
}

// EntryState is the serialisable form of an Entry.
type EntryState struct {
	DocID string `json:"doc_id"`
	Spans []Span `json:"spans"`
}

// State is a complete, self-contained copy of a Store.
type State struct {
	Documents []document.Document `json:"documents"`
	Terms     []TermEntry         `json:"terms"`
}
