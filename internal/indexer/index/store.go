// Package index holds the in-memory inverted index: term postings plus the
// metadata of every live document.
//
// Readers never take a lock. Each term's posting is an immutable value
// published through an atomic pointer; a writer copies the current value,
// edits the copy and swaps it in, so readers observe either the old or the
// new posting for a term, never a partial one. Writers are serialised per
// document id through striped locks and contend with each other only on the
// per-term slot they are swapping.
package index

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/errors"
)

const lockStripes = 64

type termSlot struct {
	mu      sync.Mutex
	dead    bool
	posting atomic.Pointer[Posting]
}

type docRecord struct {
	doc   *document.Document
	terms []string
}

// Store is the single owner of postings and document metadata.
type Store struct {
	terms      sync.Map // string -> *termSlot
	docs       sync.Map // string -> *docRecord
	locks      [lockStripes]sync.Mutex
	docCount   atomic.Int64
	termCount  atomic.Int64
	generation atomic.Uint64
	instance   string
	closed     atomic.Bool
	logger     *slog.Logger
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		instance: uuid.NewString(),
		logger:   slog.Default().With("component", "index-store"),
	}
}

// Replace publishes doc with the given term spans, first purging every
// posting left by a previous version of the same document id. Spans for each
// term must be non-empty and ascending.
func (s *Store) Replace(doc document.Document, postings map[string][]Span) error {
	if s.closed.Load() {
		return apperrors.ErrClosed
	}
	lock := s.lockFor(doc.ID)
	lock.Lock()
	defer lock.Unlock()
	if s.closed.Load() {
		return apperrors.ErrClosed
	}

	docPtr := &doc
	newTerms := slices.Sorted(maps.Keys(postings))
	touched := newTerms
	prev, hadPrev := s.loadDoc(doc.ID)
	if hadPrev {
		touched = mergeSorted(prev.terms, newTerms)
	}

	s.docs.Store(doc.ID, &docRecord{doc: docPtr, terms: newTerms})
	for _, term := range touched {
		s.swapTerm(term, doc.ID, docPtr, postings[term])
	}
	if !hadPrev {
		s.docCount.Add(1)
	}
	s.generation.Add(1)
	return nil
}

// Delete purges docID from every posting and drops its metadata. Terms left
// without documents are removed. It reports whether the document existed.
func (s *Store) Delete(docID string) (bool, error) {
	if s.closed.Load() {
		return false, apperrors.ErrClosed
	}
	lock := s.lockFor(docID)
	lock.Lock()
	defer lock.Unlock()
	if s.closed.Load() {
		return false, apperrors.ErrClosed
	}

	rec, ok := s.loadDoc(docID)
	if !ok {
		return false, nil
	}
	for _, term := range rec.terms {
		s.swapTerm(term, docID, nil, nil)
	}
	s.docs.Delete(docID)
	s.docCount.Add(-1)
	s.generation.Add(1)
	return true, nil
}

// swapTerm publishes a new posting for term with docID's entry replaced by
// spans (or removed when spans is empty), pruning the term when it empties.
func (s *Store) swapTerm(term, docID string, doc *document.Document, spans []Span) {
	for {
		v, ok := s.terms.Load(term)
		if !ok {
			if len(spans) == 0 {
				return
			}
			v, _ = s.terms.LoadOrStore(term, &termSlot{})
		}
		slot := v.(*termSlot)
		slot.mu.Lock()
		if slot.dead {
			slot.mu.Unlock()
			continue
		}
		cur := slot.posting.Load()
		next := cur.with(term, docID, doc, spans)
		switch {
		case next == nil:
			slot.dead = true
			slot.posting.Store(nil)
			s.terms.CompareAndDelete(term, slot)
			if cur != nil {
				s.termCount.Add(-1)
			}
		default:
			slot.posting.Store(next)
			if cur == nil {
				s.termCount.Add(1)
			}
		}
		slot.mu.Unlock()
		return
	}
}

// PostingsFor returns the current posting snapshot for a normalised term.
func (s *Store) PostingsFor(term string) (Posting, bool) {
	v, ok := s.terms.Load(term)
	if !ok {
		return Posting{}, false
	}
	p := v.(*termSlot).posting.Load()
	if p == nil {
		return Posting{}, false
	}
	return *p, true
}

// DocumentByID returns the live version of a document.
func (s *Store) DocumentByID(id string) (document.Document, bool) {
	rec, ok := s.loadDoc(id)
	if !ok {
		return document.Document{}, false
	}
	return *rec.doc, true
}

// DocumentIDs returns the ids of all live documents, ascending.
func (s *Store) DocumentIDs() []string {
	ids := make([]string, 0, s.docCount.Load())
	s.docs.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	slices.Sort(ids)
	return ids
}

// Terms returns every indexed term, ascending.
func (s *Store) Terms() []string {
	terms := make([]string, 0, s.termCount.Load())
	s.terms.Range(func(k, v any) bool {
		if v.(*termSlot).posting.Load() != nil {
			terms = append(terms, k.(string))
		}
		return true
	})
	slices.Sort(terms)
	return terms
}

func (s *Store) DocCount() int {
	return int(s.docCount.Load())
}

func (s *Store) TermCount() int {
	return int(s.termCount.Load())
}

// Generation increments on every successful mutation.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Version identifies the current contents of this store. It combines an id
// drawn when the store is created with the generation, so two stores (or one
// process before and after a restart) never report the same version for
// different contents. Result caches key on it.
func (s *Store) Version() string {
	return fmt.Sprintf("%s.%d", s.instance, s.generation.Load())
}

// Snapshot copies the store into a serialisable State. It is consistent per
// term; callers wanting a point-in-time copy must pause writers.
func (s *Store) Snapshot() State {
	state := State{}
	for _, id := range s.DocumentIDs() {
		if doc, ok := s.DocumentByID(id); ok {
			state.Documents = append(state.Documents, doc)
		}
	}
	for _, term := range s.Terms() {
		p, ok := s.PostingsFor(term)
		if !ok {
			continue
		}
		entry := TermEntry{Term: term, Postings: make([]EntryState, 0, p.Len())}
		for _, e := range p.entries {
			entry.Postings = append(entry.Postings, EntryState{DocID: e.DocID, Spans: slices.Clone(e.Spans)})
		}
		state.Terms = append(state.Terms, entry)
	}
	return state
}

// Restore fills an empty store from state without re-tokenising. Every
// posting must reference a document in state with in-bounds, ascending
// spans; otherwise a ConsistencyError is returned and the store stays empty.
func (s *Store) Restore(state State) error {
	if s.closed.Load() {
		return apperrors.ErrClosed
	}
	if s.DocCount() != 0 || s.TermCount() != 0 {
		return fmt.Errorf("%w: restore requires an empty store", apperrors.ErrInvalidInput)
	}
	docs := make(map[string]*docRecord, len(state.Documents))
	for i := range state.Documents {
		doc := state.Documents[i]
		if _, dup := docs[doc.ID]; dup {
			return &apperrors.ConsistencyError{DocumentID: doc.ID, Detail: "duplicate document"}
		}
		docs[doc.ID] = &docRecord{doc: &doc}
	}
	slots := make(map[string]*Posting, len(state.Terms))
	for _, te := range state.Terms {
		if _, dup := slots[te.Term]; dup {
			return &apperrors.ConsistencyError{Term: te.Term, Detail: "duplicate term"}
		}
		p := &Posting{term: te.Term, entries: make([]Entry, 0, len(te.Postings))}
		for i, es := range te.Postings {
			rec, ok := docs[es.DocID]
			if !ok {
				return &apperrors.ConsistencyError{Term: te.Term, DocumentID: es.DocID, Detail: "posting references unknown document"}
			}
			if i > 0 && te.Postings[i-1].DocID >= es.DocID {
				return &apperrors.ConsistencyError{Term: te.Term, DocumentID: es.DocID, Detail: "postings not ordered by document id"}
			}
			if err := checkSpans(te.Term, es.DocID, es.Spans, len(rec.doc.Text)); err != nil {
				return err
			}
			rec.terms = append(rec.terms, te.Term)
			p.entries = append(p.entries, Entry{DocID: es.DocID, Spans: slices.Clone(es.Spans), doc: rec.doc})
		}
		if len(p.entries) == 0 {
			return &apperrors.ConsistencyError{Term: te.Term, Detail: "empty posting"}
		}
		slots[te.Term] = p
	}

	for id, rec := range docs {
		slices.Sort(rec.terms)
		s.docs.Store(id, rec)
	}
	for term, p := range slots {
		slot := &termSlot{}
		slot.posting.Store(p)
		s.terms.Store(term, slot)
	}
	s.docCount.Store(int64(len(docs)))
	s.termCount.Store(int64(len(slots)))
	s.generation.Add(1)
	s.logger.Info("index state restored", "documents", len(docs), "terms", len(slots))
	return nil
}

// CheckConsistency verifies that every posting references the live version
// of a known document and that every document's term list is backed by
// postings. It is meaningful only while no writer is active.
func (s *Store) CheckConsistency() error {
	var errs []error
	for _, term := range s.Terms() {
		p, ok := s.PostingsFor(term)
		if !ok {
			continue
		}
		for _, e := range p.entries {
			rec, ok := s.loadDoc(e.DocID)
			switch {
			case !ok:
				errs = append(errs, &apperrors.ConsistencyError{Term: term, DocumentID: e.DocID, Detail: "posting references unknown document"})
			case rec.doc != e.doc:
				errs = append(errs, &apperrors.ConsistencyError{Term: term, DocumentID: e.DocID, Detail: "posting references a stale document version"})
			case len(e.Spans) == 0:
				errs = append(errs, &apperrors.ConsistencyError{Term: term, DocumentID: e.DocID, Detail: "empty span list"})
			}
		}
	}
	s.docs.Range(func(k, v any) bool {
		rec := v.(*docRecord)
		for _, term := range rec.terms {
			p, ok := s.PostingsFor(term)
			if !ok {
				errs = append(errs, &apperrors.ConsistencyError{Term: term, DocumentID: k.(string), Detail: "term missing from index"})
				continue
			}
			if _, ok := p.find(k.(string)); !ok {
				errs = append(errs, &apperrors.ConsistencyError{Term: term, DocumentID: k.(string), Detail: "document missing from posting"})
			}
		}
		return true
	})
	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.logger.Error("index consistency check failed", "violations", len(errs), "error", err)
		return err
	}
	return nil
}

// Close drops all postings and metadata. Later writes fail with ErrClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	for i := range s.locks {
		s.locks[i].Lock()
	}
	s.terms.Clear()
	s.docs.Clear()
	s.docCount.Store(0)
	s.termCount.Store(0)
	for i := range s.locks {
		s.locks[i].Unlock()
	}
	return nil
}

func (s *Store) loadDoc(id string) (*docRecord, bool) {
	v, ok := s.docs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*docRecord), true
}

func (s *Store) lockFor(docID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(docID))
	return &s.locks[h.Sum32()%lockStripes]
}

func checkSpans(term, docID string, spans []Span, textLen int) error {
	prev := -1
	for _, sp := range spans {
		if sp.Start < 0 || sp.End > textLen || sp.Start >= sp.End {
			return &apperrors.ConsistencyError{Term: term, DocumentID: docID, Detail: fmt.Sprintf("span [%d,%d) outside text of length %d", sp.Start, sp.End, textLen)}
		}
		if sp.Start <= prev {
			return &apperrors.ConsistencyError{Term: term, DocumentID: docID, Detail: "spans not ascending"}
		}
		prev = sp.Start
	}
	return nil
}

// mergeSorted returns the sorted union of two ascending, duplicate-free slices.
func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
