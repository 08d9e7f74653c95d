package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/config"
)

var modified = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newEngine(t *testing.T, docs ...document.Document) *indexer.Engine {
	t.Helper()
	e := indexer.NewEngine(config.IndexConfig{ExtraWordChars: "-_", BatchConcurrency: 2})
	t.Cleanup(func() { _ = e.Close() })
	report := e.AddDocuments(context.Background(), docs)
	require.NoError(t, report.Err())
	return e
}

func newExecutor(e *indexer.Engine, policy parser.Policy, rule parser.CountRule, opts Options) *Executor {
	return New(e.Store(), parser.New(e.Tokenizer(), policy, rule), opts)
}

func defaultOptions() Options {
	return Options{MaxExcerpts: 3, ExcerptWidth: 40, HighlightPre: "**", HighlightPost: "**", Ellipsis: "..."}
}

func mkdoc(id, name, text string) document.Document {
	return document.Document{ID: id, Name: name, Type: document.FileTypeFromName(name), LastModified: modified, Text: text}
}

func exampleDocs() []document.Document {
	return []document.Document{
		mkdoc("doc1", "doc1.pdf", "the quarterly report shows growth growth growth"),
		mkdoc("doc2", "doc2.docx", "growth is steady"),
	}
}

func TestSearchTwoDocumentExample(t *testing.T) {
	exec := newExecutor(newEngine(t, exampleDocs()...), parser.PolicyAll, parser.CountFirst, defaultOptions())
	ctx := context.Background()

	results, err := exec.Search(ctx, "growth")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "doc1", results[0].DocumentID)
	assert.Equal(t, "doc1.pdf", results[0].DocumentName)
	assert.Equal(t, document.FileTypePDF, results[0].FileType)
	assert.Equal(t, modified, results[0].LastModified)
	assert.Equal(t, 3, results[0].Occurrences)
	assert.Len(t, results[0].Excerpts, 3)

	assert.Equal(t, "doc2", results[1].DocumentID)
	assert.Equal(t, document.FileTypeWord, results[1].FileType)
	assert.Equal(t, 1, results[1].Occurrences)
	assert.Equal(t, []string{"growth is steady"}, results[1].Excerpts)

	stats, err := exec.Stats(ctx, "growth")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalOccurrences)
	assert.Equal(t, map[document.FileType]int{document.FileTypePDF: 1, document.FileTypeWord: 1}, stats.ByFileType)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	exec := newExecutor(newEngine(t, exampleDocs()...), parser.PolicyAll, parser.CountFirst, defaultOptions())
	lower, err := exec.Search(context.Background(), "growth")
	require.NoError(t, err)
	upper, err := exec.Search(context.Background(), "  GROWTH ")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
}

func TestSearchBlankAndUnknown(t *testing.T) {
	exec := newExecutor(newEngine(t, exampleDocs()...), parser.PolicyAll, parser.CountFirst, defaultOptions())
	for _, q := range []string{"", "   ", "\t\n", "!!!", "nonexistent", "growth nonexistent"} {
		results, err := exec.Search(context.Background(), q)
		require.NoError(t, err, q)
		assert.NotNil(t, results, q)
		assert.Empty(t, results, q)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	exec := newExecutor(newEngine(t), parser.PolicyAll, parser.CountFirst, defaultOptions())
	results, err := exec.Search(context.Background(), "growth")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMultiWordPolicies(t *testing.T) {
	docs := []document.Document{
		mkdoc("a", "a.pdf", "report growth growth"),
		mkdoc("b", "b.pdf", "growth only"),
		mkdoc("c", "c.pdf", "report report report"),
	}
	e := newEngine(t, docs...)
	ctx := context.Background()

	all, err := newExecutor(e, parser.PolicyAll, parser.CountFirst, defaultOptions()).Search(ctx, "growth report")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].DocumentID)
	assert.Equal(t, 2, all[0].Occurrences, "first sub-term counted")

	sum, err := newExecutor(e, parser.PolicyAll, parser.CountSum, defaultOptions()).Search(ctx, "growth report")
	require.NoError(t, err)
	require.Len(t, sum, 1)
	assert.Equal(t, 3, sum[0].Occurrences)
	assert.Equal(t, []string{"**report** growth growth", "report **growth** growth", "report growth **growth**"}, highlightAll(t, e, "growth report"))

	anyFirst, err := newExecutor(e, parser.PolicyAny, parser.CountFirst, defaultOptions()).Search(ctx, "growth report")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, resultIDs(anyFirst))
	assert.Equal(t, []int{3, 2, 1}, resultCounts(anyFirst))

	dup, err := newExecutor(e, parser.PolicyAll, parser.CountSum, defaultOptions()).Search(ctx, "growth Growth growth")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, resultCounts(dup), "duplicate sub-terms collapse")
}

func highlightAll(t *testing.T, e *indexer.Engine, q string) []string {
	t.Helper()
	opts := defaultOptions()
	opts.Highlight = true
	results, err := newExecutor(e, parser.PolicyAll, parser.CountSum, opts).Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	return results[0].Excerpts
}

func TestOrderingTiesBreakByID(t *testing.T) {
	e := newEngine(t,
		mkdoc("z", "z.pdf", "growth"),
		mkdoc("m", "m.pdf", "growth"),
		mkdoc("a", "a.pdf", "growth"),
	)
	results, err := newExecutor(e, parser.PolicyAll, parser.CountFirst, defaultOptions()).Search(context.Background(), "growth")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "z"}, resultIDs(results))
}

func TestExcerptWindows(t *testing.T) {
	text := strings.Repeat("a ", 30) + "target" + strings.Repeat(" b", 30)
	e := newEngine(t, mkdoc("long", "long.txt", text))
	opts := defaultOptions()
	opts.ExcerptWidth = 4
	opts.Highlight = true

	results, err := newExecutor(e, parser.PolicyAll, parser.CountFirst, opts).Search(context.Background(), "target")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"...a a **target** b b..."}, results[0].Excerpts)
}

func TestExcerptClampedAtTextEdges(t *testing.T) {
	e := newEngine(t, mkdoc("edge", "edge.txt", "growth in the middle and growth"))
	opts := defaultOptions()
	opts.ExcerptWidth = 5

	results, err := newExecutor(e, parser.PolicyAll, parser.CountFirst, opts).Search(context.Background(), "growth")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"growth in t...", "... and growth"}, results[0].Excerpts)
}

func TestExcerptRuneBoundaries(t *testing.T) {
	e := newEngine(t, mkdoc("uni", "uni.txt", "ééé Ünïcode ççç"))
	opts := defaultOptions()
	opts.ExcerptWidth = 2
	opts.Ellipsis = ""

	results, err := newExecutor(e, parser.PolicyAll, parser.CountFirst, opts).Search(context.Background(), "ünïcode")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"é Ünïcode ç"}, results[0].Excerpts)
}

func TestMaxExcerpts(t *testing.T) {
	e := newEngine(t, mkdoc("many", "many.txt", strings.Repeat("growth ", 10)))
	opts := defaultOptions()
	opts.MaxExcerpts = 2
	results, err := newExecutor(e, parser.PolicyAll, parser.CountFirst, opts).Search(context.Background(), "growth")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 10, results[0].Occurrences)
	assert.Len(t, results[0].Excerpts, 2)

	opts.MaxExcerpts = 0
	results, err = newExecutor(e, parser.PolicyAll, parser.CountFirst, opts).Search(context.Background(), "growth")
	require.NoError(t, err)
	assert.Empty(t, results[0].Excerpts)
}

func TestSearchHonoursCancellation(t *testing.T) {
	exec := newExecutor(newEngine(t, exampleDocs()...), parser.PolicyAll, parser.CountFirst, defaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exec.Search(ctx, "growth")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEveryIndexedTokenIsFound(t *testing.T) {
	docs := []document.Document{
		mkdoc("d1", "d1.pdf", "Re-index the co_op's data; re-index again. Ünïcode wörds, 2024 numbers!"),
		mkdoc("d2", "d2.docx", "--dashes-- and __underscores__ and the DATA"),
	}
	e := newEngine(t, docs...)
	exec := newExecutor(e, parser.PolicyAll, parser.CountFirst, defaultOptions())
	tok := e.Tokenizer()

	for _, d := range docs {
		counts := make(map[string]int)
		for _, token := range tok.Tokenize(d.Text) {
			counts[token.Term]++
		}
		for term, want := range counts {
			results, err := exec.Search(context.Background(), term)
			require.NoError(t, err)
			var got int
			for _, r := range results {
				if r.DocumentID == d.ID {
					got = r.Occurrences
				}
			}
			assert.Equal(t, want, got, "term %q in %s", term, d.ID)
		}
	}
}

func TestSearchAfterReindexAndRemove(t *testing.T) {
	e := newEngine(t, exampleDocs()...)
	exec := newExecutor(e, parser.PolicyAll, parser.CountFirst, defaultOptions())
	ctx := context.Background()

	require.NoError(t, e.AddDocument(ctx, mkdoc("doc1", "doc1.pdf", "no longer relevant")))
	results, err := exec.Search(ctx, "growth")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc2"}, resultIDs(results))

	_, err = e.RemoveDocument(ctx, "doc2")
	require.NoError(t, err)
	results, err = exec.Search(ctx, "growth")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func resultIDs(results []document.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.DocumentID
	}
	return out
}

func resultCounts(results []document.SearchResult) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Occurrences
	}
	return out
}

func BenchmarkSearch(b *testing.B) {
	e := indexer.NewEngine(config.IndexConfig{ExtraWordChars: "-_", BatchConcurrency: 4})
	defer e.Close()
	ctx := context.Background()
	docs := make([]document.Document, 0, 500)
	for i := range 500 {
		text := strings.Repeat("quarterly report shows growth across every region ", 1+i%5)
		docs = append(docs, mkdoc(fmt.Sprintf("doc-%03d", i), "bench.pdf", text))
	}
	e.AddDocuments(ctx, docs)
	exec := newExecutor(e, parser.PolicyAll, parser.CountFirst, defaultOptions())
	for b.Loop() {
		if _, err := exec.Search(ctx, "growth region"); err != nil {
			b.Fatal(err)
		}
	}
}
