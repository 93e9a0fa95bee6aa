package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"

	"github.com/ziadkadry99/claimwise/internal/vectordb"
)

// mockStore implements vectordb.VectorStore for testing.
type mockStore struct {
	docs       map[string][]vectordb.Document
	persisted  string
	failSource string
}

func newMockStore() *mockStore {
	return &mockStore{docs: map[string][]vectordb.Document{}}
}

func (m *mockStore) AddDocuments(_ context.Context, docs []vectordb.Document) error {
	for _, d := range docs {
		if d.Metadata.Source == m.failSource {
			return errors.New("store unavailable")
		}
		m.docs[d.Metadata.Source] = append(m.docs[d.Metadata.Source], d)
	}
	return nil
}

func (m *mockStore) Search(context.Context, string, int, *vectordb.SearchFilter) ([]vectordb.SearchResult, error) {
	return nil, nil
}

func (m *mockStore) DeleteBySource(_ context.Context, source string) error {
	delete(m.docs, source)
	return nil
}

func (m *mockStore) Persist(_ context.Context, dir string) error {
	m.persisted = dir
	return nil
}

func (m *mockStore) Load(context.Context, string) error { return nil }
func (m *mockStore) Close() error                       { return nil }

func (m *mockStore) Count(context.Context) (int, error) {
	n := 0
	for _, d := range m.docs {
		n += len(d)
	}
	return n, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const policyMarkdown = `# Hospitalisation Policy

Section **4.2**: knee surgery is excluded for the first *24 months*.
Emergency care is covered from day one.

- Cataract
- Hernia

| Procedure | Limit |
|---|---|
| Cataract | 40000 |

` + "```\ncode line\n```\n"

// policyTree lays out a small document tree and returns its root.
func policyTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "policy.md"), policyMarkdown)
	writeFile(t, filepath.Join(root, "riders", "opd.txt"), "Outpatient consultations are reimbursed up to 5000 per year.")
	writeFile(t, filepath.Join(root, "scan.png"), "not really an image")
	writeFile(t, filepath.Join(root, ".git", "notes.md"), "ignored")
	writeFile(t, filepath.Join(root, "drafts", "old.md"), "superseded wording")
	writeFile(t, filepath.Join(root, "broken.txt"), "bin\x00ary")
	return root
}

func TestSplitterShortText(t *testing.T) {
	s := NewSplitter(100, 20)
	if diff := cmp.Diff([]string{"Short clause."}, s.Split("Short clause.")); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
	if got := s.Split("   "); len(got) != 0 {
		t.Errorf("expected no chunks for blank text, got %q", got)
	}
	if got := NewSplitter(1000, 200).Split("para one.\n\npara two."); len(got) != 1 || got[0] != "para one.\n\npara two." {
		t.Errorf("expected paragraphs kept together, got %q", got)
	}
}

func TestSplitterOverlap(t *testing.T) {
	var sentences []string
	for i := 0; i < 10; i++ {
		sentences = append(sentences, fmt.Sprintf("Sentence number %d is here", i))
	}
	text := strings.Join(sentences, ". ") + "."

	chunks := NewSplitter(60, 30).Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 60 {
			t.Errorf("chunk %d has %d runes, want <= 60", i, n)
		}
		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		last := prev[strings.LastIndex(prev, ". ")+2:]
		if !strings.HasPrefix(c, last) {
			t.Errorf("chunk %d = %q does not overlap previous tail %q", i, c, last)
		}
	}
	if !strings.HasSuffix(chunks[len(chunks)-1], "Sentence number 9 is here.") {
		t.Errorf("last chunk lost the final sentence: %q", chunks[len(chunks)-1])
	}
}

func TestSplitterWithoutSeparators(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{"ascii", strings.Repeat("a", 250), []int{100, 100, 50}},
		{"multibyte", strings.Repeat("₹", 150), []int{100, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, c := range NewSplitter(100, 0).Split(tt.text) {
				got = append(got, utf8.RuneCountInString(c))
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("chunk sizes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, 5000)
	if s.Size != 1000 || s.Overlap != 200 {
		t.Errorf("got size %d overlap %d, want 1000/200", s.Size, s.Overlap)
	}
}

func TestMarkdownToText(t *testing.T) {
	body, title := MarkdownToText([]byte(policyMarkdown))

	if title != "Hospitalisation Policy" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{
		"Section 4.2: knee surgery is excluded for the first 24 months. Emergency care is covered from day one.",
		"- Cataract\n- Hernia",
		"40000",
		"code line",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	for _, unwanted := range []string{"**", "# ", "|---", "```"} {
		if strings.Contains(body, unwanted) {
			t.Errorf("body still contains %q:\n%s", unwanted, body)
		}
	}
	if strings.Contains(body, "\n\n\n") {
		t.Error("expected runs of blank lines to be collapsed")
	}
}

func TestDiscoverDirectory(t *testing.T) {
	root := policyTree(t)

	files, err := Discover([]string{root}, []string{"**/*.md", "**/*.txt"}, []string{"drafts/**"}, 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	var got []string
	for _, f := range files {
		got = append(got, f.Source)
		if f.ContentHash == "" {
			t.Errorf("%s: missing content hash", f.Source)
		}
	}
	sort.Strings(got)
	want := []string{
		filepath.ToSlash(filepath.Join(root, "policy.md")),
		filepath.ToSlash(filepath.Join(root, "riders", "opd.txt")),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverExplicitFiles(t *testing.T) {
	root := policyTree(t)

	files, err := Discover([]string{
		filepath.Join(root, "policy.md"),
		filepath.Join(root, "scan.png"),
		filepath.Join(root, "missing.txt"),
		root,
	}, nil, nil, 0)

	var merr *multierror.Error
	if !errors.As(err, &merr) || len(merr.Errors) != 2 {
		t.Fatalf("expected 2 accumulated errors, got %v", err)
	}
	// policy.md named directly and found again by the walk counts once.
	count := 0
	for _, f := range files {
		if strings.HasSuffix(f.Path, "policy.md") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("policy.md listed %d times, want 1", count)
	}

	if _, err := Discover(nil, nil, nil, 0); !errors.Is(err, ErrNoPaths) {
		t.Errorf("expected ErrNoPaths, got %v", err)
	}
}

func TestMatchesIncludeExclude(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"policy.md", []string{"**/*.md"}, true},
		{"riders/opd.txt", []string{"riders/**"}, true},
		{"riders/opd.txt", []string{"*.txt"}, true},
		{"riders/opd.txt", []string{"*.md"}, false},
	}
	for _, tt := range tests {
		if got := MatchesInclude(tt.path, tt.patterns); got != tt.want {
			t.Errorf("MatchesInclude(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
	if !MatchesInclude("anything", nil) || MatchesExclude("anything", nil) {
		t.Error("empty patterns should include everything and exclude nothing")
	}
}

func TestIndexerIndex(t *testing.T) {
	root := policyTree(t)
	store := newMockStore()
	ix := NewIndexer(store, Options{
		Include:    []string{"**/*.md", "**/*.txt"},
		Exclude:    []string{"drafts/**"},
		PersistDir: "/data/vectors",
	}, nil, nil)
	ctx := context.Background()

	stats, err := ix.Index(ctx, []string{root})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if diff := cmp.Diff(Stats{Files: 2, Chunks: 2}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if store.persisted != "/data/vectors" {
		t.Errorf("persisted to %q", store.persisted)
	}

	mdSource := filepath.ToSlash(filepath.Join(root, "policy.md"))
	docs := store.docs[mdSource]
	if len(docs) != 1 {
		t.Fatalf("expected 1 markdown chunk, got %d", len(docs))
	}
	if docs[0].Metadata.Title != "Hospitalisation Policy" {
		t.Errorf("title = %q", docs[0].Metadata.Title)
	}
	firstID := docs[0].ID

	// Re-indexing replaces chunks instead of duplicating them.
	if _, err := ix.Index(ctx, []string{root}); err != nil {
		t.Fatalf("second Index: %v", err)
	}
	if n, _ := store.Count(ctx); n != 2 {
		t.Errorf("expected 2 chunks after re-index, got %d", n)
	}
	if store.docs[mdSource][0].ID != firstID {
		t.Error("chunk IDs should be stable across runs")
	}
}

func TestIndexerKeepsGoingOnFailure(t *testing.T) {
	root := policyTree(t)
	store := newMockStore()
	store.failSource = filepath.ToSlash(filepath.Join(root, "policy.md"))
	ix := NewIndexer(store, Options{Exclude: []string{"drafts/**"}}, nil, nil)

	stats, err := ix.Index(context.Background(), []string{root})
	if err == nil {
		t.Fatal("expected an error for the failing document")
	}
	if stats.Files != 1 || stats.Skipped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if _, ok := store.docs[filepath.ToSlash(filepath.Join(root, "riders", "opd.txt"))]; !ok {
		t.Error("expected the healthy document to be indexed")
	}
}

func TestIndexerNoPaths(t *testing.T) {
	ix := NewIndexer(newMockStore(), Options{}, nil, nil)
	if _, err := ix.Index(context.Background(), nil); !errors.Is(err, ErrNoPaths) {
		t.Errorf("expected ErrNoPaths, got %v", err)
	}
}
