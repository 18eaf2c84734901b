package content

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/kulturbot/ai"
	"github.com/hrygo/kulturbot/content/extract"
	"github.com/hrygo/kulturbot/content/feed"
)

type fakeExtractor struct {
	mu    sync.Mutex
	texts map[string]string // url -> extracted text
	err   error
}

func (f *fakeExtractor) FetchText(_ context.Context, rawURL string, _ extract.Mode) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.texts[rawURL], nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (*ai.EmbedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, text)
	return &ai.EmbedResult{Vector: []float32{1, 0}, Tokens: 7}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRecorder struct {
	mu     sync.Mutex
	tokens []int
}

func (f *fakeRecorder) RecordRefresh(_ context.Context, embeddingTokens int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, embeddingTokens)
	return nil
}

func (f *fakeRecorder) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type fakeFeed struct {
	posts []feed.Post
	err   error
}

func (f *fakeFeed) FetchPosts(context.Context) ([]feed.Post, error) {
	return f.posts, f.err
}

func testCatalog() []Source {
	return []Source{
		{Key: "events", Name: "События", URL: "https://example.org/events", UserURL: "https://example.org/events", Mode: extract.ModeEvents, Temporal: true},
		{Key: "news", Name: "Новости", URL: "https://example.org/news", UserURL: "https://example.org/news", Mode: extract.ModeNews, Temporal: true},
		{Key: "contacts", Name: "Контакты", URL: "https://example.org/contacts", UserURL: "https://example.org/contacts", Mode: extract.ModePhones},
	}
}

func TestRefreshEmbedsEverythingFirstCycle(t *testing.T) {
	extractor := &fakeExtractor{texts: map[string]string{
		"https://example.org/events":   "event text",
		"https://example.org/news":     "news text",
		"https://example.org/contacts": "phone text",
	}}
	embedder := &fakeEmbedder{}
	recorder := &fakeRecorder{}

	store, err := NewStore(testCatalog(), extractor, nil, embedder, recorder)
	require.NoError(t, err)

	require.NoError(t, store.Refresh(context.Background()))

	snap := store.Sections()
	require.Len(t, snap.Items, 3)
	for _, item := range snap.Items {
		require.NotNil(t, item.Vector, "section %s has no vector", item.Key)
	}
	require.Equal(t, 3, embedder.callCount())
	require.Equal(t, 1, recorder.recordCount())
}

// A second refresh over identical text must spend nothing: no embedding
// calls, no ledger record, and the published snapshot stays the same object.
func TestRefreshUnchangedSpendsNothing(t *testing.T) {
	extractor := &fakeExtractor{texts: map[string]string{
		"https://example.org/events":   "event text",
		"https://example.org/news":     "news text",
		"https://example.org/contacts": "phone text",
	}}
	embedder := &fakeEmbedder{}
	recorder := &fakeRecorder{}

	store, err := NewStore(testCatalog(), extractor, nil, embedder, recorder)
	require.NoError(t, err)

	require.NoError(t, store.Refresh(context.Background()))
	first := store.Sections()

	require.NoError(t, store.Refresh(context.Background()))
	second := store.Sections()

	require.Same(t, first, second, "unchanged refresh must not republish")
	require.Equal(t, 3, embedder.callCount())
	require.Equal(t, 1, recorder.recordCount())
}

func TestRefreshReembedsOnlyChangedSection(t *testing.T) {
	extractor := &fakeExtractor{texts: map[string]string{
		"https://example.org/events":   "event text",
		"https://example.org/news":     "news text",
		"https://example.org/contacts": "phone text",
	}}
	embedder := &fakeEmbedder{}

	store, err := NewStore(testCatalog(), extractor, nil, embedder, nil)
	require.NoError(t, err)
	require.NoError(t, store.Refresh(context.Background()))
	require.Equal(t, 3, embedder.callCount())

	extractor.mu.Lock()
	extractor.texts["https://example.org/news"] = "breaking news"
	extractor.mu.Unlock()

	require.NoError(t, store.Refresh(context.Background()))
	require.Equal(t, 4, embedder.callCount(), "only the changed section is re-embedded")

	snap := store.Sections()
	for _, item := range snap.Items {
		if item.Key == "news" {
			require.Equal(t, "breaking news", item.Content)
		}
		require.NotNil(t, item.Vector)
	}
}

func TestRefreshExtractionFailureAbortsCycle(t *testing.T) {
	extractor := &fakeExtractor{err: fmt.Errorf("origin down")}
	embedder := &fakeEmbedder{}

	store, err := NewStore(testCatalog(), extractor, nil, embedder, nil)
	require.NoError(t, err)

	err = store.Refresh(context.Background())
	require.Error(t, err)
	require.Empty(t, store.Sections().Items, "failed cycle must not publish a partial snapshot")
}

// Feed posts reuse vectors by id alone. Even when the post text changes the
// old vector is kept; posts are treated as immutable once seen.
func TestRefreshPostsReuseVectorByID(t *testing.T) {
	extractor := &fakeExtractor{texts: map[string]string{
		"https://example.org/events":   "event text",
		"https://example.org/news":     "news text",
		"https://example.org/contacts": "phone text",
	}}
	embedder := &fakeEmbedder{}
	src := &fakeFeed{posts: []feed.Post{
		{ID: 1, Text: "first post"},
		{ID: 2, Text: "second post"},
	}}

	store, err := NewStore(testCatalog(), extractor, src, embedder, nil)
	require.NoError(t, err)
	require.NoError(t, store.Refresh(context.Background()))
	baseline := embedder.callCount() // 3 sections + 2 posts

	src.posts = []feed.Post{
		{ID: 1, Text: "first post EDITED"},
		{ID: 3, Text: "third post"},
	}
	require.NoError(t, store.Refresh(context.Background()))

	require.Equal(t, baseline+1, embedder.callCount(), "only the unseen id is embedded")

	snap := store.Posts()
	require.Len(t, snap.Items, 2)
	for _, item := range snap.Items {
		require.NotNil(t, item.Vector)
	}
	// The edited text is still republished even though the vector is stale.
	require.Equal(t, "first post EDITED", snap.Items[0].Content)
}

func TestRefreshPostsAlwaysRepublishes(t *testing.T) {
	extractor := &fakeExtractor{texts: map[string]string{
		"https://example.org/events":   "event text",
		"https://example.org/news":     "news text",
		"https://example.org/contacts": "phone text",
	}}
	embedder := &fakeEmbedder{}
	src := &fakeFeed{posts: []feed.Post{{ID: 1, Text: "post"}}}

	store, err := NewStore(testCatalog(), extractor, src, embedder, nil)
	require.NoError(t, err)
	require.NoError(t, store.Refresh(context.Background()))
	first := store.Posts()

	require.NoError(t, store.Refresh(context.Background()))
	second := store.Posts()
	require.NotSame(t, first, second, "post snapshot is republished every cycle")
}

func TestTemporalContextConcatenatesTemporalSections(t *testing.T) {
	snap := &SectionSnapshot{Items: []Section{
		{Name: "События", Content: "event text", Temporal: true},
		{Name: "Контакты", Content: "phone text"},
		{Name: "Новости", Content: "news text", Temporal: true},
	}}
	got := snap.TemporalContext()
	require.Equal(t, "События: event text\n\nНовости: news text", got)
}

func TestPostNameTruncation(t *testing.T) {
	short := "короткий пост"
	if got := postName(short); got != short {
		t.Errorf("short post name changed: %q", got)
	}

	long := ""
	for i := 0; i < 150; i++ {
		long += "я"
	}
	got := postName(long)
	require.Len(t, []rune(got), postNameLimit+3)
	require.Equal(t, "...", got[len(got)-3:])
}
