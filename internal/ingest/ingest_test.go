package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/yomu/internal/chunker"
	"github.com/hyperjump/yomu/internal/embedding"
	"github.com/hyperjump/yomu/internal/extract"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/reqctx"
	"github.com/hyperjump/yomu/internal/vectorstore"
)

type recordingStore struct {
	mu    sync.Mutex
	calls map[string][]models.Chunk
	err   error
}

func (r *recordingStore) Persist(_ context.Context, id string, chunks []models.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string][]models.Chunk)
	}
	r.calls[id] = chunks
	return r.err
}

type recordingCatalog struct {
	docs []*models.Document
	err  error
}

func (c *recordingCatalog) CreateDocument(_ context.Context, doc *models.Document) error {
	c.docs = append(c.docs, doc)
	return c.err
}

type countingExtractor struct {
	inner Extractor
	calls int
}

func (c *countingExtractor) Extract(ctx context.Context, f extract.File) (*extract.Result, error) {
	c.calls++
	return c.inner.Extract(ctx, f)
}

func sequentialIDs() IDGenerator {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("doc-%d", n), nil
	}
}

func newTestOrchestrator(store Persister, opts ...Option) *Orchestrator {
	return New(extract.NewExtractor(), chunker.Default(), store, opts...)
}

func TestIngest_RAGChunksAndPersists(t *testing.T) {
	store := &recordingStore{}
	catalog := &recordingCatalog{}
	o := newTestOrchestrator(store, WithIDGenerator(sequentialIDs()), WithCatalog(catalog))

	text := strings.Repeat("a", 2500)
	res, err := o.Ingest(context.Background(), extract.File{Name: "notes.txt", Content: []byte(text)}, ModeRAG)
	require.NoError(t, err)

	assert.Equal(t, "doc-1", res.DocumentID)
	assert.Equal(t, "notes.txt", res.Filename)
	assert.Equal(t, text, res.Content)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, models.FormatText, res.Document.Format)
	assert.Equal(t, text, res.Document.Content)
	assert.False(t, res.Document.CreatedAt.IsZero())

	chunks := store.calls["doc-1"]
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "doc-1", c.Metadata.SourceID)
		assert.Equal(t, "notes.txt", c.Metadata.SourceName)
	}

	require.Len(t, catalog.docs, 1)
	assert.Equal(t, "doc-1", catalog.docs[0].ID)

	resp := res.Response()
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, "notes.txt", resp.Filename)
}

func TestIngest_PreviewSkipsPersistence(t *testing.T) {
	store := &recordingStore{}
	catalog := &recordingCatalog{}
	o := newTestOrchestrator(store, WithCatalog(catalog))

	res, err := o.Ingest(context.Background(), extract.File{Name: "a.txt", Content: []byte("hello world")}, ModePreview)
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
	assert.Equal(t, "hello world", res.Content)
	assert.Zero(t, res.Chunks)
	assert.Empty(t, store.calls)
	assert.Empty(t, catalog.docs)
}

func TestIngest_PreviewIsTruncated(t *testing.T) {
	o := newTestOrchestrator(&recordingStore{}, WithPreviewChars(5))
	res, err := o.Ingest(context.Background(), extract.File{Name: "a.txt", Content: []byte("héllo wörld")}, ModeRAG)
	require.NoError(t, err)
	assert.Equal(t, "héllo", res.Content)
	assert.Equal(t, "héllo wörld", res.Document.Content)
}

func TestIngest_DefaultPreviewLength(t *testing.T) {
	o := newTestOrchestrator(&recordingStore{})
	text := strings.Repeat("x", DefaultPreviewChars+50)
	res, err := o.Ingest(context.Background(), extract.File{Name: "big.txt", Content: []byte(text)}, ModePreview)
	require.NoError(t, err)
	assert.Len(t, res.Content, DefaultPreviewChars)
}

func TestIngest_UnsupportedFormat(t *testing.T) {
	store := &recordingStore{}
	o := newTestOrchestrator(store)
	_, err := o.Ingest(context.Background(), extract.File{Name: "data.xyz", Content: []byte("??")}, ModeRAG)
	require.Error(t, err)

	var uerr *models.UnsupportedFormatError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "xyz", uerr.Extension)
	assert.Equal(t, models.KindUnsupportedFormat, models.KindOf(err))
	assert.Empty(t, store.calls)
}

func TestIngest_ValidationBeforeCollaborators(t *testing.T) {
	ex := &countingExtractor{inner: extract.NewExtractor()}
	o := New(ex, chunker.Default(), &recordingStore{})

	_, err := o.Ingest(context.Background(), extract.File{Name: " ", Content: []byte("x")}, ModeRAG)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file", verr.Field)

	_, err = o.Ingest(context.Background(), extract.File{Name: "a.txt"}, Mode("bulk"))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mode", verr.Field)

	assert.Zero(t, ex.calls)
}

func TestIngest_PersistFailureKeepsKind(t *testing.T) {
	store := &recordingStore{err: fmt.Errorf("%w: boom", models.ErrEmbedding)}
	catalog := &recordingCatalog{}
	o := newTestOrchestrator(store, WithCatalog(catalog))

	_, err := o.Ingest(context.Background(), extract.File{Name: "a.txt", Content: []byte("some text")}, ModeRAG)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrEmbedding)
	assert.Empty(t, catalog.docs)
}

func TestIngest_CatalogFailureDoesNotFail(t *testing.T) {
	catalog := &recordingCatalog{err: errors.New("locked")}
	o := newTestOrchestrator(&recordingStore{}, WithCatalog(catalog))
	_, err := o.Ingest(context.Background(), extract.File{Name: "a.txt", Content: []byte("some text")}, ModeRAG)
	require.NoError(t, err)
}

func TestIngest_IDGeneratorFailure(t *testing.T) {
	o := newTestOrchestrator(&recordingStore{}, WithIDGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))
	_, err := o.Ingest(context.Background(), extract.File{Name: "a.txt", Content: []byte("x")}, ModeRAG)
	require.Error(t, err)
	assert.Equal(t, models.KindInternal, models.KindOf(err))
}

func TestIngest_EmptyFileCreatesDocumentWithoutChunks(t *testing.T) {
	store := &recordingStore{}
	o := newTestOrchestrator(store)
	res, err := o.Ingest(context.Background(), extract.File{Name: "empty.txt", Content: nil}, ModeRAG)
	require.NoError(t, err)
	assert.Empty(t, res.Content)
	assert.Zero(t, res.Chunks)
	assert.Empty(t, store.calls[res.DocumentID])
}

func TestIngest_ReingestCreatesNewDocument(t *testing.T) {
	backend, err := vectorstore.NewMemoryBackend(384, "")
	require.NoError(t, err)
	store := vectorstore.New(embedding.NewMockEmbedder(384), backend)
	o := newTestOrchestrator(store)
	ctx := reqctx.WithID(context.Background(), "req-1")

	f := extract.File{Name: "same.txt", Content: []byte("The quick brown fox jumps over the lazy dog.")}
	first, err := o.Ingest(ctx, f, ModeRAG)
	require.NoError(t, err)
	second, err := o.Ingest(ctx, f, ModeRAG)
	require.NoError(t, err)
	assert.NotEqual(t, first.DocumentID, second.DocumentID)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	results, err := store.Search(ctx, "The quick brown fox jumps over the lazy dog.", vectorstore.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].DocumentID, results[1].DocumentID}
	assert.ElementsMatch(t, []string{first.DocumentID, second.DocumentID}, ids)
}

func TestIngestFile_And_Directory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0755))
	write := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	write(filepath.Join(dir, "a.txt"), "alpha")
	write(filepath.Join(dir, "b.csv"), "x,y\n1,2\n")
	write(filepath.Join(dir, "c.xyz"), "gamma")
	write(filepath.Join(sub, "d.txt"), "delta")

	store := &recordingStore{}
	o := newTestOrchestrator(store)
	ctx := context.Background()

	res, err := o.IngestFile(ctx, filepath.Join(dir, "a.txt"), []string{".txt"})
	require.NoError(t, err)
	assert.Equal(t, "a.txt", res.Filename)

	_, err = o.IngestFile(ctx, filepath.Join(dir, "b.csv"), []string{"txt"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = o.IngestFile(ctx, filepath.Join(dir, "missing.txt"), nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = o.IngestFile(ctx, dir, nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	report, err := o.IngestDirectory(ctx, dir, nil, false)
	require.NoError(t, err)
	assert.Len(t, report.Ingested, 2)
	require.Len(t, report.Skipped, 1)
	assert.Contains(t, report.Skipped, filepath.Join(dir, "c.xyz"))

	report, err = o.IngestDirectory(ctx, dir, []string{"TXT"}, true)
	require.NoError(t, err)
	names := make([]string, 0, len(report.Ingested))
	for _, r := range report.Ingested {
		names = append(names, r.Filename)
	}
	assert.ElementsMatch(t, []string{"a.txt", "d.txt"}, names)

	_, err = o.IngestDirectory(ctx, filepath.Join(dir, "a.txt"), nil, false)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestIngestDirectory_CorruptFileIsSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.docx"), []byte("not a zip"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bravo"), 0644))

	store := &recordingStore{}
	o := newTestOrchestrator(store)
	report, err := o.IngestDirectory(context.Background(), dir, nil, false)
	require.NoError(t, err)

	require.Len(t, report.Ingested, 1)
	assert.Equal(t, "b.txt", report.Ingested[0].Filename)
	require.Contains(t, report.Skipped, filepath.Join(dir, "a.docx"))
	assert.ErrorIs(t, report.Skipped[filepath.Join(dir, "a.docx")], models.ErrExtraction)
	assert.Len(t, store.calls, 1)
}

func TestIngestDirectory_StoreFailureStopsWalk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bravo"), 0644))

	store := &recordingStore{err: fmt.Errorf("%w: database is down", models.ErrStore)}
	o := newTestOrchestrator(store)
	report, err := o.IngestDirectory(context.Background(), dir, nil, false)
	assert.ErrorIs(t, err, models.ErrStore)
	require.NotNil(t, report)
	assert.Empty(t, report.Ingested)
	assert.Empty(t, report.Skipped)
	assert.Len(t, store.calls, 1)
}

func TestIngestDirectory_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := &recordingStore{}
	report, err := newTestOrchestrator(store).IngestDirectory(ctx, dir, nil, false)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, store.calls)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeRAG, false},
		{"rag", ModeRAG, false},
		{" Preview ", ModePreview, false},
		{"bulk", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, models.ErrValidation, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
