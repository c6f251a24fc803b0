package filecache

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liutentor/tentor/internal/ai"
	"github.com/liutentor/tentor/internal/model"
	appErr "github.com/liutentor/tentor/internal/pkg/errors"
)

type fakeStore struct {
	mu        sync.Mutex
	record    *model.CachedFile
	getErr    error
	updateErr error
	updates   []string
}

func (s *fakeStore) Get(_ context.Context, kind model.DocumentKind, examID string, _ string) (*model.CachedFile, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.record == nil {
		return nil, appErr.ErrNotFound
	}
	cp := *s.record
	cp.Kind = kind
	cp.OwnerID = examID
	return &cp, nil
}

func (s *fakeStore) UpdateProviderFile(_ context.Context, _ model.DocumentKind, _ int64, uri string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, uri)
	return s.updateErr
}

type fakeFetcher struct {
	calls int
	urls  []string
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.calls++
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader("%PDF-1.4")), nil
}

type fakeUploader struct {
	calls   int
	err     error
	lastBuf string
	meta    ai.UploadMeta
}

func (u *fakeUploader) Upload(_ context.Context, r io.Reader, meta ai.UploadMeta) (*ai.UploadedFile, error) {
	u.calls++
	u.meta = meta
	data, _ := io.ReadAll(r)
	u.lastBuf = string(data)
	if u.err != nil {
		return nil, u.err
	}
	return &ai.UploadedFile{URI: "files/new", ExpiresAt: time.Now().Add(48 * time.Hour)}, nil
}

func newTestCache(t *testing.T, store Store, f *fakeFetcher, up *fakeUploader, now time.Time) *Cache {
	t.Helper()
	c := New(store, f, up, Config{FreshnessMargin: 5 * time.Minute, TempDir: t.TempDir()})
	c.now = func() time.Time { return now }
	return c
}

func cachedRecord(uri string, expires time.Time) *model.CachedFile {
	return &model.CachedFile{ID: 7, SourceURL: "https://x/exam.pdf", ProviderFileURI: uri, ProviderFileExpiresAt: &expires}
}

func TestResolveFreshRecordSkipsUpload(t *testing.T) {
	now := time.Now()
	store := &fakeStore{record: cachedRecord("files/cached", now.Add(6*time.Minute))}
	f, up := &fakeFetcher{}, &fakeUploader{}
	c := newTestCache(t, store, f, up, now)

	res, err := c.Resolve(context.Background(), model.DocumentExam, "7", "https://x/exam.pdf")
	require.NoError(t, err)
	require.Equal(t, "files/cached", res.URI)
	require.Equal(t, OriginCache, res.Origin)
	require.Zero(t, f.calls)
	require.Zero(t, up.calls)
}

func TestResolveStaleOrMissingUploadsOnce(t *testing.T) {
	now := time.Now()
	cases := map[string]*model.CachedFile{
		"within margin": cachedRecord("files/old", now.Add(4*time.Minute)),
		"expired":       cachedRecord("files/old", now.Add(-time.Hour)),
		"never cached":  {ID: 7, SourceURL: "https://x/exam.pdf"},
	}
	for name, record := range cases {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{record: record}
			f, up := &fakeFetcher{}, &fakeUploader{}
			c := newTestCache(t, store, f, up, now)

			res, err := c.Resolve(context.Background(), model.DocumentExam, "7", "https://x/exam.pdf")
			require.NoError(t, err)
			require.Equal(t, "files/new", res.URI)
			require.Equal(t, OriginUpload, res.Origin)
			require.Equal(t, 1, f.calls)
			require.Equal(t, 1, up.calls)
			require.Equal(t, "%PDF-1.4", up.lastBuf)
			require.Equal(t, "EXAM - 7", up.meta.DisplayName)
			require.Equal(t, "application/pdf", up.meta.MIMEType)
			require.Equal(t, []string{"files/new"}, store.updates)
		})
	}
}

func TestResolveFetchesRequestedURL(t *testing.T) {
	now := time.Now()
	record := cachedRecord("files/old", now.Add(-time.Hour))
	record.SourceURL = "https://old.example/stale.pdf"
	store := &fakeStore{record: record}
	f, up := &fakeFetcher{}, &fakeUploader{}
	c := newTestCache(t, store, f, up, now)

	res, err := c.Resolve(context.Background(), model.DocumentExam, "7", "https://new.example/exam.pdf")
	require.NoError(t, err)
	require.Equal(t, OriginUpload, res.Origin)
	require.Equal(t, []string{"https://new.example/exam.pdf"}, f.urls)
}

func TestRefreshFetchesStoredURL(t *testing.T) {
	f, up := &fakeFetcher{}, &fakeUploader{}
	c := newTestCache(t, &fakeStore{}, f, up, time.Now())

	_, err := c.Refresh(context.Background(), &model.CachedFile{ID: 9, Kind: model.DocumentSolution, OwnerID: "9", SourceURL: "https://x/stored.pdf"})
	require.NoError(t, err)
	require.Equal(t, []string{"https://x/stored.pdf"}, f.urls)
}

func TestResolveUploadFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{record: &model.CachedFile{ID: 3, SourceURL: "https://x/sol.pdf"}}
	f, up := &fakeFetcher{}, &fakeUploader{err: errors.New("quota")}
	c := New(store, f, up, Config{FreshnessMargin: 5 * time.Minute, TempDir: dir})

	res, err := c.Resolve(context.Background(), model.DocumentSolution, "3", "https://x/sol.pdf")
	require.NoError(t, err)
	require.Equal(t, "https://x/sol.pdf", res.URI)
	require.Equal(t, OriginFallback, res.Origin)
	require.Empty(t, store.updates)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestResolveFetchFailureIsReturned(t *testing.T) {
	store := &fakeStore{record: &model.CachedFile{ID: 3, SourceURL: "https://x/exam.pdf"}}
	f, up := &fakeFetcher{err: errors.New("404")}, &fakeUploader{}
	c := newTestCache(t, store, f, up, time.Now())

	_, err := c.Resolve(context.Background(), model.DocumentExam, "3", "https://x/exam.pdf")
	require.ErrorIs(t, err, ErrFetch)
	require.Zero(t, up.calls)
}

func TestResolveStorageDegrades(t *testing.T) {
	f, up := &fakeFetcher{}, &fakeUploader{}

	c := newTestCache(t, &fakeStore{getErr: errors.New("connection reset")}, f, up, time.Now())
	res, err := c.Resolve(context.Background(), model.DocumentExam, "1", "https://x/a.pdf")
	require.NoError(t, err)
	require.Equal(t, "https://x/a.pdf", res.URI)

	c = newTestCache(t, &fakeStore{}, f, up, time.Now())
	res, err = c.Resolve(context.Background(), model.DocumentExam, "1", "https://x/a.pdf")
	require.NoError(t, err)
	require.Equal(t, OriginFallback, res.Origin)
	require.Zero(t, f.calls)
}

func TestResolvePersistFailureKeepsNewURI(t *testing.T) {
	store := &fakeStore{record: &model.CachedFile{ID: 9, SourceURL: "https://x/exam.pdf"}, updateErr: errors.New("read only")}
	c := newTestCache(t, store, &fakeFetcher{}, &fakeUploader{}, time.Now())

	res, err := c.Resolve(context.Background(), model.DocumentExam, "9", "https://x/exam.pdf")
	require.NoError(t, err)
	require.Equal(t, "files/new", res.URI)
}
