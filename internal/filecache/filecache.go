package filecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/liutentor/tentor/internal/ai"
	"github.com/liutentor/tentor/internal/fetcher"
	"github.com/liutentor/tentor/internal/metrics"
	"github.com/liutentor/tentor/internal/model"
	appErr "github.com/liutentor/tentor/internal/pkg/errors"
)

var (
	ErrFetch  = errors.New("fetch source document")
	ErrUpload = errors.New("upload document to provider")
)

// providerRetention is assumed when the provider omits an expiration time.
const providerRetention = 48 * time.Hour

type Store interface {
	Get(ctx context.Context, kind model.DocumentKind, examID string, sourceURL string) (*model.CachedFile, error)
	UpdateProviderFile(ctx context.Context, kind model.DocumentKind, id int64, uri string, expiresAt time.Time) error
}

type Uploader interface {
	Upload(ctx context.Context, r io.Reader, meta ai.UploadMeta) (*ai.UploadedFile, error)
}

type Origin string

const (
	OriginCache    Origin = "cache"
	OriginUpload   Origin = "upload"
	OriginFallback Origin = "fallback"
)

type Resolution struct {
	URI    string
	Origin Origin
}

type Config struct {
	MIMEType        string
	FreshnessMargin time.Duration
	FetchTimeout    time.Duration
	TempDir         string
}

// Cache hands out provider file uris for exam and solution documents,
// re-uploading only when the stored uri is missing or about to expire.
// Concurrent callers for the same document may both upload; the last
// write to the store wins.
type Cache struct {
	store    Store
	fetcher  fetcher.Fetcher
	uploader Uploader
	cfg      Config
	now      func() time.Time
}

func New(store Store, f fetcher.Fetcher, uploader Uploader, cfg Config) *Cache {
	if cfg.MIMEType == "" {
		cfg.MIMEType = "application/pdf"
	}
	return &Cache{store: store, fetcher: f, uploader: uploader, cfg: cfg, now: time.Now}
}

// Resolve returns the uri to reference the document by. Storage failures and
// upload failures degrade to sourceURL; only a failed fetch is returned as an
// error.
func (c *Cache) Resolve(ctx context.Context, kind model.DocumentKind, documentID string, sourceURL string) (*Resolution, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("kind", string(kind)), zap.String("document_id", documentID))
	fallback := &Resolution{URI: sourceURL, Origin: OriginFallback}

	record, err := c.store.Get(ctx, kind, documentID, sourceURL)
	if err != nil {
		if !appErr.IsNotFound(err) {
			logger.Warn("read cached file failed, using source url", zap.Error(err))
		}
		observe(kind, OriginFallback)
		return fallback, nil
	}
	if record.FreshAt(c.now(), c.cfg.FreshnessMargin) {
		observe(kind, OriginCache)
		return &Resolution{URI: record.ProviderFileURI, Origin: OriginCache}, nil
	}
	record.SourceURL = sourceURL
	uri, err := c.Refresh(ctx, record)
	if err != nil {
		if errors.Is(err, ErrFetch) {
			observe(kind, "error")
			return nil, err
		}
		logger.Error("refresh cached file failed, using source url", zap.Error(err))
		observe(kind, OriginFallback)
		return fallback, nil
	}
	observe(kind, OriginUpload)
	return &Resolution{URI: uri, Origin: OriginUpload}, nil
}

// Refresh fetches the record's source document, uploads it and stores the new
// uri. A failed store write is logged and the new uri is still returned.
func (c *Cache) Refresh(ctx context.Context, record *model.CachedFile) (string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("kind", string(record.Kind)), zap.Int64("record_id", record.ID))
	start := c.now()

	tmp, err := c.download(ctx, record)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	uploaded, err := c.uploader.Upload(ctx, tmp, ai.UploadMeta{
		MIMEType:    c.cfg.MIMEType,
		DisplayName: record.Kind.DisplayName(record.OwnerID),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	expiresAt := uploaded.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(providerRetention)
	}
	if err := c.store.UpdateProviderFile(ctx, record.Kind, record.ID, uploaded.URI, expiresAt); err != nil {
		logger.Error("persist provider file failed", zap.String("uri", uploaded.URI), zap.Error(err))
	}
	metrics.FileUploadSeconds.Observe(c.now().Sub(start).Seconds())
	logger.Info("document uploaded to provider",
		zap.String("uri", uploaded.URI),
		zap.Time("expires_at", expiresAt),
	)
	return uploaded.URI, nil
}

// download spools the source document into a temp file positioned at offset 0.
func (c *Cache) download(ctx context.Context, record *model.CachedFile) (*os.File, error) {
	fetchCtx := ctx
	if c.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancel()
	}
	body, err := c.fetcher.Fetch(fetchCtx, record.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp(c.cfg.TempDir, "tentor-"+string(record.Kind)+"-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	if _, err := io.Copy(tmp, body); err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	return tmp, nil
}

func observe(kind model.DocumentKind, origin Origin) {
	metrics.FileResolutions.WithLabelValues(string(kind), string(origin)).Inc()
}
