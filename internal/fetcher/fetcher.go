package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported document scheme")
	ErrTooLarge          = errors.New("document exceeds size limit")
)

// Fetcher downloads a source document. Callers must close the returned body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Mux dispatches to a Fetcher by URL scheme.
type Mux struct {
	mu       sync.RWMutex
	byScheme map[string]Fetcher
}

func NewMux() *Mux {
	return &Mux{byScheme: map[string]Fetcher{}}
}

func (m *Mux) Handle(scheme string, f Fetcher) {
	key := strings.ToLower(strings.TrimSpace(scheme))
	if key == "" || f == nil {
		return
	}
	m.mu.Lock()
	m.byScheme[key] = f
	m.mu.Unlock()
}

func (m *Mux) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse document url: %w", err)
	}
	m.mu.RLock()
	f := m.byScheme[strings.ToLower(u.Scheme)]
	m.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return f.Fetch(ctx, rawURL)
}

// limitedBody fails with ErrTooLarge once more than max bytes were read.
type limitedBody struct {
	rc   io.ReadCloser
	left int64
}

func newLimitedBody(rc io.ReadCloser, max int64) io.ReadCloser {
	if max <= 0 {
		return rc
	}
	return &limitedBody{rc: rc, left: max}
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.left < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.rc.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

func (l *limitedBody) Close() error {
	return l.rc.Close()
}
