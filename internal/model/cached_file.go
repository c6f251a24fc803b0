package model

import (
	"strings"
	"time"
)

type DocumentKind string

const (
	DocumentExam     DocumentKind = "exam"
	DocumentSolution DocumentKind = "solution"
)

func (k DocumentKind) DisplayName(documentID string) string {
	return strings.ToUpper(string(k)) + " - " + documentID
}

// CachedFile is the provider-hosted copy of an exam or solution document.
// A record without ProviderFileURI has never been uploaded.
type CachedFile struct {
	ID                    int64
	Kind                  DocumentKind
	OwnerID               string
	SourceURL             string
	ProviderFileURI       string
	ProviderFileExpiresAt *time.Time
}

func (f *CachedFile) Cached() bool {
	return f.ProviderFileURI != "" && f.ProviderFileExpiresAt != nil
}

// FreshAt reports whether the cached uri is still valid margin after now.
func (f *CachedFile) FreshAt(now time.Time, margin time.Duration) bool {
	if !f.Cached() {
		return false
	}
	return f.ProviderFileExpiresAt.After(now.Add(margin))
}
