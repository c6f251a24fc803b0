package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("ai provider unavailable")

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is either a text fragment or a reference to a provider-hosted file.
type Part struct {
	Text     string
	FileURI  string
	MIMEType string
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func FilePart(uri, mimeType string) Part {
	return Part{FileURI: uri, MIMEType: mimeType}
}

func (p Part) IsFile() bool {
	return p.FileURI != ""
}

type Content struct {
	Role  string
	Parts []Part
}

type GenerationRequest struct {
	SystemInstruction string
	History           []Content
	// Current is the final user turn, sent after History.
	Current []Part
}

type UploadMeta struct {
	MIMEType    string
	DisplayName string
}

type UploadedFile struct {
	URI       string
	ExpiresAt time.Time
}

type IProvider interface {
	Name() string
	Upload(ctx context.Context, r io.Reader, meta UploadMeta) (*UploadedFile, error)
	GenerateStream(ctx context.Context, model string, req *GenerationRequest) iter.Seq2[string, error]
}

type ProviderFactory func(args interface{}) (IProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}
