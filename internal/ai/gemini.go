package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey string `json:"api_key"`
}

type geminiProvider struct {
	client *genai.Client
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Upload(ctx context.Context, r io.Reader, meta UploadMeta) (*UploadedFile, error) {
	if p.client == nil {
		return nil, ErrUnavailable
	}
	file, err := p.client.Files.Upload(ctx, r, &genai.UploadFileConfig{
		MIMEType:    meta.MIMEType,
		DisplayName: meta.DisplayName,
	})
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	if file == nil || file.URI == "" {
		return nil, fmt.Errorf("upload file: empty uri returned")
	}
	return &UploadedFile{URI: file.URI, ExpiresAt: file.ExpirationTime}, nil
}

func (p *geminiProvider) GenerateStream(ctx context.Context, model string, req *GenerationRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if p.client == nil {
			yield("", ErrUnavailable)
			return
		}
		contents := toGeminiContents(req)
		var cfg *genai.GenerateContentConfig
		if req.SystemInstruction != "" {
			cfg = &genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}},
			}
		}
		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				yield("", err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func toGeminiContents(req *GenerationRequest) []*genai.Content {
	out := make([]*genai.Content, 0, len(req.History)+1)
	for _, item := range req.History {
		out = append(out, &genai.Content{Role: item.Role, Parts: toGeminiParts(item.Parts)})
	}
	if len(req.Current) > 0 {
		out = append(out, &genai.Content{Role: RoleUser, Parts: toGeminiParts(req.Current)})
	}
	return out
}

func toGeminiParts(parts []Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsFile() {
			out = append(out, &genai.Part{FileData: &genai.FileData{FileURI: p.FileURI, MIMEType: p.MIMEType}})
			continue
		}
		out = append(out, &genai.Part{Text: p.Text})
	}
	return out
}

func createGeminiFactory(args interface{}) (IProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return &geminiProvider{}, nil
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiProvider{client: client}, nil
}

func init() {
	Register("gemini", createGeminiFactory)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
