package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"runtime"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/liutentor/tentor/internal/ai"
	"github.com/liutentor/tentor/internal/filecache"
	"github.com/liutentor/tentor/internal/metrics"
	"github.com/liutentor/tentor/internal/model"
	appErr "github.com/liutentor/tentor/internal/pkg/errors"
	"github.com/liutentor/tentor/internal/prompt"
)

type FileResolver interface {
	Resolve(ctx context.Context, kind model.DocumentKind, documentID string, sourceURL string) (*filecache.Resolution, error)
}

type Generator interface {
	GenerateStream(ctx context.Context, model string, req *ai.GenerationRequest) iter.Seq2[string, error]
}

type TurnLogger interface {
	LogTurn(ctx context.Context, turn model.ChatTurn)
}

type ChatRequest struct {
	ExamID           string
	AnonymousUserID  string
	Messages         []model.ConversationMessage
	GiveDirectAnswer *bool
	ExamURL          string
	SolutionURL      string
	CourseCode       string
	ModelID          string
}

type ChatService struct {
	files    FileResolver
	gen      Generator
	audit    TurnLogger
	mimeType string
}

func NewChatService(files FileResolver, gen Generator, audit TurnLogger, mimeType string) *ChatService {
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	return &ChatService{files: files, gen: gen, audit: audit, mimeType: mimeType}
}

// Start validates the request, resolves the documents and opens the
// generation stream. It returns only after the provider produced its first
// increment (or finished), so a failed call never leaves a half written
// response behind.
func (s *ChatService) Start(ctx context.Context, req *ChatRequest) (*ChatStream, error) {
	if strings.TrimSpace(req.ExamURL) == "" {
		return nil, appErr.BadRequest("examUrl is required")
	}
	if len(req.Messages) == 0 {
		return nil, appErr.BadRequest("messages must not be empty")
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = ai.DefaultModelID
	}
	if req.AnonymousUserID == "" {
		req.AnonymousUserID = "unknown"
	}
	start := time.Now()
	logger := logutil.GetLogger(ctx).With(zap.String("exam_id", req.ExamID), zap.String("model", modelID))
	logCheckpoint(logger, "request_start", start)

	last := req.Messages[len(req.Messages)-1]
	lastText := last.Content.FirstText()
	if last.Role == model.RoleUser {
		s.audit.LogTurn(ctx, s.turn(req, modelID, model.RoleUser, lastText))
	}

	examURI, solutionURI := s.resolveDocuments(ctx, req)

	direct := true
	if req.GiveDirectAnswer != nil {
		direct = *req.GiveDirectAnswer
	}
	current := make([]ai.Part, 0, 3)
	if examURI != "" {
		current = append(current, ai.FilePart(examURI, s.mimeType))
	}
	if solutionURI != "" {
		current = append(current, ai.FilePart(solutionURI, s.mimeType))
	}
	current = append(current, ai.TextPart(lastText))
	genReq := &ai.GenerationRequest{
		SystemInstruction: prompt.Compose(prompt.ModeFor(direct)),
		History:           ToProviderHistory(req.Messages[:len(req.Messages)-1]),
		Current:           current,
	}

	logCheckpoint(logger, "before_ai_stream", start)
	providerModel := ai.ResolveModel(modelID)
	next, stop := iter.Pull2(s.gen.GenerateStream(ctx, providerModel, genReq))
	chunk, err, ok := next()
	if ok && err != nil {
		stop()
		metrics.ChatStreams.WithLabelValues(providerModel, "error").Inc()
		return nil, fmt.Errorf("start generation: %w", err)
	}
	return &ChatStream{
		svc:     s,
		req:     req,
		modelID: modelID,
		model:   providerModel,
		logger:  logger,
		start:   start,
		next:    next,
		stop:    stop,
		first:   chunk,
		hasMore: ok,
	}, nil
}

// resolveDocuments resolves the exam and, when given, the solution document
// concurrently. Each one degrades on its own: a failure yields an empty uri.
func (s *ChatService) resolveDocuments(ctx context.Context, req *ChatRequest) (string, string) {
	var (
		g           errgroup.Group
		examURI     string
		solutionURI string
	)
	g.Go(func() error {
		examURI = s.resolve(ctx, model.DocumentExam, req.ExamID, req.ExamURL)
		return nil
	})
	if req.SolutionURL != "" {
		g.Go(func() error {
			solutionURI = s.resolve(ctx, model.DocumentSolution, req.ExamID, req.SolutionURL)
			return nil
		})
	}
	_ = g.Wait()
	return examURI, solutionURI
}

func (s *ChatService) resolve(ctx context.Context, kind model.DocumentKind, examID, sourceURL string) string {
	res, err := s.files.Resolve(ctx, kind, examID, sourceURL)
	if err != nil {
		logutil.GetLogger(ctx).Error("resolve document failed, continuing without it",
			zap.String("kind", string(kind)),
			zap.String("exam_id", examID),
			zap.Error(err),
		)
		return ""
	}
	return res.URI
}

func (s *ChatService) turn(req *ChatRequest, modelID string, role model.ChatRole, content string) model.ChatTurn {
	return model.ChatTurn{
		AnonymousUserID: req.AnonymousUserID,
		CourseCode:      req.CourseCode,
		ExamID:          req.ExamID,
		Role:            role,
		Content:         content,
		ModelID:         modelID,
	}
}

// ChatStream is an opened generation stream waiting to be piped to a client.
type ChatStream struct {
	svc     *ChatService
	req     *ChatRequest
	modelID string
	model   string
	logger  *zap.Logger
	start   time.Time

	next    func() (string, error, bool)
	stop    func()
	first   string
	hasMore bool
}

// Pipe writes every increment to w in arrival order, calling flush after each
// one. The assistant turn is logged with whatever was delivered, also when the
// client goes away or the provider fails mid-stream.
func (cs *ChatStream) Pipe(ctx context.Context, w io.Writer, flush func()) error {
	defer cs.stop()
	var full strings.Builder
	result := "ok"
	defer func() {
		metrics.ChatStreams.WithLabelValues(cs.model, result).Inc()
		logCheckpoint(cs.logger, "after_ai_stream", cs.start)
		cs.svc.audit.LogTurn(ctx, cs.svc.turn(cs.req, cs.modelID, model.RoleAssistant, full.String()))
	}()

	chunk, err, ok := cs.first, error(nil), cs.hasMore
	for ok {
		if err != nil {
			result = streamResult(err)
			return fmt.Errorf("generation stream: %w", err)
		}
		if _, werr := io.WriteString(w, chunk); werr != nil {
			result = "client_gone"
			return fmt.Errorf("write chunk: %w", werr)
		}
		full.WriteString(chunk)
		if flush != nil {
			flush()
		}
		chunk, err, ok = cs.next()
	}
	return nil
}

// Close releases the provider stream when Pipe is never called.
func (cs *ChatStream) Close() {
	cs.stop()
}

func streamResult(err error) string {
	if errors.Is(err, context.Canceled) {
		return "client_gone"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

func logCheckpoint(logger *zap.Logger, stage string, start time.Time) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	logger.Info("chat checkpoint",
		zap.String("stage", stage),
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("heap_alloc_mb", ms.HeapAlloc>>20),
		zap.Uint64("sys_mb", ms.Sys>>20),
	)
}
