package service

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liutentor/tentor/internal/ai"
	"github.com/liutentor/tentor/internal/filecache"
	"github.com/liutentor/tentor/internal/model"
	appErr "github.com/liutentor/tentor/internal/pkg/errors"
)

type stubResolver struct {
	mu    sync.Mutex
	uris  map[model.DocumentKind]string
	errs  map[model.DocumentKind]error
	calls []model.DocumentKind
}

func (r *stubResolver) Resolve(_ context.Context, kind model.DocumentKind, _ string, _ string) (*filecache.Resolution, error) {
	r.mu.Lock()
	r.calls = append(r.calls, kind)
	r.mu.Unlock()
	if err := r.errs[kind]; err != nil {
		return nil, err
	}
	return &filecache.Resolution{URI: r.uris[kind], Origin: filecache.OriginCache}, nil
}

type stubGenerator struct {
	chunks  []string
	failAt  int
	err     error
	calls   int
	lastReq *ai.GenerationRequest
	model   string
}

func (g *stubGenerator) GenerateStream(_ context.Context, model string, req *ai.GenerationRequest) iter.Seq2[string, error] {
	g.calls++
	g.lastReq = req
	g.model = model
	return func(yield func(string, error) bool) {
		for i, c := range g.chunks {
			if g.err != nil && i == g.failAt {
				yield("", g.err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if g.err != nil && g.failAt >= len(g.chunks) {
			yield("", g.err)
		}
	}
}

type memoryTurns struct {
	mu    sync.Mutex
	turns []model.ChatTurn
}

func (m *memoryTurns) LogTurn(_ context.Context, turn model.ChatTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
}

func validRequest() *ChatRequest {
	return &ChatRequest{
		ExamID:     "42",
		CourseCode: "TATA24",
		ExamURL:    "https://x/exam.pdf",
		Messages: []model.ConversationMessage{
			{Role: model.RoleUser, Content: model.TextContent("first")},
			{Role: model.RoleAssistant, Content: model.TextContent("reply")},
			{Role: model.RoleUser, Content: model.TextContent("Vad är svaret?")},
		},
	}
}

func TestChatStartRejectsInvalid(t *testing.T) {
	gen := &stubGenerator{}
	svc := NewChatService(&stubResolver{}, gen, &memoryTurns{}, "")

	req := validRequest()
	req.ExamURL = ""
	_, err := svc.Start(context.Background(), req)
	he, ok := appErr.AsHTTP(err)
	require.True(t, ok)
	require.Equal(t, 400, he.Status)

	req = validRequest()
	req.Messages = nil
	_, err = svc.Start(context.Background(), req)
	_, ok = appErr.AsHTTP(err)
	require.True(t, ok)
	require.Zero(t, gen.calls)
}

func TestChatStreamAccumulatesAndLogs(t *testing.T) {
	files := &stubResolver{uris: map[model.DocumentKind]string{model.DocumentExam: "files/exam"}}
	gen := &stubGenerator{chunks: []string{"Hel", "lo"}}
	turns := &memoryTurns{}
	svc := NewChatService(files, gen, turns, "application/pdf")

	stream, err := svc.Start(context.Background(), validRequest())
	require.NoError(t, err)
	var buf bytes.Buffer
	flushes := 0
	require.NoError(t, stream.Pipe(context.Background(), &buf, func() { flushes++ }))

	require.Equal(t, "Hello", buf.String())
	require.Equal(t, 2, flushes)
	require.Len(t, turns.turns, 2)
	require.Equal(t, model.RoleUser, turns.turns[0].Role)
	require.Equal(t, "Vad är svaret?", turns.turns[0].Content)
	require.Equal(t, model.RoleAssistant, turns.turns[1].Role)
	require.Equal(t, "Hello", turns.turns[1].Content)
	require.Equal(t, ai.DefaultModelID, turns.turns[1].ModelID)
	require.Equal(t, "unknown", turns.turns[1].AnonymousUserID)

	require.Equal(t, "gemini-2.5-flash", gen.model)
	require.Len(t, gen.lastReq.History, 2)
	require.Equal(t, ai.RoleModel, gen.lastReq.History[1].Role)
	require.Equal(t, []ai.Part{
		ai.FilePart("files/exam", "application/pdf"),
		ai.TextPart("Vad är svaret?"),
	}, gen.lastReq.Current)
	require.Contains(t, gen.lastReq.SystemInstruction, "HJÄLPSAM OCH FLEXIBEL")
}

func TestChatDegradesPerDocument(t *testing.T) {
	files := &stubResolver{
		uris: map[model.DocumentKind]string{model.DocumentSolution: "files/solution"},
		errs: map[model.DocumentKind]error{model.DocumentExam: filecache.ErrFetch},
	}
	gen := &stubGenerator{chunks: []string{"ok"}}
	svc := NewChatService(files, gen, &memoryTurns{}, "application/pdf")

	req := validRequest()
	req.SolutionURL = "https://x/sol.pdf"
	hint := false
	req.GiveDirectAnswer = &hint
	stream, err := svc.Start(context.Background(), req)
	require.NoError(t, err)
	defer stream.Close()

	require.ElementsMatch(t, []model.DocumentKind{model.DocumentExam, model.DocumentSolution}, files.calls)
	require.Equal(t, []ai.Part{
		ai.FilePart("files/solution", "application/pdf"),
		ai.TextPart("Vad är svaret?"),
	}, gen.lastReq.Current)
	require.Contains(t, gen.lastReq.SystemInstruction, "SOKRATISK METOD")
}

func TestChatStartSurfacesProviderFailure(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"never"}, err: errors.New("quota exceeded"), failAt: 0}
	turns := &memoryTurns{}
	svc := NewChatService(&stubResolver{}, gen, turns, "")

	_, err := svc.Start(context.Background(), validRequest())
	require.ErrorContains(t, err, "quota exceeded")
	// only the inbound user turn was logged
	require.Len(t, turns.turns, 1)
}

func TestChatPipeLogsPartialOnMidStreamFailure(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"Hel", "lo"}, err: context.Canceled, failAt: 1}
	turns := &memoryTurns{}
	svc := NewChatService(&stubResolver{}, gen, turns, "")

	stream, err := svc.Start(context.Background(), validRequest())
	require.NoError(t, err)
	var buf bytes.Buffer
	err = stream.Pipe(context.Background(), &buf, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "Hel", buf.String())
	require.Equal(t, "Hel", turns.turns[len(turns.turns)-1].Content)
}

func TestChatSkipsUserTurnWhenLastIsAssistant(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"x"}}
	turns := &memoryTurns{}
	svc := NewChatService(&stubResolver{}, gen, turns, "")

	req := validRequest()
	req.Messages = req.Messages[:2]
	req.ModelID = "gemini-3-pro"
	stream, err := svc.Start(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, stream.Pipe(context.Background(), &bytes.Buffer{}, nil))
	require.Len(t, turns.turns, 1)
	require.Equal(t, model.RoleAssistant, turns.turns[0].Role)
	require.Equal(t, "gemini-3-pro-preview", gen.model)
}
