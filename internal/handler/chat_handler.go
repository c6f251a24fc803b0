package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/liutentor/tentor/internal/model"
	"github.com/liutentor/tentor/internal/pkg/response"
	"github.com/liutentor/tentor/internal/service"
)

var examIDPattern = regexp.MustCompile(`^\d+$`)

type ChatHandler struct {
	chat    *service.ChatService
	timeout time.Duration
}

func NewChatHandler(chat *service.ChatService, timeout time.Duration) *ChatHandler {
	return &ChatHandler{chat: chat, timeout: timeout}
}

type chatRequest struct {
	Messages         []model.ConversationMessage `json:"messages" binding:"max=100,dive"`
	GiveDirectAnswer *bool                       `json:"giveDirectAnswer"`
	ExamURL          string                      `json:"examUrl" binding:"omitempty,url"`
	SolutionURL      string                      `json:"solutionUrl" binding:"omitempty,url"`
	CourseCode       string                      `json:"courseCode"`
	ModelID          string                      `json:"modelId"`
}

func (h *ChatHandler) Completion(c *gin.Context) {
	examID := c.Param("examId")
	if examID == "" {
		response.Fail(c, http.StatusBadRequest, "Exam ID is required")
		return
	}
	if !examIDPattern.MatchString(examID) {
		response.Fail(c, http.StatusBadRequest, "Exam ID must be a number")
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		response.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	for i, m := range req.Messages {
		if err := m.Content.Validate(); err != nil {
			response.Fail(c, http.StatusBadRequest, fmt.Sprintf("messages[%d]: %v", i, err))
			return
		}
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	stream, err := h.chat.Start(ctx, &service.ChatRequest{
		ExamID:           examID,
		AnonymousUserID:  c.GetHeader("x-anonymous-user-id"),
		Messages:         req.Messages,
		GiveDirectAnswer: req.GiveDirectAnswer,
		ExamURL:          req.ExamURL,
		SolutionURL:      req.SolutionURL,
		CourseCode:       req.CourseCode,
		ModelID:          req.ModelID,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)
	if err := stream.Pipe(ctx, c.Writer, c.Writer.Flush); err != nil {
		// headers are gone; what the client already received stays valid
		logutil.GetLogger(ctx).Warn("chat stream interrupted", zap.String("exam_id", examID), zap.Error(err))
	}
}
