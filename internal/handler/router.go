package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/liutentor/tentor/internal/middleware"
)

type RouterDeps struct {
	Exams            *ExamHandler
	Chat             *ChatHandler
	Health           *HealthHandler
	GeneralLimiter   middleware.Limiter
	ChatLimiter      middleware.Limiter
	ChatMaxBodyBytes int64
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", deps.Health.Check)

	exams := api.Group("/exams")
	exams.Use(middleware.RateLimit("general", deps.GeneralLimiter))
	exams.GET("/:id/:courseCode", deps.Exams.List)
	exams.GET("/:id", deps.Exams.Get)

	api.POST("/chat/completion/:examId",
		middleware.RateLimit("chat", deps.ChatLimiter),
		middleware.BodyLimit(deps.ChatMaxBodyBytes),
		deps.Chat.Completion,
	)
}
