package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/liutentor/tentor/internal/pkg/response"
	"github.com/liutentor/tentor/internal/service"
)

type ExamHandler struct {
	exams *service.ExamService
}

func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// List serves /exams/:university/:courseCode. The first segment shares its
// name with the detail route.
func (h *ExamHandler) List(c *gin.Context) {
	result, err := h.exams.ListExams(c.Request.Context(), c.Param("id"), c.Param("courseCode"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result, "Exams fetched successfully")
}

func (h *ExamHandler) Get(c *gin.Context) {
	result, err := h.exams.GetExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result, "Exam fetched successfully")
}
