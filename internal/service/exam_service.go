package service

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/liutentor/tentor/internal/model"
	appErr "github.com/liutentor/tentor/internal/pkg/errors"
)

type ExamStore interface {
	ListByCourse(ctx context.Context, courseCode string, university model.University) ([]model.Exam, error)
	ListStats(ctx context.Context, courseCode string) ([]model.ExamStat, error)
	GetByID(ctx context.Context, examID int64) (*model.ExamSummary, error)
	FirstSolution(ctx context.Context, examID int64) (*model.Solution, error)
	Ping(ctx context.Context) error
}

type ExamService struct {
	exams ExamStore
	lists *expirable.LRU[string, *model.ExamList]
}

func NewExamService(exams ExamStore, cacheSize int, ttl time.Duration) *ExamService {
	s := &ExamService{exams: exams}
	if cacheSize > 0 {
		s.lists = expirable.NewLRU[string, *model.ExamList](cacheSize, nil, ttl)
	}
	return s
}

// ListExams returns a course's exams newest first, merged with any published
// statistics. Statistics are optional: a failed lookup only costs the stats.
func (s *ExamService) ListExams(ctx context.Context, university, courseCode string) (*model.ExamList, error) {
	if courseCode == "" {
		return nil, appErr.BadRequest("Missing courseCode")
	}
	if university == "" {
		return nil, appErr.BadRequest("Missing university")
	}
	uni := model.University(university)
	if !uni.Valid() {
		return nil, appErr.BadRequest("Invalid university")
	}
	key := university + "/" + courseCode
	if s.lists != nil {
		if cached, ok := s.lists.Get(key); ok {
			return cached, nil
		}
	}

	logger := logutil.GetLogger(ctx).With(zap.String("course_code", courseCode), zap.String("university", university))
	exams, err := s.exams.ListByCourse(ctx, courseCode, uni)
	if err != nil {
		logger.Error("list exams failed", zap.Error(err))
		return nil, appErr.HTTP(http.StatusInternalServerError, "Failed to fetch exams")
	}
	if len(exams) == 0 {
		return nil, appErr.NotFound("No exam documents found for this course")
	}

	result := &model.ExamList{CourseCode: courseCode, Exams: exams}
	stats, err := s.exams.ListStats(ctx, courseCode)
	if err != nil {
		logger.Warn("list exam stats failed, continuing without stats", zap.Error(err))
	}
	byDate := make(map[string]model.ExamStat, len(stats))
	for _, st := range stats {
		byDate[st.ExamDate] = st
		if st.CourseNameSwe != "" {
			result.CourseName = st.CourseNameSwe
		}
	}
	for i := range result.Exams {
		if st, ok := byDate[result.Exams[i].ExamDate]; ok {
			result.Exams[i].Statistics = st.Statistics
			result.Exams[i].PassRate = st.PassRate
		}
	}
	if s.lists != nil {
		s.lists.Add(key, result)
	}
	return result, nil
}

func (s *ExamService) GetExam(ctx context.Context, rawID string) (*model.ExamDetail, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id <= 0 {
		return nil, appErr.BadRequest("examId must be a positive integer")
	}
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.NotFound("Exam not found")
		}
		return nil, err
	}
	detail := &model.ExamDetail{Exam: *exam}
	solution, err := s.exams.FirstSolution(ctx, id)
	switch {
	case err == nil:
		detail.Solution = solution
	case !appErr.IsNotFound(err):
		return nil, err
	}
	return detail, nil
}

// Ping reports whether the backing store is reachable.
func (s *ExamService) Ping(ctx context.Context) error {
	return s.exams.Ping(ctx)
}
