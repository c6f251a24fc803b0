package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liutentor/tentor/internal/model"
	appErr "github.com/liutentor/tentor/internal/pkg/errors"
)

type stubExamStore struct {
	exams     []model.Exam
	listErr   error
	stats     []model.ExamStat
	statsErr  error
	listCalls int
	detail    *model.ExamSummary
	solution  *model.Solution
}

func (s *stubExamStore) ListByCourse(context.Context, string, model.University) ([]model.Exam, error) {
	s.listCalls++
	return append([]model.Exam(nil), s.exams...), s.listErr
}

func (s *stubExamStore) ListStats(context.Context, string) ([]model.ExamStat, error) {
	return s.stats, s.statsErr
}

func (s *stubExamStore) GetByID(context.Context, int64) (*model.ExamSummary, error) {
	if s.detail == nil {
		return nil, appErr.ErrNotFound
	}
	return s.detail, nil
}

func (s *stubExamStore) FirstSolution(context.Context, int64) (*model.Solution, error) {
	if s.solution == nil {
		return nil, appErr.ErrNotFound
	}
	return s.solution, nil
}

func (s *stubExamStore) Ping(context.Context) error { return nil }

func requireHTTP(t *testing.T, err error, status int, message string) {
	t.Helper()
	he, ok := appErr.AsHTTP(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, status, he.Status)
	require.Equal(t, message, he.Message)
}

func TestListExamsMergesStats(t *testing.T) {
	rate := 0.42
	store := &stubExamStore{
		exams: []model.Exam{
			{ID: 2, ExamDate: "2024-06-01"},
			{ID: 1, ExamDate: "2024-01-10"},
		},
		stats: []model.ExamStat{
			{ExamDate: "2024-01-10", Statistics: json.RawMessage(`{"5":3}`), PassRate: &rate, CourseNameSwe: "Analys"},
		},
	}
	svc := NewExamService(store, 8, time.Minute)

	list, err := svc.ListExams(context.Background(), "LIU", "TATA24")
	require.NoError(t, err)
	require.Equal(t, "Analys", list.CourseName)
	require.Nil(t, list.Exams[0].PassRate)
	require.Equal(t, &rate, list.Exams[1].PassRate)

	_, err = svc.ListExams(context.Background(), "LIU", "TATA24")
	require.NoError(t, err)
	require.Equal(t, 1, store.listCalls)
}

func TestListExamsErrors(t *testing.T) {
	svc := NewExamService(&stubExamStore{}, 0, 0)
	_, err := svc.ListExams(context.Background(), "UU", "TATA24")
	requireHTTP(t, err, 400, "Invalid university")

	_, err = svc.ListExams(context.Background(), "LIU", "TATA24")
	requireHTTP(t, err, 404, "No exam documents found for this course")

	svc = NewExamService(&stubExamStore{listErr: errors.New("boom")}, 0, 0)
	_, err = svc.ListExams(context.Background(), "KTH", "SF1625")
	requireHTTP(t, err, 500, "Failed to fetch exams")
}

func TestListExamsStatsFailureDegrades(t *testing.T) {
	store := &stubExamStore{exams: []model.Exam{{ID: 1, ExamDate: "2024-01-10"}}, statsErr: errors.New("timeout")}
	list, err := NewExamService(store, 0, 0).ListExams(context.Background(), "CTH", "TMV170")
	require.NoError(t, err)
	require.Len(t, list.Exams, 1)
	require.Empty(t, list.CourseName)
}

func TestGetExam(t *testing.T) {
	store := &stubExamStore{}
	svc := NewExamService(store, 0, 0)
	for _, raw := range []string{"abc", "0", "-3", "1.5", ""} {
		_, err := svc.GetExam(context.Background(), raw)
		requireHTTP(t, err, 400, "examId must be a positive integer")
	}

	_, err := svc.GetExam(context.Background(), "7")
	requireHTTP(t, err, 404, "Exam not found")

	store.detail = &model.ExamSummary{ID: 7, CourseCode: "TATA24"}
	detail, err := svc.GetExam(context.Background(), "7")
	require.NoError(t, err)
	require.Nil(t, detail.Solution)

	store.solution = &model.Solution{ID: 1, ExamID: 7, PDFURL: "https://x/s.pdf"}
	detail, err = svc.GetExam(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, int64(1), detail.Solution.ID)
}
