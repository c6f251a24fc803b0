package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/liutentor/tentor/internal/model"
	"github.com/liutentor/tentor/internal/pkg/dbutil"
	appErr "github.com/liutentor/tentor/internal/pkg/errors"
)

type ExamRepo struct {
	db *sql.DB
}

func NewExamRepo(db *sql.DB) *ExamRepo {
	return &ExamRepo{db: db}
}

func (r *ExamRepo) ListByCourse(ctx context.Context, courseCode string, university model.University) ([]model.Exam, error) {
	const query = `
		SELECT e.id, e.course_code, e.exam_date, e.pdf_url, e.exam_name,
			EXISTS (SELECT 1 FROM solutions s WHERE s.exam_id = e.id) AS has_solution
		FROM exams e
		WHERE e.course_code = $1 AND e.university = $2
		ORDER BY e.exam_date DESC
	`
	rows, err := r.db.QueryContext(ctx, query, courseCode, string(university))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	exams := make([]model.Exam, 0)
	for rows.Next() {
		var exam model.Exam
		if err := rows.Scan(&exam.ID, &exam.CourseCode, &exam.ExamDate, &exam.PDFURL, &exam.ExamName, &exam.HasSolution); err != nil {
			return nil, err
		}
		exams = append(exams, exam)
	}
	return exams, rows.Err()
}

func (r *ExamRepo) ListStats(ctx context.Context, courseCode string) ([]model.ExamStat, error) {
	where := map[string]interface{}{"course_code": courseCode}
	sqlStr, args, err := builder.BuildSelect("exam_stats", where, []string{"exam_date", "statistics", "pass_rate", "course_name_swe"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	stats := make([]model.ExamStat, 0)
	for rows.Next() {
		var (
			stat       model.ExamStat
			statistics []byte
			passRate   sql.NullFloat64
			courseName sql.NullString
		)
		if err := rows.Scan(&stat.ExamDate, &statistics, &passRate, &courseName); err != nil {
			return nil, err
		}
		if len(statistics) > 0 {
			stat.Statistics = append([]byte(nil), statistics...)
		}
		if passRate.Valid {
			v := passRate.Float64
			stat.PassRate = &v
		}
		stat.CourseNameSwe = courseName.String
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

func (r *ExamRepo) GetByID(ctx context.Context, examID int64) (*model.ExamSummary, error) {
	where := map[string]interface{}{"id": examID}
	sqlStr, args, err := builder.BuildSelect("exams", where, []string{"id", "course_code", "exam_date", "pdf_url"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var exam model.ExamSummary
	if err := rows.Scan(&exam.ID, &exam.CourseCode, &exam.ExamDate, &exam.PDFURL); err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamRepo) FirstSolution(ctx context.Context, examID int64) (*model.Solution, error) {
	where := map[string]interface{}{
		"exam_id":  examID,
		"_orderby": "id asc",
		"_limit":   []uint{0, 1},
	}
	sqlStr, args, err := builder.BuildSelect("solutions", where, []string{"id", "exam_id", "pdf_url"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var solution model.Solution
	if err := rows.Scan(&solution.ID, &solution.ExamID, &solution.PDFURL); err != nil {
		return nil, err
	}
	return &solution, nil
}

func (r *ExamRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
