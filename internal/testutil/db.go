package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/liutentor/tentor/internal/config"
	"github.com/liutentor/tentor/internal/db"
)

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "tentor",
		Password: "tentor_pass",
		DBName:   "tentor_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// InsertExam seeds one exam row and returns its id.
func InsertExam(t *testing.T, conn *sql.DB, courseCode, university, examDate, pdfURL string) int64 {
	t.Helper()
	var id int64
	err := conn.QueryRow(
		`INSERT INTO exams (course_code, university, exam_date, exam_name, pdf_url) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		courseCode, university, examDate, "Exam "+examDate, pdfURL,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert exam: %v", err)
	}
	return id
}

func InsertSolution(t *testing.T, conn *sql.DB, examID int64, pdfURL string) int64 {
	t.Helper()
	var id int64
	err := conn.QueryRow(`INSERT INTO solutions (exam_id, pdf_url) VALUES ($1, $2) RETURNING id`, examID, pdfURL).Scan(&id)
	if err != nil {
		t.Fatalf("insert solution: %v", err)
	}
	return id
}
