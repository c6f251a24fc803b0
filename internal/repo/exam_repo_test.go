package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liutentor/tentor/internal/model"
	appErr "github.com/liutentor/tentor/internal/pkg/errors"
	"github.com/liutentor/tentor/internal/repo"
	"github.com/liutentor/tentor/internal/testutil"
)

func TestExamRepoListAndDetail(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	ctx := context.Background()
	course := fmt.Sprintf("TC%d", time.Now().UnixNano())
	older := testutil.InsertExam(t, conn, course, "LIU", "2023-01-01", "https://example.com/1.pdf")
	newer := testutil.InsertExam(t, conn, course, "LIU", "2023-06-01", "https://example.com/2.pdf")
	testutil.InsertSolution(t, conn, older, "https://example.com/1-sol.pdf")

	exams := repo.NewExamRepo(conn)
	list, err := exams.ListByCourse(ctx, course, model.UniversityLIU)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer, list[0].ID)
	require.False(t, list[0].HasSolution)
	require.True(t, list[1].HasSolution)

	detail, err := exams.GetByID(ctx, older)
	require.NoError(t, err)
	require.Equal(t, course, detail.CourseCode)

	sol, err := exams.FirstSolution(ctx, older)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/1-sol.pdf", sol.PDFURL)

	_, err = exams.FirstSolution(ctx, newer)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestChatLogRepoInsert(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	logs := repo.NewChatLogRepo(conn)
	require.NoError(t, logs.Insert(context.Background(), model.ChatTurn{
		AnonymousUserID: "anon-1",
		CourseCode:      "TDDD27",
		ExamID:          "1",
		Role:            model.RoleUser,
		Content:         "hej",
		ModelID:         "gemini-2.5-flash",
	}))
}
