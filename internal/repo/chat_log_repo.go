package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/liutentor/tentor/internal/model"
	"github.com/liutentor/tentor/internal/pkg/dbutil"
)

type ChatLogRepo struct {
	db *sql.DB
}

func NewChatLogRepo(db *sql.DB) *ChatLogRepo {
	return &ChatLogRepo{db: db}
}

func (r *ChatLogRepo) Insert(ctx context.Context, turn model.ChatTurn) error {
	data := map[string]interface{}{
		"anonymous_user_id": turn.AnonymousUserID,
		"course_code":       turn.CourseCode,
		"exam_id":           turn.ExamID,
		"role":              string(turn.Role),
		"content":           turn.Content,
		"model":             turn.ModelID,
	}
	sqlStr, args, err := builder.BuildInsert("ai_chat_logs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
