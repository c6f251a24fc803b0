package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/liutentor/tentor/internal/model"
	"github.com/liutentor/tentor/internal/pkg/dbutil"
	appErr "github.com/liutentor/tentor/internal/pkg/errors"
)

var cachedFileFields = []string{"id", "pdf_url", "google_file_uri", "google_file_expires_at"}

// CachedFileRepo reads and writes the provider file columns that live on the
// exams and solutions tables.
type CachedFileRepo struct {
	db *sql.DB
}

func NewCachedFileRepo(db *sql.DB) *CachedFileRepo {
	return &CachedFileRepo{db: db}
}

func tableFor(kind model.DocumentKind) (string, error) {
	switch kind {
	case model.DocumentExam:
		return "exams", nil
	case model.DocumentSolution:
		return "solutions", nil
	default:
		return "", fmt.Errorf("unknown document kind: %s", kind)
	}
}

// Get finds the record for an exam by id, or for a solution by owning exam id
// and source url.
func (r *CachedFileRepo) Get(ctx context.Context, kind model.DocumentKind, examID string, sourceURL string) (*model.CachedFile, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(examID, 10, 64)
	if err != nil {
		return nil, appErr.ErrNotFound
	}
	where := map[string]interface{}{"_limit": []uint{0, 1}}
	if kind == model.DocumentExam {
		where["id"] = id
	} else {
		where["exam_id"] = id
		where["pdf_url"] = sourceURL
	}
	sqlStr, args, err := builder.BuildSelect(table, where, cachedFileFields)
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
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	file, err := scanCachedFile(rows, kind)
	if err != nil {
		return nil, err
	}
	file.OwnerID = examID
	return file, nil
}

func (r *CachedFileRepo) UpdateProviderFile(ctx context.Context, kind model.DocumentKind, id int64, uri string, expiresAt time.Time) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	where := map[string]interface{}{"id": id}
	update := map[string]interface{}{
		"google_file_uri":        uri,
		"google_file_expires_at": expiresAt.UTC(),
	}
	sqlStr, args, err := builder.BuildUpdate(table, where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ListExpiring returns cached records whose provider uri expires before the
// given instant, soonest first.
func (r *CachedFileRepo) ListExpiring(ctx context.Context, kind model.DocumentKind, before time.Time, limit uint) ([]model.CachedFile, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	fields := cachedFileFields
	if kind == model.DocumentSolution {
		fields = append(append([]string(nil), cachedFileFields...), "exam_id")
	}
	where := map[string]interface{}{
		"google_file_uri":          builder.IsNotNull,
		"google_file_expires_at <": before.UTC(),
		"_orderby":                 "google_file_expires_at asc",
		"_limit":                   []uint{0, limit},
	}
	sqlStr, args, err := builder.BuildSelect(table, where, fields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	files := make([]model.CachedFile, 0)
	for rows.Next() {
		var (
			file    *model.CachedFile
			scanErr error
		)
		if kind == model.DocumentSolution {
			var examID int64
			file, scanErr = scanCachedFile(rows, kind, &examID)
			if scanErr == nil {
				file.OwnerID = strconv.FormatInt(examID, 10)
			}
		} else {
			file, scanErr = scanCachedFile(rows, kind)
			if scanErr == nil {
				file.OwnerID = strconv.FormatInt(file.ID, 10)
			}
		}
		if scanErr != nil {
			return nil, scanErr
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

func scanCachedFile(rows *sql.Rows, kind model.DocumentKind, extra ...interface{}) (*model.CachedFile, error) {
	var (
		file      model.CachedFile
		uri       sql.NullString
		expiresAt sql.NullTime
	)
	dest := append([]interface{}{&file.ID, &file.SourceURL, &uri, &expiresAt}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	file.Kind = kind
	file.ProviderFileURI = uri.String
	if expiresAt.Valid {
		t := expiresAt.Time
		file.ProviderFileExpiresAt = &t
	}
	return &file, nil
}
