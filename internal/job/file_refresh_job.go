package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/liutentor/tentor/internal/model"
)

type ExpiringLister interface {
	ListExpiring(ctx context.Context, kind model.DocumentKind, before time.Time, limit uint) ([]model.CachedFile, error)
}

type Refresher interface {
	Refresh(ctx context.Context, record *model.CachedFile) (string, error)
}

// FileRefreshJob re-uploads provider files that expire within the window so
// chat requests keep hitting a fresh uri. Records never uploaded are left to
// the first chat request that needs them.
type FileRefreshJob struct {
	files     ExpiringLister
	refresher Refresher
	window    time.Duration
	batch     uint
	now       func() time.Time
}

func NewFileRefreshJob(files ExpiringLister, refresher Refresher, window time.Duration, batch int) *FileRefreshJob {
	if batch <= 0 {
		batch = 20
	}
	return &FileRefreshJob{files: files, refresher: refresher, window: window, batch: uint(batch), now: time.Now}
}

func (j *FileRefreshJob) Name() string {
	return "file_refresh"
}

func (j *FileRefreshJob) Run(ctx context.Context) error {
	if j.files == nil || j.refresher == nil {
		return nil
	}
	before := j.now().Add(j.window)
	for _, kind := range []model.DocumentKind{model.DocumentExam, model.DocumentSolution} {
		records, err := j.files.ListExpiring(ctx, kind, before, j.batch)
		if err != nil {
			return err
		}
		refreshed := 0
		for i := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := j.refresher.Refresh(ctx, &records[i]); err != nil {
				logutil.GetLogger(ctx).Warn("refresh provider file failed",
					zap.String("kind", string(kind)),
					zap.Int64("record_id", records[i].ID),
					zap.Error(err),
				)
				continue
			}
			refreshed++
		}
		logutil.GetLogger(ctx).Info("provider files refreshed",
			zap.String("kind", string(kind)),
			zap.Int("candidates", len(records)),
			zap.Int("refreshed", refreshed),
		)
	}
	return nil
}
