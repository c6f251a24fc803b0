package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/liutentor/tentor/internal/metrics"
	"github.com/liutentor/tentor/internal/model"
)

type Sink interface {
	Insert(ctx context.Context, turn model.ChatTurn) error
}

// Logger persists chat turns on a single background worker. LogTurn never
// blocks: when the queue is full the turn is dropped.
type Logger struct {
	sink         Sink
	queue        chan model.ChatTurn
	writeTimeout time.Duration
	done         chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewLogger(sink Sink, queueSize int, writeTimeout time.Duration) *Logger {
	if queueSize <= 0 {
		queueSize = 1
	}
	l := &Logger{
		sink:         sink,
		queue:        make(chan model.ChatTurn, queueSize),
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) LogTurn(ctx context.Context, turn model.ChatTurn) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		logutil.GetLogger(ctx).Warn("audit logger closed, dropping chat turn", zap.String("role", string(turn.Role)))
		return
	}
	select {
	case l.queue <- turn:
	default:
		metrics.AuditDropped.Inc()
		logutil.GetLogger(ctx).Warn("audit queue full, dropping chat turn",
			zap.String("role", string(turn.Role)),
			zap.String("exam_id", turn.ExamID),
		)
	}
}

// Close stops accepting turns and waits until the queue is drained or ctx ends.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain audit queue: %w", ctx.Err())
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for turn := range l.queue {
		l.write(turn)
	}
}

func (l *Logger) write(turn model.ChatTurn) {
	ctx := context.Background()
	if l.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.writeTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.AuditFailed.Inc()
			logutil.GetLogger(ctx).Error("audit sink panicked", zap.Any("panic", r))
		}
	}()
	if err := l.sink.Insert(ctx, turn); err != nil {
		metrics.AuditFailed.Inc()
		logutil.GetLogger(ctx).Error("persist chat turn failed",
			zap.String("role", string(turn.Role)),
			zap.String("exam_id", turn.ExamID),
			zap.Error(err),
		)
	}
}
