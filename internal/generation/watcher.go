package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// 任务状态
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
	// StateStopped 监听在任务结束前中止（会话过期、连续查询失败）
	StateStopped = "stopped"
)

const (
	DefaultInterval  = 2 * time.Second
	DefaultMaxErrors = 3
)

var ErrTooManyFailures = errors.New("generation status polling failed repeatedly")

// Status 生成任务进度
type Status struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Message   string `json:"message,omitempty"`
}

// Terminal completed 和 failed 为终态
func (s Status) Terminal() bool {
	return s.Status == StateCompleted || s.Status == StateFailed
}

// Source 查询任务状态
type Source interface {
	Status(ctx context.Context, jobID string) (Status, error)
}

// SourceFunc 函数适配器
type SourceFunc func(ctx context.Context, jobID string) (Status, error)

func (f SourceFunc) Status(ctx context.Context, jobID string) (Status, error) {
	return f(ctx, jobID)
}

// Options 监听参数
type Options struct {
	Interval  time.Duration
	MaxErrors int
	// IsFatal 返回true的错误立即停止监听，不再重试
	IsFatal func(error) bool
}

// Watcher 按固定间隔轮询一个任务直到终态
type Watcher struct {
	source    Source
	interval  time.Duration
	maxErrors int
	isFatal   func(error) bool
	logger    *zap.Logger
}

// NewWatcher 创建Watcher
func NewWatcher(source Source, opts Options, logger *zap.Logger) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}
	if opts.IsFatal == nil {
		opts.IsFatal = func(error) bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		source:    source,
		interval:  opts.Interval,
		maxErrors: opts.MaxErrors,
		isFatal:   opts.IsFatal,
		logger:    logger,
	}
}

// Run 立即查询一次，之后每个interval查询一次
// 每次观察到的状态都交给publish；到达终态返回nil
func (w *Watcher) Run(ctx context.Context, jobID string, publish func(Status)) (Status, error) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		last     = Status{JobID: jobID, Status: StatePending}
		failures int
	)
	for {
		st, err := w.source.Status(ctx, jobID)
		switch {
		case err == nil:
			failures = 0
			if st.JobID == "" {
				st.JobID = jobID
			}
			last = st
			publish(st)
			if st.Terminal() {
				return st, nil
			}
		case ctx.Err() != nil:
			return last, ctx.Err()
		case w.isFatal(err):
			return last, err
		default:
			failures++
			w.logger.Warn("poll generation status",
				zap.String("job_id", jobID),
				zap.Int("failures", failures),
				zap.Error(err),
			)
			if failures >= w.maxErrors {
				return last, fmt.Errorf("%w: %v", ErrTooManyFailures, err)
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
