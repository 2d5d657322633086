package generation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Notify 把状态推送给用户
type Notify func(userID string, st Status)

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry 管理正在监听的任务，每个(用户,任务)一个goroutine
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*job
	wg      sync.WaitGroup
	watcher *Watcher
	notify  Notify
	onAbort func(userID string, err error)
	logger  *zap.Logger
}

// NewRegistry 创建Registry
func NewRegistry(w *Watcher, notify Notify, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		jobs:    make(map[string]*job),
		watcher: w,
		notify:  notify,
		logger:  logger.Named("generation"),
	}
}

// OnAbort 监听因错误中止时回调，在监听goroutine内调用
func (r *Registry) OnAbort(fn func(userID string, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAbort = fn
}

func jobKey(userID, jobID string) string {
	return userID + "/" + jobID
}

// Start 开始监听；已在监听则返回false
// 监听不随请求结束而取消，只受Stop/StopUser/StopAll控制，ctx只用于携带token等值
func (r *Registry) Start(ctx context.Context, userID, jobID string) bool {
	key := jobKey(userID, jobID)

	r.mu.Lock()
	if _, ok := r.jobs[key]; ok {
		r.mu.Unlock()
		return false
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{cancel: cancel, done: make(chan struct{})}
	r.jobs[key] = j
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer close(j.done)
		defer r.remove(key, j)
		defer cancel()

		st, err := r.watcher.Run(runCtx, jobID, func(st Status) { r.notify(userID, st) })
		switch {
		case err == nil:
			r.logger.Info("generation finished", zap.String("job_id", jobID), zap.String("status", st.Status))
		case errors.Is(err, context.Canceled):
			r.logger.Debug("generation watch stopped", zap.String("job_id", jobID))
		default:
			r.logger.Warn("generation watch aborted", zap.String("job_id", jobID), zap.Error(err))
			st.Status = StateStopped
			st.Message = err.Error()
			r.notify(userID, st)
			r.mu.Lock()
			onAbort := r.onAbort
			r.mu.Unlock()
			if onAbort != nil {
				onAbort(userID, err)
			}
		}
	}()
	return true
}

func (r *Registry) remove(key string, j *job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs[key] == j {
		delete(r.jobs, key)
	}
}

// Stop 停止一个监听并等待goroutine退出
func (r *Registry) Stop(userID, jobID string) bool {
	r.mu.Lock()
	j, ok := r.jobs[jobKey(userID, jobID)]
	r.mu.Unlock()
	if !ok {
		return false
	}
	j.cancel()
	<-j.done
	return true
}

// StopUser 停止用户的全部监听（会话清空时调用）
func (r *Registry) StopUser(userID string) int {
	prefix := userID + "/"
	r.mu.Lock()
	var stopping []*job
	for key, j := range r.jobs {
		if strings.HasPrefix(key, prefix) {
			stopping = append(stopping, j)
		}
	}
	r.mu.Unlock()

	for _, j := range stopping {
		j.cancel()
		<-j.done
	}
	return len(stopping)
}

// StopAll 停止全部监听，服务关闭时调用
func (r *Registry) StopAll() {
	r.mu.Lock()
	for _, j := range r.jobs {
		j.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Active 正在监听的任务数
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
