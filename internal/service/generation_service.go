package service

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-admin/internal/backend"
	"github.com/bitfantasy/nimo-admin/internal/generation"
	"github.com/bitfantasy/nimo-admin/internal/sse"
	"go.uber.org/zap"
)

// GenerationService 批量选题生成进度推送
type GenerationService struct {
	registry *generation.Registry
}

func NewGenerationService(client *backend.Client, hub *sse.Hub, opts generation.Options, logger *zap.Logger) *GenerationService {
	source := generation.SourceFunc(func(ctx context.Context, jobID string) (generation.Status, error) {
		st, err := client.GetGenerationStatus(ctx, jobID)
		if err != nil {
			return generation.Status{}, err
		}
		return generation.Status{
			JobID:     st.JobID,
			Status:    st.Status,
			Total:     st.Total,
			Completed: st.Completed,
			Message:   st.Message,
		}, nil
	})
	opts.IsFatal = func(err error) bool {
		return errors.Is(err, backend.ErrSessionExpired)
	}
	notify := func(userID string, st generation.Status) {
		hub.Publish(userID, sse.EventGeneration, st)
	}
	watcher := generation.NewWatcher(source, opts, logger)
	return &GenerationService{registry: generation.NewRegistry(watcher, notify, logger)}
}

// onSessionExpired 监听遇到401时回调
// 回调在监听goroutine内执行，清理会话需另起goroutine，否则StopUser会等待自身退出
func (s *GenerationService) onSessionExpired(fn func(userID string)) {
	s.registry.OnAbort(func(userID string, err error) {
		if errors.Is(err, backend.ErrSessionExpired) {
			go fn(userID)
		}
	})
}

// Watch 开始监听任务；ctx 需携带用户token
func (s *GenerationService) Watch(ctx context.Context, userID, jobID string) bool {
	return s.registry.Start(ctx, userID, jobID)
}

// Unwatch 停止监听
func (s *GenerationService) Unwatch(userID, jobID string) bool {
	return s.registry.Stop(userID, jobID)
}

// StopUser 停止用户的全部监听
func (s *GenerationService) StopUser(userID string) int {
	return s.registry.StopUser(userID)
}

// Active 正在监听的任务数
func (s *GenerationService) Active() int {
	return s.registry.Active()
}

// Shutdown 服务关闭时停止全部监听
func (s *GenerationService) Shutdown() {
	s.registry.StopAll()
}
