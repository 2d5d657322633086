package service

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-admin/internal/audit"
	"github.com/bitfantasy/nimo-admin/internal/backend"
	"github.com/bitfantasy/nimo-admin/internal/export"
	"github.com/bitfantasy/nimo-admin/internal/generation"
	"github.com/bitfantasy/nimo-admin/internal/session"
	"github.com/bitfantasy/nimo-admin/internal/sse"
	"go.uber.org/zap"
)

var (
	ErrSubmitInProgress       = errors.New("submission in progress")
	ErrInvalidOrderTransition = errors.New("order status transition not allowed")
)

// Deps 服务依赖
type Deps struct {
	Backend    *backend.Client
	Sessions   *session.Store
	Activity   *audit.Repository
	Archive    *export.Archive
	Hub        *sse.Hub
	Generation generation.Options
	Logger     *zap.Logger
}

// Services 服务集合
type Services struct {
	Order      *OrderService
	Production *ProductionService
	Generation *GenerationService
	Session    *SessionService
	Activity   *audit.Repository
}

// NewServices 创建服务集合
func NewServices(d Deps) *Services {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	gen := NewGenerationService(d.Backend, d.Hub, d.Generation, d.Logger)
	sess := NewSessionService(d.Sessions, gen, d.Hub, d.Logger)
	gen.onSessionExpired(func(userID string) {
		sess.Expire(context.Background(), userID)
	})
	return &Services{
		Order:      NewOrderService(d.Backend, d.Sessions, d.Activity, d.Archive, d.Hub, d.Logger),
		Production: NewProductionService(d.Backend, d.Activity, d.Hub, d.Logger),
		Generation: gen,
		Session:    sess,
		Activity:   d.Activity,
	}
}

// SessionService 会话过期处理
type SessionService struct {
	store  *session.Store
	gen    *GenerationService
	hub    *sse.Hub
	logger *zap.Logger
}

func NewSessionService(store *session.Store, gen *GenerationService, hub *sse.Hub, logger *zap.Logger) *SessionService {
	return &SessionService{store: store, gen: gen, hub: hub, logger: logger}
}

// Expire 平台返回401后清空用户的全部会话数据并停止其监听
func (s *SessionService) Expire(ctx context.Context, userID string) {
	n, err := s.store.Clear(ctx, userID)
	if err != nil {
		s.logger.Error("clear session", zap.String("user_id", userID), zap.Error(err))
	}
	stopped := s.gen.StopUser(userID)
	s.hub.Publish(userID, sse.EventSession, map[string]string{"reason": "session expired"})
	s.logger.Info("session expired",
		zap.String("user_id", userID),
		zap.Int("keys_removed", n),
		zap.Int("watchers_stopped", stopped),
	)
}

// Ready 就绪检查
func (s *SessionService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
