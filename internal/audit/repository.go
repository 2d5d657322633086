package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Filter 查询条件，空字段不过滤
type Filter struct {
	EntityType string
	EntityID   string
	OperatorID string
	Page       int
	PageSize   int
}

// Repository 操作日志仓库
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger}
}

// AutoMigrate 建表
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Activity{})
}

// Create 创建操作日志
func (r *Repository) Create(ctx context.Context, a *Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

// List 分页查询，按时间倒序
func (r *Repository) List(ctx context.Context, f Filter) ([]Activity, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 200 {
		f.PageSize = 50
	}

	var items []Activity
	var total int64

	query := r.db.WithContext(ctx).Model(&Activity{})
	if f.EntityType != "" {
		query = query.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		query = query.Where("entity_id = ?", f.EntityID)
	}
	if f.OperatorID != "" {
		query = query.Where("operator_id = ?", f.OperatorID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&items).Error

	return items, total, err
}

// FindByEntity 查询某实体的操作日志
func (r *Repository) FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]Activity, int64, error) {
	return r.List(ctx, Filter{EntityType: entityType, EntityID: entityID, Page: page, PageSize: pageSize})
}

// LogActivity 便捷记录操作日志，失败只记日志不影响主流程
func (r *Repository) LogActivity(ctx context.Context, entityType, entityID, entityCode, action, fromStatus, toStatus, content, operatorID string, metadata JSONB) {
	a := &Activity{
		EntityType: entityType,
		EntityID:   entityID,
		EntityCode: entityCode,
		Action:     action,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Content:    content,
		Metadata:   metadata,
		OperatorID: operatorID,
	}
	if err := r.Create(ctx, a); err != nil {
		r.logger.Warn("record activity",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
