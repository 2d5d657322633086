package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 实体类型
const (
	EntityOrder  = "order"
	EntityRecipe = "recipe"
	EntityBatch  = "batch"
)

// 操作类型
const (
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionStatusChange = "status_change"
	ActionRejected     = "rejected"
	ActionExport       = "export"
)

// JSONB 任意JSON对象
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
}

// Activity 后台操作日志
type Activity struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_admin_activity_entity"` // order/recipe/batch
	EntityID   string `json:"entity_id" gorm:"size:64;not null;index:idx_admin_activity_entity"`
	EntityCode string `json:"entity_code" gorm:"size:50"`

	Action     string `json:"action" gorm:"size:50;not null"`
	FromStatus string `json:"from_status" gorm:"size:20"`
	ToStatus   string `json:"to_status" gorm:"size:20"`

	Content  string `json:"content" gorm:"type:text"`
	Metadata JSONB  `json:"metadata" gorm:"type:jsonb"`

	OperatorID string    `json:"operator_id" gorm:"size:64;index"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

func (Activity) TableName() string {
	return "admin_activity_logs"
}
