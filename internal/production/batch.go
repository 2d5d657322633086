package production

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-admin/internal/validation"
)

// 批次状态
const (
	StatusPlanned    = "planned"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var (
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrNotDeletable      = errors.New("batch can no longer be deleted")
	ErrUnknownStatus     = errors.New("unknown batch status")
)

const msgNoBatchItems = "At least one batch item must be specified with product, size and a positive quantity"

var transitions = map[string][]string{
	StatusPlanned:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
}

// BatchItem 批次产出
type BatchItem struct {
	Product  string  `json:"product"`
	SubItem  string  `json:"subItem,omitempty"`
	Size     string  `json:"size"`
	Quantity float64 `json:"quantity"`
}

// Batch 生产批次
type Batch struct {
	ID             string        `json:"id"`
	BatchNumber    string        `json:"batchNumber"`
	Recipe         *Recipe       `json:"recipe,omitempty"`
	Items          []BatchItem   `json:"items"`
	MaterialsUsed  []MaterialUse `json:"materialsUsed"`
	Status         string        `json:"status"`
	StartDate      *time.Time    `json:"startDate,omitempty"`
	CompletionDate *time.Time    `json:"completionDate,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	CreatedBy      string        `json:"createdBy,omitempty"`
}

// BatchItemInput 批次表单中的产出行
type BatchItemInput struct {
	Product  string `json:"product"`
	SubItem  string `json:"subItem"`
	Size     string `json:"size"`
	Quantity string `json:"quantity"`
}

// BatchForm 手工创建批次的表单
type BatchForm struct {
	Items         []BatchItemInput `json:"items"`
	MaterialsUsed []MaterialInput  `json:"materialsUsed"`
	StartDate     string           `json:"startDate"`
	Notes         string           `json:"notes"`
}

// BatchPayload 提交给服务端的批次
type BatchPayload struct {
	Items         []BatchItem   `json:"items"`
	MaterialsUsed []MaterialUse `json:"materialsUsed"`
	Status        string        `json:"status"`
	StartDate     string        `json:"startDate"`
	Notes         string        `json:"notes,omitempty"`
	CreatedBy     string        `json:"createdBy"`
}

// RemoveItem 删除产出行，至少保留一行
func (f *BatchForm) RemoveItem(i int) error {
	rows, err := removeRow(f.Items, i)
	if err != nil {
		return err
	}
	f.Items = rows
	return nil
}

// RemoveMaterial 删除物料行，至少保留一行
func (f *BatchForm) RemoveMaterial(i int) error {
	rows, err := removeRow(f.MaterialsUsed, i)
	if err != nil {
		return err
	}
	f.MaterialsUsed = rows
	return nil
}

// ValidateBatchSubmission 校验手工批次
// items 与 materialsUsed 各自按自己的规则过滤，只提交过滤后的行
func ValidateBatchSubmission(form BatchForm, createdBy string) (BatchPayload, error) {
	var items []BatchItem
	for _, in := range form.Items {
		if strings.TrimSpace(in.Product) == "" || strings.TrimSpace(in.Size) == "" {
			continue
		}
		qty, ok := positive(in.Quantity)
		if !ok {
			continue
		}
		items = append(items, BatchItem{
			Product:  in.Product,
			SubItem:  strings.TrimSpace(in.SubItem),
			Size:     in.Size,
			Quantity: qty,
		})
	}
	if len(items) == 0 {
		return BatchPayload{}, validation.Fail("items", msgNoBatchItems)
	}

	materials := filterMaterials(form.MaterialsUsed)
	if len(materials) == 0 {
		return BatchPayload{}, validation.Fail("materialsUsed", msgNoMaterials)
	}

	startDate, err := parseDate("startDate", form.StartDate)
	if err != nil {
		return BatchPayload{}, err
	}

	return BatchPayload{
		Items:         items,
		MaterialsUsed: materials,
		Status:        StatusPlanned,
		StartDate:     startDate,
		Notes:         form.Notes,
		CreatedBy:     createdBy,
	}, nil
}

// IsKnownStatus 是否为合法批次状态
func IsKnownStatus(status string) bool {
	_, ok := transitions[status]
	return ok
}

// IsTerminal completed 和 cancelled 为终态
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// Deletable 终态批次不能删除
func Deletable(status string) bool {
	return IsKnownStatus(status) && !IsTerminal(status)
}

// NextStatuses 当前状态可迁移到的状态，用于渲染操作按钮
func NextStatuses(status string) []string {
	next := transitions[status]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// CanTransition 校验状态迁移
func CanTransition(from, to string) error {
	if !IsKnownStatus(from) {
		return fmt.Errorf("%q: %w", from, ErrUnknownStatus)
	}
	if !IsKnownStatus(to) {
		return fmt.Errorf("%q: %w", to, ErrUnknownStatus)
	}
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
}

func parseDate(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", validation.Fail(field, "required")
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", validation.Fail(field, "must be a date in YYYY-MM-DD format")
	}
	return s, nil
}
