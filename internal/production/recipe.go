package production

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-admin/internal/validation"
)

var ErrLastRow = errors.New("at least one row must remain")

const (
	msgNoMaterials   = "At least one material must be specified"
	msgNoOutputItems = "At least one output item must be specified with product, size and a positive quantity"
)

// OutputItem 配方产出
type OutputItem struct {
	Product        string  `json:"product"`
	SubItem        string  `json:"subItem,omitempty"`
	Size           string  `json:"size"`
	OutputQuantity float64 `json:"outputQuantity"`
}

// MaterialUse 物料用量（配方投料 / 批次耗用）
type MaterialUse struct {
	Material string  `json:"material"`
	Quantity float64 `json:"quantity"`
}

// Recipe 配方：生产一次产出 OutputItems 所消耗的物料
type Recipe struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	OutputItems []OutputItem  `json:"outputItems"`
	Materials   []MaterialUse `json:"materials"`
	CreatedAt   *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time    `json:"updatedAt,omitempty"`
}

// OutputItemInput 表单中的产出行，数值保留输入原文
type OutputItemInput struct {
	Product        string `json:"product"`
	SubItem        string `json:"subItem"`
	Size           string `json:"size"`
	OutputQuantity string `json:"outputQuantity"`
}

// MaterialInput 表单中的物料行
type MaterialInput struct {
	Material string `json:"material"`
	Quantity string `json:"quantity"`
}

// RecipeForm 配方表单
type RecipeForm struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	OutputItems []OutputItemInput `json:"outputItems"`
	Materials   []MaterialInput   `json:"materials"`
}

// RecipePayload 提交给服务端的配方
type RecipePayload struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	OutputItems []OutputItem  `json:"outputItems"`
	Materials   []MaterialUse `json:"materials"`
}

// RemoveMaterial 删除物料行，至少保留一行
func (f *RecipeForm) RemoveMaterial(i int) error {
	rows, err := removeRow(f.Materials, i)
	if err != nil {
		return err
	}
	f.Materials = rows
	return nil
}

// RemoveOutputItem 删除产出行，至少保留一行
func (f *RecipeForm) RemoveOutputItem(i int) error {
	rows, err := removeRow(f.OutputItems, i)
	if err != nil {
		return err
	}
	f.OutputItems = rows
	return nil
}

// ValidateRecipeSubmission 过滤无效行并校验配方
// 物料行需选择物料且数量>0；产出行需有产品、规格且数量为正
func ValidateRecipeSubmission(form RecipeForm) (RecipePayload, error) {
	if err := validation.Required("name", form.Name); err != nil {
		return RecipePayload{}, err
	}

	materials := filterMaterials(form.Materials)
	if len(materials) == 0 {
		return RecipePayload{}, validation.Fail("materials", msgNoMaterials)
	}

	var outputs []OutputItem
	for _, in := range form.OutputItems {
		if strings.TrimSpace(in.Product) == "" || strings.TrimSpace(in.Size) == "" {
			continue
		}
		qty, ok := positive(in.OutputQuantity)
		if !ok {
			continue
		}
		outputs = append(outputs, OutputItem{
			Product:        in.Product,
			SubItem:        strings.TrimSpace(in.SubItem),
			Size:           in.Size,
			OutputQuantity: qty,
		})
	}
	if len(outputs) == 0 {
		return RecipePayload{}, validation.Fail("outputItems", msgNoOutputItems)
	}

	return RecipePayload{
		Name:        strings.TrimSpace(form.Name),
		Description: form.Description,
		OutputItems: outputs,
		Materials:   materials,
	}, nil
}

func filterMaterials(in []MaterialInput) []MaterialUse {
	var out []MaterialUse
	for _, m := range in {
		if strings.TrimSpace(m.Material) == "" {
			continue
		}
		qty, ok := positive(m.Quantity)
		if !ok {
			continue
		}
		out = append(out, MaterialUse{Material: m.Material, Quantity: qty})
	}
	return out
}

// positive 解析正数，空串、非法值、NaN/Inf、0和负数都视为无效
func positive(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

func removeRow[T any](rows []T, i int) ([]T, error) {
	if i < 0 || i >= len(rows) {
		return rows, fmt.Errorf("row %d out of range", i)
	}
	if len(rows) <= 1 {
		return rows, ErrLastRow
	}
	return append(rows[:i:i], rows[i+1:]...), nil
}
