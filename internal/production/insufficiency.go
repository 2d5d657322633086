package production

import (
	"fmt"
	"strconv"
)

// FallbackInsufficiency 服务端未返回结构化明细时使用
const FallbackInsufficiency = "Insufficient materials to update batch status"

// InsufficientMaterial 库存不足明细
type InsufficientMaterial struct {
	Name      string  `json:"name"`
	Required  float64 `json:"required"`
	Available float64 `json:"available"`
	Unit      string  `json:"unit"`
}

// String 单条明细，例如 "Flour: required 12 kg, available 4.5 kg"
func (m InsufficientMaterial) String() string {
	return fmt.Sprintf("%s: required %s %s, available %s %s",
		m.Name, formatQty(m.Required), m.Unit, formatQty(m.Available), m.Unit)
}

// RenderInsufficiency 每个物料一行，不合并
func RenderInsufficiency(materials []InsufficientMaterial) []string {
	if len(materials) == 0 {
		return []string{FallbackInsufficiency}
	}
	lines := make([]string, 0, len(materials))
	for _, m := range materials {
		lines = append(lines, m.String())
	}
	return lines
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
