package production

import (
	"math"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-admin/internal/validation"
)

// ScaleRequest 按配方放大创建批次的请求，数量的乘法由服务端完成
type ScaleRequest struct {
	RecipeID    string  `json:"recipeId"`
	ScaleFactor float64 `json:"scaleFactor"`
	StartDate   string  `json:"startDate"`
	CreatedBy   string  `json:"createdBy"`
}

// ScaleRecipe 收集并校验放大参数
// scaleFactor 为空时默认 1，必须为正数；startDate 格式 YYYY-MM-DD
func ScaleRecipe(recipeID, scaleFactor, startDate, createdBy string) (ScaleRequest, error) {
	if err := validation.Required("recipeId", recipeID); err != nil {
		return ScaleRequest{}, err
	}

	factor := 1.0
	if s := strings.TrimSpace(scaleFactor); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return ScaleRequest{}, validation.Fail("scaleFactor", "must be a number")
		}
		if v <= 0 {
			return ScaleRequest{}, validation.Fail("scaleFactor", "must be greater than 0")
		}
		factor = v
	}

	date, err := parseDate("startDate", startDate)
	if err != nil {
		return ScaleRequest{}, err
	}

	return ScaleRequest{
		RecipeID:    strings.TrimSpace(recipeID),
		ScaleFactor: factor,
		StartDate:   date,
		CreatedBy:   createdBy,
	}, nil
}
