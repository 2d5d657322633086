package order

import (
	"math"
	"strconv"
	"strings"
)

// Num 数值型表单字段
// 保留用户输入的原文，空串表示未填写；参与计算时未填写或无法解析按0处理
type Num string

// NumOf 将计算结果写回字段，使用最短表示（100、3、2.5）
func NumOf(v float64) Num {
	return Num(strconv.FormatFloat(v, 'f', -1, 64))
}

// Value 返回数值以及是否已填写
func (n Num) Value() (float64, bool) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Float 计算视图，未填写为0
func (n Num) Float() float64 {
	v, _ := n.Value()
	return v
}

// IsSet 是否已填写有效数值
func (n Num) IsSet() bool {
	_, ok := n.Value()
	return ok
}

func (n Num) String() string {
	return string(n)
}
