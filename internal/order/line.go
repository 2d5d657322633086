package order

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Field 订单行可编辑字段
type Field string

const (
	FieldMaterial      Field = "material"
	FieldOrderByBox    Field = "orderByBox"
	FieldIsPricePerBox Field = "isPricePerBox"
	FieldUnitsPerBox   Field = "unitsPerBox"
	FieldBoxQuantity   Field = "boxQuantity"
	FieldQuantity      Field = "quantity"
	FieldBoxPrice      Field = "boxPrice"
	FieldUnitPrice     Field = "unitPrice"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidFlag  = errors.New("invalid boolean value")
	// ErrDerivedField 当前模式下该字段由其他字段推导，不能直接编辑
	ErrDerivedField = errors.New("field is derived in the current mode")
)

// Line 订单行表单状态
//
// 数量有两种表示（quantity / boxQuantity），由 OrderByBox 决定哪一个是用户录入的；
// 价格有两种表示（unitPrice / boxPrice），由 IsPricePerBox 决定。
// 另一个字段始终由录入字段和 unitsPerBox 推导。
type Line struct {
	MaterialID    string `json:"material"`
	Quantity      Num    `json:"quantity"`
	UnitPrice     Num    `json:"unitPrice"`
	UnitsPerBox   Num    `json:"unitsPerBox"`
	BoxPrice      Num    `json:"boxPrice"`
	IsPricePerBox bool   `json:"isPricePerBox"`
	OrderByBox    bool   `json:"orderByBox"`
	BoxQuantity   Num    `json:"boxQuantity"`
}

// Edit 单个字段编辑事件，布尔字段的值为 "true"/"false"
type Edit struct {
	Field Field  `json:"field" binding:"required"`
	Value string `json:"value"`
}

// BoxSize 每箱数量，未填写或为0时按1处理
func (l Line) BoxSize() float64 {
	if v, ok := l.UnitsPerBox.Value(); ok && v != 0 {
		return v
	}
	return 1
}

// Derived 判断字段在当前模式下是否为推导字段
func (l Line) Derived(f Field) bool {
	switch f {
	case FieldQuantity:
		return l.OrderByBox
	case FieldUnitPrice:
		return l.IsPricePerBox
	case FieldBoxPrice:
		return !l.IsPricePerBox
	}
	return false
}

// ApplyEdit 应用一次字段编辑并重算相关字段
// 被编辑字段保留用户输入原文；返回新的行，原行不变
func ApplyEdit(l Line, e Edit) (Line, error) {
	if l.Derived(e.Field) {
		return l, fmt.Errorf("%s: %w", e.Field, ErrDerivedField)
	}

	switch e.Field {
	case FieldMaterial:
		l.MaterialID = e.Value

	case FieldOrderByBox:
		on, err := strconv.ParseBool(e.Value)
		if err != nil {
			return l, fmt.Errorf("%s: %w", e.Field, ErrInvalidFlag)
		}
		l.OrderByBox = on
		if on {
			l.switchToBoxes()
		} else {
			l.switchToUnits()
		}

	case FieldIsPricePerBox:
		on, err := strconv.ParseBool(e.Value)
		if err != nil {
			return l, fmt.Errorf("%s: %w", e.Field, ErrInvalidFlag)
		}
		l.IsPricePerBox = on
		if on {
			if up, ok := l.UnitPrice.Value(); ok && l.UnitsPerBox.IsSet() {
				l.BoxPrice = NumOf(up * l.BoxSize())
			}
		} else {
			if bp, ok := l.BoxPrice.Value(); ok && l.UnitsPerBox.IsSet() && l.BoxSize() > 0 {
				l.UnitPrice = NumOf(bp / l.BoxSize())
			}
		}

	case FieldUnitsPerBox:
		l.UnitsPerBox = Num(e.Value)
		if up, ok := l.UnitPrice.Value(); ok {
			l.BoxPrice = NumOf(up * l.BoxSize())
		}
		if l.OrderByBox {
			if bq, ok := l.BoxQuantity.Value(); ok {
				l.Quantity = NumOf(bq * l.BoxSize())
			}
		}

	case FieldBoxQuantity:
		l.BoxQuantity = Num(e.Value)
		if l.OrderByBox {
			l.Quantity = derive(l.BoxQuantity, func(bq float64) float64 { return bq * l.BoxSize() })
		}

	case FieldQuantity:
		l.Quantity = Num(e.Value)

	case FieldBoxPrice:
		l.BoxPrice = Num(e.Value)
		if l.BoxSize() > 0 {
			l.UnitPrice = derive(l.BoxPrice, func(bp float64) float64 { return bp / l.BoxSize() })
		}

	case FieldUnitPrice:
		l.UnitPrice = Num(e.Value)
		l.BoxPrice = derive(l.UnitPrice, func(up float64) float64 { return up * l.BoxSize() })

	default:
		return l, fmt.Errorf("%q: %w", e.Field, ErrUnknownField)
	}
	return l, nil
}

// switchToBoxes 切换到按箱订购
func (l *Line) switchToBoxes() {
	if bq, ok := l.BoxQuantity.Value(); !ok || bq == 0 {
		l.BoxQuantity = "1"
	}
	if q, ok := l.Quantity.Value(); ok {
		l.BoxQuantity = NumOf(math.Ceil(q / l.BoxSize()))
	}
	if up, ok := l.UnitPrice.Value(); ok && l.UnitsPerBox.IsSet() {
		l.BoxPrice = NumOf(up * l.BoxSize())
	}
}

// switchToUnits 切换到按单位订购
func (l *Line) switchToUnits() {
	if bq, ok := l.BoxQuantity.Value(); ok && l.UnitsPerBox.IsSet() {
		l.Quantity = NumOf(bq * l.BoxSize())
	}
}

// derive 源字段未填写时推导字段也置空
func derive(src Num, fn func(float64) float64) Num {
	v, ok := src.Value()
	if !ok {
		return ""
	}
	return NumOf(fn(v))
}

// ItemTotal 行金额 = 数量 × 单价，任一未填写时为0
func ItemTotal(l Line) float64 {
	q, ok := l.Quantity.Value()
	if !ok {
		return 0
	}
	up, ok := l.UnitPrice.Value()
	if !ok {
		return 0
	}
	return q * up
}

// Total 订单金额
func Total(lines []Line) float64 {
	var sum float64
	for _, l := range lines {
		sum += ItemTotal(l)
	}
	return sum
}
