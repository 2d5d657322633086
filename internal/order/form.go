package order

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bitfantasy/nimo-admin/internal/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrLastLine     = errors.New("an order needs at least one line")
	ErrLineNotFound = errors.New("order line not found")
)

// Form 订单录入表单（草稿），提交后丢弃
type Form struct {
	ID        string    `json:"id"`
	Supplier  string    `json:"supplier"`
	Notes     string    `json:"notes"`
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewForm 新建表单，默认带一个空行
func NewForm() *Form {
	now := time.Now()
	return &Form{
		ID:        uuid.New().String(),
		Lines:     []Line{{}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddLine 追加空行
func (f *Form) AddLine() {
	f.Lines = append(f.Lines, Line{})
	f.UpdatedAt = time.Now()
}

// RemoveLine 删除行，至少保留一行
func (f *Form) RemoveLine(i int) error {
	if i < 0 || i >= len(f.Lines) {
		return fmt.Errorf("line %d: %w", i, ErrLineNotFound)
	}
	if len(f.Lines) <= 1 {
		return ErrLastLine
	}
	f.Lines = append(f.Lines[:i:i], f.Lines[i+1:]...)
	f.UpdatedAt = time.Now()
	return nil
}

// Edit 对第i行应用编辑
func (f *Form) Edit(i int, e Edit) error {
	if i < 0 || i >= len(f.Lines) {
		return fmt.Errorf("line %d: %w", i, ErrLineNotFound)
	}
	next, err := ApplyEdit(f.Lines[i], e)
	if err != nil {
		return err
	}
	f.Lines[i] = next
	f.UpdatedAt = time.Now()
	return nil
}

// Total 表单合计
func (f *Form) Total() float64 {
	return Total(f.Lines)
}

// Validate 提交前校验：每行必须选择物料
// 数值不做范围校验，负数交由服务端判断
func (f *Form) Validate() error {
	if len(f.Lines) == 0 {
		return validation.Fail("items", "At least one item must be specified")
	}
	for i, l := range f.Lines {
		if err := validation.Required(fmt.Sprintf("items[%d].material", i), l.MaterialID); err != nil {
			return err
		}
	}
	return nil
}

// LinePayload 提交给服务端的订单行
type LinePayload struct {
	Material     string   `json:"material"`
	Quantity     float64  `json:"quantity"`
	UnitPrice    float64  `json:"unitPrice"`
	TotalPrice   float64  `json:"totalPrice"`
	UnitsPerBox  float64  `json:"unitsPerBox"`
	BoxPrice     float64  `json:"boxPrice"`
	TotalBoxes   int      `json:"totalBoxes"`
	OrderedByBox bool     `json:"orderedByBox,omitempty"`
	BoxQuantity  *float64 `json:"boxQuantity,omitempty"`
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	Supplier    string        `json:"supplier,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Items       []LinePayload `json:"items"`
	TotalAmount float64       `json:"totalAmount"`
}

// Normalize 将表单行转换为提交数据，金额只在这里取整
func Normalize(l Line) LinePayload {
	qty := l.Quantity.Float()
	up := l.UnitPrice.Float()
	size := l.BoxSize()

	boxPrice := l.BoxPrice.Float()
	if !l.BoxPrice.IsSet() {
		boxPrice = up * size
	}

	// 行金额按取整后的单价计算，保证 totalPrice = quantity * unitPrice
	unitPrice := round(up, 4)
	p := LinePayload{
		Material:    l.MaterialID,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		TotalPrice:  money(decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(unitPrice))),
		UnitsPerBox: size,
		BoxPrice:    round(boxPrice, 4),
		TotalBoxes:  int(math.Floor(qty / size)),
	}
	if l.OrderByBox {
		bq := l.BoxQuantity.Float()
		p.OrderedByBox = true
		p.BoxQuantity = &bq
	}
	return p
}

// Payload 校验并生成创建订单请求
func (f *Form) Payload() (CreateOrderRequest, error) {
	if err := f.Validate(); err != nil {
		return CreateOrderRequest{}, err
	}
	req := CreateOrderRequest{
		Supplier: f.Supplier,
		Notes:    f.Notes,
		Items:    make([]LinePayload, 0, len(f.Lines)),
	}
	total := decimal.Zero
	for _, l := range f.Lines {
		p := Normalize(l)
		req.Items = append(req.Items, p)
		total = total.Add(decimal.NewFromFloat(p.TotalPrice))
	}
	req.TotalAmount = money(total)
	return req, nil
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
