package order

import "time"

// 订单状态，recieved 为服务端的原始拼写
const (
	StatusPlaced    = "placed"
	StatusReceived  = "recieved"
	StatusCancelled = "cancelled"
)

// 物料计量单位
const (
	UnitKg    = "kg"
	UnitLiter = "liter"
	UnitPiece = "piece"
	UnitMeter = "meter"
)

// Material 原材料
type Material struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	CurrentStock float64 `json:"currentStock"`
	Supplier     string  `json:"supplier,omitempty"`
}

// Item 已提交订单的行
type Item struct {
	Material     *Material `json:"material,omitempty"`
	Quantity     float64   `json:"quantity"`
	UnitPrice    float64   `json:"unitPrice"`
	TotalPrice   float64   `json:"totalPrice"`
	UnitsPerBox  float64   `json:"unitsPerBox"`
	BoxPrice     float64   `json:"boxPrice"`
	TotalBoxes   int       `json:"totalBoxes"`
	OrderedByBox bool      `json:"orderedByBox"`
	BoxQuantity  float64   `json:"boxQuantity,omitempty"`
}

// Order 采购订单
type Order struct {
	ID          string    `json:"id"`
	OrderNumber string    `json:"orderNumber"`
	Status      string    `json:"status"`
	Items       []Item    `json:"items"`
	TotalAmount float64   `json:"totalAmount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsTerminalStatus 已收货或已取消
func IsTerminalStatus(status string) bool {
	return status == StatusReceived || status == StatusCancelled
}

// CanTransition 订单状态只能从 placed 变为 recieved 或 cancelled
func CanTransition(from, to string) bool {
	return from == StatusPlaced && IsTerminalStatus(to)
}
