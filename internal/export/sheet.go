package export

import (
	"fmt"

	"github.com/bitfantasy/nimo-admin/internal/order"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Order"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var orderSheetHeaders = []string{
	"#", "Material", "Unit", "Ordered By", "Units / Box", "Boxes",
	"Quantity", "Unit Price", "Box Price", "Line Total",
}

// OrderSheet 把订单草稿导出为xlsx，数值使用提交时的规范化结果
// materials 用于显示物料名称和单位，缺失时显示物料ID
func OrderSheet(form *order.Form, materials map[string]order.Material) (*excelize.File, string, error) {
	req, err := form.Payload()
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range orderSheetHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(SheetName, cell, h)
		f.SetCellStyle(SheetName, cell, cell, headerStyle)
	}

	for i, item := range req.Items {
		row := i + 2
		name, unit := item.Material, ""
		if m, ok := materials[item.Material]; ok {
			name, unit = m.Name, m.Unit
		}
		orderedBy := "unit"
		boxes := float64(item.TotalBoxes)
		if item.OrderedByBox {
			orderedBy = "box"
			boxes = *item.BoxQuantity
		}

		f.SetCellValue(SheetName, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(SheetName, fmt.Sprintf("B%d", row), name)
		f.SetCellValue(SheetName, fmt.Sprintf("C%d", row), unit)
		f.SetCellValue(SheetName, fmt.Sprintf("D%d", row), orderedBy)
		f.SetCellValue(SheetName, fmt.Sprintf("E%d", row), item.UnitsPerBox)
		f.SetCellValue(SheetName, fmt.Sprintf("F%d", row), boxes)
		f.SetCellValue(SheetName, fmt.Sprintf("G%d", row), item.Quantity)
		f.SetCellValue(SheetName, fmt.Sprintf("H%d", row), item.UnitPrice)
		f.SetCellValue(SheetName, fmt.Sprintf("I%d", row), item.BoxPrice)
		f.SetCellValue(SheetName, fmt.Sprintf("J%d", row), item.TotalPrice)
	}

	summaryRow := len(req.Items) + 2
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		NumFmt: 2,
	})
	f.SetCellValue(SheetName, fmt.Sprintf("A%d", summaryRow), "Total")
	f.SetCellValue(SheetName, fmt.Sprintf("J%d", summaryRow), req.TotalAmount)
	f.SetCellStyle(SheetName, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("J%d", summaryRow), summaryStyle)

	colWidths := []float64{5, 24, 8, 10, 10, 8, 10, 12, 12, 12}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(SheetName, col, col, w)
	}

	filename := fmt.Sprintf("order_draft_%s.xlsx", shortID(form.ID))
	return f, filename, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
