package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

const exportSheetName = "Parsed BOQ"

// exportHeaders are the captions of the canonical export. They map back to
// the canonical fields when the file is parsed again.
var exportHeaders = []string{
	"Sr No", "Category", "Description", "Item Code", "Unit", "Qty", "Rate",
	"Amount", "Currency", "Flags", "Source",
}

// GenerateParsedBOQExcel writes a parse result as a single canonical sheet.
func GenerateParsedBOQExcel(result *ParseResult) ([]byte, error) {
	return GenerateExcel(BuildExportData(result, time.Now()))
}

// GenerateExcel creates an Excel file from the given ExportData and returns
// the file contents as a byte slice.
func GenerateExcel(data ExportData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := exportSheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, eris.Wrap(err, "set sheet name")
	}

	columns := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K"}
	lastCol := columns[len(columns)-1]

	widths := []float64{8, 24, 60, 14, 8, 12, 14, 16, 9, 22, 16}
	for i, col := range columns {
		if err := f.SetColWidth(sheetName, col, col, widths[i]); err != nil {
			return nil, eris.Wrapf(err, "set col width %s", col)
		}
	}

	// ── Styles ──────────────────────────────────────────────────────────

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16},
	})
	if err != nil {
		return nil, eris.Wrap(err, "create title style")
	}

	subtitleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 11},
	})
	if err != nil {
		return nil, eris.Wrap(err, "create subtitle style")
	}

	// Column header style: bold, white text, charcoal background, centered.
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: thinBorders(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "create header style")
	}

	itemStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    thinBorders(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "create item style")
	}

	numberStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 10},
		NumFmt: 4, // #,##0.00
		Border: thinBorders(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "create number style")
	}

	headingStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 10},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#E8E8E8"}, Pattern: 1},
		Border: thinBorders(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "create heading style")
	}

	totalStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 10},
		NumFmt: 4,
		Border: thinBorders(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "create total style")
	}

	summaryLabelStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "create summary label style")
	}

	// ── Header Rows (1-3) ───────────────────────────────────────────────

	if err := f.MergeCell(sheetName, "A1", lastCol+"1"); err != nil {
		return nil, eris.Wrap(err, "merge title")
	}
	f.SetCellValue(sheetName, "A1", sanitizeExcelCell(data.Title))
	f.SetCellStyle(sheetName, "A1", lastCol+"1", titleStyle)

	if err := f.MergeCell(sheetName, "A2", lastCol+"2"); err != nil {
		return nil, eris.Wrap(err, "merge source")
	}
	f.SetCellValue(sheetName, "A2", "Source: "+sanitizeExcelCell(data.SourceFile))
	f.SetCellStyle(sheetName, "A2", lastCol+"2", subtitleStyle)

	if err := f.MergeCell(sheetName, "A3", lastCol+"3"); err != nil {
		return nil, eris.Wrap(err, "merge date")
	}
	f.SetCellValue(sheetName, "A3", fmt.Sprintf("Generated: %s, header confidence %.2f", data.GeneratedDate, data.Confidence))
	f.SetCellStyle(sheetName, "A3", lastCol+"3", subtitleStyle)

	// ── Row 5: Column Headers ───────────────────────────────────────────

	for i, h := range exportHeaders {
		f.SetCellValue(sheetName, fmt.Sprintf("%s5", columns[i]), h)
	}
	f.SetCellStyle(sheetName, "A5", lastCol+"5", headerStyle)

	// ── Data Rows (starting row 6) ──────────────────────────────────────

	row := 6
	for _, r := range data.Rows {
		rowStr := fmt.Sprintf("%d", row)

		f.SetCellValue(sheetName, "A"+rowStr, sanitizeExcelCell(r.SrNo))
		f.SetCellValue(sheetName, "B"+rowStr, sanitizeExcelCell(r.Category))
		f.SetCellValue(sheetName, "C"+rowStr, sanitizeExcelCell(r.Description))
		f.SetCellValue(sheetName, "D"+rowStr, sanitizeExcelCell(r.ItemCode))
		f.SetCellValue(sheetName, "E"+rowStr, sanitizeExcelCell(r.Unit))
		setOptionalNumber(f, sheetName, "F"+rowStr, r.Qty)
		setOptionalNumber(f, sheetName, "G"+rowStr, r.Rate)
		setOptionalNumber(f, sheetName, "H"+rowStr, r.Amount)
		f.SetCellValue(sheetName, "I"+rowStr, r.Currency)
		f.SetCellValue(sheetName, "J"+rowStr, r.Flags)
		f.SetCellValue(sheetName, "K"+rowStr, sanitizeExcelCell(r.Source))

		switch r.Role {
		case RoleCategoryHeading:
			f.SetCellStyle(sheetName, "A"+rowStr, lastCol+rowStr, headingStyle)
		case RoleSubtotal, RoleGrandTotal:
			f.SetCellStyle(sheetName, "A"+rowStr, lastCol+rowStr, totalStyle)
		default:
			f.SetCellStyle(sheetName, "A"+rowStr, "E"+rowStr, itemStyle)
			f.SetCellStyle(sheetName, "F"+rowStr, "H"+rowStr, numberStyle)
			f.SetCellStyle(sheetName, "I"+rowStr, lastCol+rowStr, itemStyle)
		}
		row++
	}

	// ── Summary Rows ────────────────────────────────────────────────────

	row++
	summaryRow := fmt.Sprintf("%d", row)
	f.SetCellValue(sheetName, "C"+summaryRow, "Total (base items only)")
	f.SetCellStyle(sheetName, "C"+summaryRow, "C"+summaryRow, summaryLabelStyle)
	f.SetCellValue(sheetName, "H"+summaryRow, data.Totals.TotalAmount)
	f.SetCellStyle(sheetName, "H"+summaryRow, "H"+summaryRow, totalStyle)
	row++

	if data.Totals.DeclaredGrandTotal != nil {
		summaryRow = fmt.Sprintf("%d", row)
		f.SetCellValue(sheetName, "C"+summaryRow, "Declared grand total")
		f.SetCellStyle(sheetName, "C"+summaryRow, "C"+summaryRow, summaryLabelStyle)
		f.SetCellValue(sheetName, "H"+summaryRow, *data.Totals.DeclaredGrandTotal)
		f.SetCellStyle(sheetName, "H"+summaryRow, "H"+summaryRow, totalStyle)
		row++
	}

	summaryRow = fmt.Sprintf("%d", row)
	f.SetCellValue(sheetName, "C"+summaryRow, fmt.Sprintf("Items: %d, lump sums: %d, alternates: %d, unpriced: %d (%s)",
		data.Totals.ItemCount, data.Totals.LumpSumCount, data.Totals.AlternateCount, data.Totals.UnpricedCount,
		FormatAmount(data.Totals.TotalAmount, data.Currency)))
	f.SetCellStyle(sheetName, "C"+summaryRow, "C"+summaryRow, summaryLabelStyle)

	// ── Write to buffer ─────────────────────────────────────────────────

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "write excel")
	}

	return buf.Bytes(), nil
}

func setOptionalNumber(f *excelize.File, sheet, cell string, v *float64) {
	if v == nil {
		return
	}
	f.SetCellValue(sheet, cell, *v)
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote. Excel interprets cells starting with =, +, -,
// @, \t or \r as formulas, which can be abused for code execution or data theft.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns a slice of excelize.Border for thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{
			Type:  side,
			Color: "#000000",
			Style: 1, // thin
		}
	}
	return borders
}
