package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExportRow is one canonical row as written to the export sheet.
type ExportRow struct {
	Role        RowRole
	SrNo        string
	Category    string
	Description string
	ItemCode    string
	Unit        string
	Qty         *float64
	Rate        *float64
	Amount      *float64
	Currency    string
	Flags       string
	Source      string
}

// ExportData holds everything needed to write a parsed BOQ back out.
type ExportData struct {
	Title         string
	SourceFile    string
	GeneratedDate string
	Currency      string
	Confidence    float64
	Rows          []ExportRow
	Totals        ParsedTotals
}

// BuildExportData flattens a parse result into export rows.
func BuildExportData(result *ParseResult, generated time.Time) ExportData {
	data := ExportData{
		Title:         "Parsed BOQ",
		SourceFile:    result.ParsedBOQ.SourceFile,
		GeneratedDate: generated.Format("2006-01-02"),
		Currency:      result.ParsedBOQ.Currency,
		Confidence:    result.Report.AmbiguousHeaderConfidence,
		Rows:          make([]ExportRow, 0, len(result.ParsedBOQ.Rows)),
		Totals:        CalcParsedTotals(result.ParsedBOQ.Rows),
	}
	for _, r := range result.ParsedBOQ.Rows {
		row := ExportRow{
			Role:        r.Role,
			SrNo:        r.SrNo,
			Category:    r.Category,
			Description: r.Description,
			Unit:        r.Unit,
			Qty:         r.Quantity,
			Rate:        r.TenderRate,
			Amount:      r.TenderAmount,
			Currency:    r.Currency,
			Flags:       rowFlags(r),
			Source:      rowSource(r),
		}
		if r.ItemCode != nil {
			row.ItemCode = *r.ItemCode
		}
		if r.SubCategory != "" {
			row.Category = r.Category + " / " + r.SubCategory
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

func rowFlags(r StandardBOQRow) string {
	var flags []string
	if r.Role != RoleDataItem {
		flags = append(flags, r.Role.String())
	}
	if r.LumpSum {
		flags = append(flags, "lump_sum")
	}
	if r.AltGroup != nil {
		flags = append(flags, "alternate of "+*r.AltGroup)
	}
	return strings.Join(flags, ", ")
}

// rowSource renders the provenance of a row as Sheet!rows.
func rowSource(r StandardBOQRow) string {
	rows := r.SourceRows
	if len(rows) == 0 {
		rows = []int{r.RawRowIndex}
	}
	parts := make([]string, len(rows))
	for i, idx := range rows {
		parts[i] = strconv.Itoa(idx)
	}
	return fmt.Sprintf("%s!%s", r.SheetName, strings.Join(parts, ","))
}
