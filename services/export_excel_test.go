package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleParseResult() *ParseResult {
	heading := StandardBOQRow{Description: "EARTHWORK", Category: "EARTHWORK", SheetName: "BOQ", RawRowIndex: 3, SourceRows: []int{3}, Currency: "INR"}
	heading.setRole(RoleCategoryHeading)

	item := StandardBOQRow{
		SrNo: "1", Category: "EARTHWORK", Description: "Excavation in ordinary soil", Unit: "cum",
		Quantity: floatPtr(100), TenderRate: floatPtr(250), TenderAmount: floatPtr(25000),
		ItemCode: stringPtr("DSR-2.8.1"), Currency: "INR", SheetName: "BOQ", RawRowIndex: 4, SourceRows: []int{4, 5},
	}
	item.setRole(RoleDataItem)

	lump := StandardBOQRow{
		SrNo: "2", Category: "EARTHWORK", Description: "=cmd|' /C calc'!A0", Unit: "LS",
		Quantity: floatPtr(1), TenderRate: floatPtr(50000), TenderAmount: floatPtr(50000),
		LumpSum: true, Currency: "INR", SheetName: "BOQ", RawRowIndex: 6, SourceRows: []int{6},
	}
	lump.setRole(RoleDataItem)

	grand := StandardBOQRow{Description: "Grand Total", TenderAmount: floatPtr(75000), Currency: "INR", SheetName: "BOQ", RawRowIndex: 7, SourceRows: []int{7}}
	grand.setRole(RoleGrandTotal)

	return &ParseResult{
		ParsedBOQ: ParsedBOQ{
			SourceFile: "tender.xlsx",
			Currency:   "INR",
			Rows:       []StandardBOQRow{heading, item, lump, grand},
		},
		Report: ParseReport{AmbiguousHeaderConfidence: 1},
	}
}

func TestBuildExportData(t *testing.T) {
	data := BuildExportData(sampleParseResult(), time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "2025-01-15", data.GeneratedDate)
	assert.Equal(t, "tender.xlsx", data.SourceFile)
	require.Len(t, data.Rows, 4)

	assert.Equal(t, "category_heading", data.Rows[0].Flags)
	assert.Equal(t, "DSR-2.8.1", data.Rows[1].ItemCode)
	assert.Equal(t, "BOQ!4,5", data.Rows[1].Source)
	assert.Equal(t, "lump_sum", data.Rows[2].Flags)
	assert.Equal(t, "grand_total", data.Rows[3].Flags)

	assert.Equal(t, 2, data.Totals.ItemCount)
	assert.InDelta(t, 75000, data.Totals.TotalAmount, 0.001)
}

func TestGenerateParsedBOQExcel(t *testing.T) {
	result, err := GenerateParsedBOQExcel(sampleParseResult())
	require.NoError(t, err)
	require.NotEmpty(t, result)

	f, err := excelize.OpenReader(bytesReader(result))
	require.NoError(t, err, "result is not valid Excel")
	defer f.Close()

	sheets := f.GetSheetList()
	require.Equal(t, []string{"Parsed BOQ"}, sheets)

	title, _ := f.GetCellValue(sheets[0], "A1")
	assert.Equal(t, "Parsed BOQ", title)

	header, _ := f.GetCellValue(sheets[0], "C5")
	assert.Equal(t, "Description", header)

	desc, _ := f.GetCellValue(sheets[0], "C7")
	assert.Equal(t, "Excavation in ordinary soil", desc)

	injected, _ := f.GetCellValue(sheets[0], "C8")
	assert.Equal(t, "'=cmd|' /C calc'!A0", injected)
}

func TestGenerateExcel_EmptyRows(t *testing.T) {
	data := ExportData{
		Title:         "Parsed BOQ",
		GeneratedDate: "2025-01-15",
		Rows:          []ExportRow{},
	}

	result, err := GenerateExcel(data)
	require.NoError(t, err)
	assert.NotEmpty(t, result)
}

func TestGenerateParsedBOQExcel_RoundTrip(t *testing.T) {
	original := sampleParseResult()

	exported, err := GenerateParsedBOQExcel(original)
	require.NoError(t, err)

	reparsed, err := ParseBOQFile(exported, "parsed.xlsx", Options{})
	require.NoError(t, err)

	items := dataItems(reparsed.ParsedBOQ.Rows)
	require.Len(t, items, 2)
	assert.Equal(t, "Excavation in ordinary soil", items[0].Description)
	require.NotNil(t, items[0].TenderAmount)
	assert.InDelta(t, 25000, *items[0].TenderAmount, 0.001)
	require.NotNil(t, items[0].ItemCode)
	assert.Equal(t, "DSR-2.8.1", *items[0].ItemCode)
	assert.True(t, items[1].LumpSum)
	assert.Equal(t, 1.0, reparsed.Report.AmbiguousHeaderConfidence)
}

func TestSanitizeExcelCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", ""},
		{"normal text", "Hello", "Hello"},
		{"starts with equals", "=SUM(A1:A10)", "'=SUM(A1:A10)"},
		{"starts with plus", "+1234", "'+1234"},
		{"starts with minus", "-100", "'-100"},
		{"starts with at", "@import", "'@import"},
		{"starts with tab", "\tdata", "'\tdata"},
		{"starts with pipe", "|command", "'|command"},
		{"starts with carriage return", "\rdata", "'\rdata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeExcelCell(tt.input)
			if got != tt.want {
				t.Errorf("sanitizeExcelCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestThinBorders(t *testing.T) {
	borders := thinBorders()
	if len(borders) != 4 {
		t.Errorf("thinBorders() returned %d borders, want 4", len(borders))
	}

	sides := map[string]bool{"left": false, "top": false, "bottom": false, "right": false}
	for _, b := range borders {
		sides[b.Type] = true
		if b.Style != 1 {
			t.Errorf("border %s style = %d, want 1 (thin)", b.Type, b.Style)
		}
	}
	for side, found := range sides {
		if !found {
			t.Errorf("missing border side: %s", side)
		}
	}
}
