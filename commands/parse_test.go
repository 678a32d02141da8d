package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boqimport/config"
	"boqimport/services"
	"boqimport/testhelpers"
)

func testConfig() *config.Config {
	return &config.Config{
		Parser: config.ParserConfig{
			HeaderScanLimit:       services.DefaultHeaderScanLimit,
			MinHeaderConfidence:   services.DefaultMinHeaderConfidence,
			ManualReviewThreshold: services.DefaultManualReviewThreshold,
			AmountTolerance:       services.DefaultAmountTolerance,
			DefaultCurrency:       "INR",
		},
	}
}

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tender.xlsx")
	require.NoError(t, os.WriteFile(path, testhelpers.BuildXLSX(t, "BOQ", rows), 0o644))
	return path
}

func runCommand(t *testing.T, args ...string) (*services.ParseResult, error) {
	t.Helper()
	cmd := NewParseCommand(testConfig())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	var result services.ParseResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	return &result, nil
}

func TestParseCommand_Metadata(t *testing.T) {
	cmd := NewParseCommand(testConfig())
	assert.Equal(t, "parse-boq <file>", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	for _, name := range []string{"mapping", "header-row", "export", "compact"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestParseCommand_PrintsResult(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Sr No", "Description", "Qty", "Unit", "Rate", "Amount"},
		{1, "Excavation", 100, "cum", 250, 25000},
	})

	result, err := runCommand(t, path, "--compact")
	require.NoError(t, err)

	assert.Equal(t, "tender.xlsx", result.ParsedBOQ.SourceFile)
	require.Len(t, result.ParsedBOQ.Rows, 1)
	assert.Equal(t, services.RoleDataItem, result.ParsedBOQ.Rows[0].Role)
	assert.Equal(t, 25000.0, *result.ParsedBOQ.Rows[0].TenderAmount)
	assert.Equal(t, 1.0, result.Report.AmbiguousHeaderConfidence)
}

func TestParseCommand_Mapping(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Col1", "Col2", "Col3", "Col4", "Col5", "Col6"},
		{1, "Excavation", 100, "cum", 250, 25000},
	})
	mapping := `{"srNo":0,"description":1,"quantity":2,"unit":3,"rate":4,"amount":5}`

	result, err := runCommand(t, path, "--mapping", mapping, "--header-row", "1")
	require.NoError(t, err)
	assert.False(t, result.Report.NeedsManualMapping)
	require.Len(t, result.ParsedBOQ.Rows, 1)
	assert.Equal(t, "Excavation", result.ParsedBOQ.Rows[0].Description)

	mappingFile := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(mappingFile, []byte(mapping), 0o644))
	result, err = runCommand(t, path, "--mapping", "@"+mappingFile, "--header-row", "1")
	require.NoError(t, err)
	assert.Equal(t, services.ColumnMapping{
		services.FieldSrNo: 0, services.FieldDescription: 1, services.FieldQuantity: 2,
		services.FieldUnit: 3, services.FieldRate: 4, services.FieldAmount: 5,
	}, result.Report.SuggestedMapping)
}

func TestParseCommand_Export(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Sr No", "Description", "Qty", "Unit", "Rate", "Amount"},
		{1, "Excavation", 100, "cum", 250, 25000},
	})
	exportPath := filepath.Join(t.TempDir(), "parsed.xlsx")

	_, err := runCommand(t, path, "--export", exportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	reparsed, err := services.ParseBOQFile(data, "parsed.xlsx", services.Options{})
	require.NoError(t, err)
	items := 0
	for _, r := range reparsed.ParsedBOQ.Rows {
		if r.Role == services.RoleDataItem {
			items++
		}
	}
	assert.Equal(t, 1, items)
}

func TestParseCommand_Errors(t *testing.T) {
	_, err := runCommand(t, filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)

	path := writeWorkbook(t, [][]any{{"Description"}})
	_, err = runCommand(t, path, "--mapping", "{not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode mapping")

	_, err = runCommand(t, path, "--mapping", "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping is empty")

	_, err = runCommand(t)
	assert.Error(t, err)
}

func TestParseCommand_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04junk"), 0o644))

	_, err := runCommand(t, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrUnreadableWorkbook)
}
