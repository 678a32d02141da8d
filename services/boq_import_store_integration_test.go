package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boqimport/testhelpers"
)

func storedSample(t *testing.T) *ParseResult {
	t.Helper()
	return parseRows(t,
		[]any{"Sr No", "Description", "Qty", "Unit", "Rate", "Amount"},
		[]any{"", "EARTHWORK"},
		[]any{1, "Excavation", 100, "cum", 250, 25000},
		[]any{2, "Concrete", 50, "cum", 5000, 250000},
		[]any{"", "Grand Total", "", "", "", 275000},
	)
}

func TestSaveAndLoadBOQImport(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	result := storedSample(t)

	id, err := SaveBOQImport(app, "tender.xlsx", result, 2)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, err := LoadBOQImport(app, id)
	require.NoError(t, err)

	assert.Equal(t, "tender.xlsx", stored.FileName)
	assert.Equal(t, ImportStatusAutoAccepted, stored.Status)
	assert.Equal(t, result.ParsedBOQ.Rows, stored.Result.ParsedBOQ.Rows)
	assert.Equal(t, result.Report.RowsParsed, stored.Result.Report.RowsParsed)
	assert.Equal(t, result.Report.SuggestedMapping, stored.Result.Report.SuggestedMapping)
	assert.Equal(t, "INR", stored.Result.ParsedBOQ.Currency)
}

func TestSaveBOQImport_NeedsReviewStatus(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	result := storedSample(t)
	result.Report.NeedsManualMapping = true

	id, err := SaveBOQImport(app, "weak.xlsx", result, 0)
	require.NoError(t, err)

	rec, err := app.FindRecordById("boq_imports", id)
	require.NoError(t, err)
	assert.Equal(t, ImportStatusNeedsReview, rec.GetString("status"))
	assert.Equal(t, result.Report.RowsParsed, rec.GetInt("rows_parsed"))
}

func TestSaveBOQImport_RowsOrdered(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	result := storedSample(t)

	id, err := SaveBOQImport(app, "tender.xlsx", result, 1)
	require.NoError(t, err)

	records, err := app.FindRecordsByFilter("boq_import_rows", "boq_import = {:id}", "sort_order", 0, 0, map[string]any{"id": id})
	require.NoError(t, err)
	require.Len(t, records, len(result.ParsedBOQ.Rows))
	for i, rec := range records {
		assert.Equal(t, i+1, rec.GetInt("sort_order"))
		assert.Equal(t, result.ParsedBOQ.Rows[i].Role.String(), rec.GetString("role"))
	}
}

func TestLoadBOQImport_NotFound(t *testing.T) {
	app := testhelpers.NewTestApp(t)

	_, err := LoadBOQImport(app, "missing")
	assert.True(t, errors.Is(err, ErrImportNotFound), "expected ErrImportNotFound, got %v", err)
}

func TestDeleteBOQImport(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	id, err := SaveBOQImport(app, "tender.xlsx", storedSample(t), 0)
	require.NoError(t, err)

	require.NoError(t, DeleteBOQImport(app, id))

	_, err = LoadBOQImport(app, id)
	assert.True(t, errors.Is(err, ErrImportNotFound))

	rows, err := app.FindRecordsByFilter("boq_import_rows", "boq_import = {:id}", "", 0, 0, map[string]any{"id": id})
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.True(t, errors.Is(DeleteBOQImport(app, id), ErrImportNotFound))
}

func TestListBOQImports(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	result := storedSample(t)
	_, err := SaveBOQImport(app, "first.xlsx", result, 0)
	require.NoError(t, err)
	_, err = SaveBOQImport(app, "second.xlsx", result, 0)
	require.NoError(t, err)

	list, err := ListBOQImports(app, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	names := []string{list[0].FileName, list[1].FileName}
	assert.ElementsMatch(t, []string{"first.xlsx", "second.xlsx"}, names)
	assert.Equal(t, 4, list[0].RowsParsed)
	assert.Equal(t, 1.0, list[0].Confidence)
	assert.Equal(t, ImportStatusAutoAccepted, list[0].Status)
}
