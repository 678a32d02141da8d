// Package testhelpers provides utilities for testing PocketBase-based applications.
package testhelpers

import (
	"bytes"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/xuri/excelize/v2"

	"boqimport/collections"
)

// NewTestApp creates a PocketBase instance backed by a temporary directory.
// It bootstraps the app and runs collections.Setup to create all tables.
// The temporary directory is cleaned up automatically when the test finishes.
func NewTestApp(t *testing.T) *pocketbase.PocketBase {
	t.Helper()

	tmpDir := t.TempDir()
	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: tmpDir,
	})

	if err := app.Bootstrap(); err != nil {
		t.Fatalf("failed to bootstrap test app: %v", err)
	}

	collections.Setup(app)

	return app
}

// CreateTestImport creates a boq_imports record and returns it.
func CreateTestImport(t *testing.T, app *pocketbase.PocketBase, fileName string) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("boq_imports")
	if err != nil {
		t.Fatalf("failed to find boq_imports collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("file_name", fileName)
	record.Set("status", "auto_accepted")
	record.Set("currency", "INR")
	record.Set("confidence", 1.0)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test import: %v", err)
	}

	return record
}

// CreateTestImportRow creates a data item row linked to an import.
func CreateTestImportRow(t *testing.T, app *pocketbase.PocketBase, importID string, sortOrder int, description string) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("boq_import_rows")
	if err != nil {
		t.Fatalf("failed to find boq_import_rows collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("boq_import", importID)
	record.Set("sort_order", sortOrder)
	record.Set("sheet_name", "BOQ")
	record.Set("raw_row_index", sortOrder+1)
	record.Set("role", "data_item")
	record.Set("description", description)
	record.Set("data", map[string]any{"description": description})

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test import row: %v", err)
	}

	return record
}

// BuildXLSX writes rows into a single-sheet workbook held in memory. Values
// keep their Go type, so numbers are stored as numeric cells.
func BuildXLSX(t *testing.T, sheetName string, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		t.Fatalf("failed to rename sheet: %v", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("failed to build cell name: %v", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			t.Fatalf("failed to write row %d: %v", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return buf.Bytes()
}
