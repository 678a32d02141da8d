package services

import (
	"github.com/pocketbase/pocketbase/core"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Import statuses. Imports below the manual review threshold need a person to
// confirm the column mapping.
const (
	ImportStatusAutoAccepted = "auto_accepted"
	ImportStatusNeedsReview  = "needs_review"
)

// DefaultImportBatchSize is the number of rows written per transaction.
const DefaultImportBatchSize = 100

// ErrImportNotFound is returned when no import exists with the given id.
var ErrImportNotFound = eris.New("boq import not found")

// StoredBOQImport is a persisted parse result.
type StoredBOQImport struct {
	ID       string      `json:"id"`
	FileName string      `json:"fileName"`
	Status   string      `json:"status"`
	Created  string      `json:"created"`
	Result   ParseResult `json:"-"`
}

// BOQImportSummary is the list view of a stored import.
type BOQImportSummary struct {
	ID           string  `json:"id"`
	FileName     string  `json:"fileName"`
	Status       string  `json:"status"`
	Currency     string  `json:"currency"`
	Confidence   float64 `json:"confidence"`
	RowsParsed   int     `json:"rowsParsed"`
	RowsSkipped  int     `json:"rowsSkipped"`
	WarningCount int     `json:"warningCount"`
	Created      string  `json:"created"`
}

// ImportStatus maps a report to the status an import is stored with.
func ImportStatus(report ParseReport) string {
	if report.NeedsManualMapping {
		return ImportStatusNeedsReview
	}
	return ImportStatusAutoAccepted
}

// SaveBOQImport persists a parse result and returns the new import id. Rows
// are written in transactional chunks of batchSize; if a chunk fails the
// whole import is removed again.
func SaveBOQImport(app core.App, fileName string, result *ParseResult, batchSize int) (string, error) {
	if batchSize <= 0 {
		batchSize = DefaultImportBatchSize
	}

	importsCol, err := app.FindCollectionByNameOrId("boq_imports")
	if err != nil {
		return "", eris.Wrap(err, "boq_imports collection not found")
	}
	rowsCol, err := app.FindCollectionByNameOrId("boq_import_rows")
	if err != nil {
		return "", eris.Wrap(err, "boq_import_rows collection not found")
	}

	report := result.Report
	imp := core.NewRecord(importsCol)
	imp.Set("file_name", fileName)
	imp.Set("status", ImportStatus(report))
	imp.Set("currency", result.ParsedBOQ.Currency)
	imp.Set("confidence", report.AmbiguousHeaderConfidence)
	imp.Set("rows_parsed", report.RowsParsed)
	imp.Set("rows_skipped", report.RowsSkipped)
	imp.Set("warning_count", len(report.Warnings))
	imp.Set("report", report)
	imp.Set("suggested_mapping", report.SuggestedMapping)
	if err := app.Save(imp); err != nil {
		return "", eris.Wrap(err, "save boq import")
	}

	rows := result.ParsedBOQ.Rows
	for chunkStart := 0; chunkStart < len(rows); chunkStart += batchSize {
		chunkEnd := chunkStart + batchSize
		if chunkEnd > len(rows) {
			chunkEnd = len(rows)
		}
		if err := insertRowChunk(app, rowsCol, imp.Id, rows[chunkStart:chunkEnd], chunkStart); err != nil {
			if delErr := app.Delete(imp); delErr != nil {
				zap.L().Error("import store: failed to remove partial import",
					zap.String("import", imp.Id), zap.Error(delErr))
			}
			return "", eris.Wrapf(err, "save rows %d-%d", chunkStart+1, chunkEnd)
		}
	}

	zap.L().Info("import store: saved boq import",
		zap.String("import", imp.Id),
		zap.String("file", fileName),
		zap.Int("rows", len(rows)),
		zap.String("status", imp.GetString("status")),
	)
	return imp.Id, nil
}

// insertRowChunk inserts a batch of rows within a RunInTransaction block.
// If any row fails, the entire chunk is rolled back.
func insertRowChunk(app core.App, col *core.Collection, importID string, rows []StandardBOQRow, startOffset int) error {
	return app.RunInTransaction(func(txApp core.App) error {
		for i, row := range rows {
			record := core.NewRecord(col)
			record.Set("boq_import", importID)
			record.Set("sort_order", startOffset+i+1)
			record.Set("sheet_name", row.SheetName)
			record.Set("raw_row_index", row.RawRowIndex)
			record.Set("role", row.Role.String())
			record.Set("sr_no", row.SrNo)
			record.Set("description", row.Description)
			if row.TenderAmount != nil {
				record.Set("tender_amount", *row.TenderAmount)
			}
			record.Set("data", row)
			if err := txApp.Save(record); err != nil {
				return eris.Wrapf(err, "row %d (%s row %d)", startOffset+i+1, row.SheetName, row.RawRowIndex)
			}
		}
		return nil
	})
}

// LoadBOQImport rebuilds a stored parse result.
func LoadBOQImport(app core.App, id string) (*StoredBOQImport, error) {
	imp, err := app.FindRecordById("boq_imports", id)
	if err != nil {
		return nil, eris.Wrapf(ErrImportNotFound, "load %q", id)
	}

	var report ParseReport
	if err := imp.UnmarshalJSONField("report", &report); err != nil {
		return nil, eris.Wrap(err, "decode stored report")
	}

	records, err := app.FindRecordsByFilter("boq_import_rows", "boq_import = {:id}", "sort_order", 0, 0, map[string]any{"id": id})
	if err != nil {
		return nil, eris.Wrap(err, "load import rows")
	}

	rows := make([]StandardBOQRow, 0, len(records))
	for _, rec := range records {
		var row StandardBOQRow
		if err := rec.UnmarshalJSONField("data", &row); err != nil {
			return nil, eris.Wrapf(err, "decode import row %s", rec.Id)
		}
		rows = append(rows, row)
	}

	return &StoredBOQImport{
		ID:       imp.Id,
		FileName: imp.GetString("file_name"),
		Status:   imp.GetString("status"),
		Created:  imp.GetDateTime("created").String(),
		Result: ParseResult{
			ParsedBOQ: ParsedBOQ{
				SourceFile: imp.GetString("file_name"),
				Currency:   imp.GetString("currency"),
				Rows:       rows,
			},
			Report: report,
		},
	}, nil
}

// ListBOQImports returns the most recent imports, newest first.
func ListBOQImports(app core.App, limit int) ([]BOQImportSummary, error) {
	records, err := app.FindRecordsByFilter("boq_imports", "id != ''", "-created", limit, 0)
	if err != nil {
		return nil, eris.Wrap(err, "list boq imports")
	}
	out := make([]BOQImportSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, BOQImportSummary{
			ID:           rec.Id,
			FileName:     rec.GetString("file_name"),
			Status:       rec.GetString("status"),
			Currency:     rec.GetString("currency"),
			Confidence:   rec.GetFloat("confidence"),
			RowsParsed:   rec.GetInt("rows_parsed"),
			RowsSkipped:  rec.GetInt("rows_skipped"),
			WarningCount: rec.GetInt("warning_count"),
			Created:      rec.GetDateTime("created").String(),
		})
	}
	return out, nil
}

// DeleteBOQImport removes an import; its rows go with it through the cascade.
func DeleteBOQImport(app core.App, id string) error {
	imp, err := app.FindRecordById("boq_imports", id)
	if err != nil {
		return eris.Wrapf(ErrImportNotFound, "delete %q", id)
	}
	if err := app.Delete(imp); err != nil {
		return eris.Wrap(err, "delete boq import")
	}
	return nil
}
