package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"boqimport/services"
)

// sanitizeFilename removes characters that are unsafe for filenames.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.ReplaceAll(s, `"`, "")
	return s
}

// exportFilename names the canonical workbook after the uploaded file.
func exportFilename(sourceFile string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
	if base == "" || base == "." {
		base = "import"
	}
	return fmt.Sprintf("BOQ_%s_parsed_%s.xlsx", sanitizeFilename(base), now.Format("2006-01-02"))
}

// HandleBOQImportExportExcel downloads a stored import as the canonical
// single-sheet workbook.
// Route: GET /boq-imports/{id}/export/excel
func HandleBOQImportExportExcel(app *pocketbase.PocketBase) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		stored, ok, err := loadImport(app, e)
		if !ok {
			return err
		}

		xlsxBytes, err := services.GenerateParsedBOQExcel(&stored.Result)
		if err != nil {
			zap.L().Error("export_excel: failed to generate",
				zap.String("import", stored.ID), zap.Error(err))
			return e.String(http.StatusInternalServerError, "Failed to generate Excel file")
		}

		filename := exportFilename(stored.FileName, time.Now())

		e.Response.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		e.Response.Write(xlsxBytes)
		return nil
	}
}
