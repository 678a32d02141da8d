package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"boqimport/config"
	"boqimport/services"
)

// importListLimit caps the number of imports returned by the list endpoint.
const importListLimit = 50

// boqImportResponse is the body returned for a stored import.
type boqImportResponse struct {
	ID          string                `json:"id"`
	FileName    string                `json:"fileName"`
	Status      string                `json:"status"`
	Created     string                `json:"created,omitempty"`
	ParsedBOQ   services.ParsedBOQ    `json:"parsedBoq"`
	ParseReport services.ParseReport  `json:"parseReport"`
	Totals      services.ParsedTotals `json:"totals"`
}

func newBOQImportResponse(id, fileName, status, created string, result *services.ParseResult) boqImportResponse {
	return boqImportResponse{
		ID:          id,
		FileName:    fileName,
		Status:      status,
		Created:     created,
		ParsedBOQ:   result.ParsedBOQ,
		ParseReport: result.Report,
		Totals:      services.CalcParsedTotals(result.ParsedBOQ.Rows),
	}
}

// HandleBOQImportCreate parses an uploaded workbook and stores the result.
// The form carries the file under "file" and, when the user has confirmed a
// column mapping, "mapping" (JSON) and "header_row".
// Route: POST /boq-imports
func HandleBOQImportCreate(app *pocketbase.PocketBase, cfg *config.Config) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		maxBytes := cfg.Import.MaxUploadBytes()
		e.Request.Body = http.MaxBytesReader(e.Response, e.Request.Body, maxBytes)

		if err := e.Request.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return ErrorToast(e, http.StatusRequestEntityTooLarge, "File is larger than the upload limit")
			}
			return ErrorToast(e, http.StatusBadRequest, "File too large or invalid form data")
		}

		file, header, err := e.Request.FormFile("file")
		if err != nil {
			return ErrorToast(e, http.StatusBadRequest, "Please select a file to upload")
		}
		defer file.Close()

		buf, err := io.ReadAll(file)
		if err != nil {
			zap.L().Error("boq_import: read upload", zap.Error(err))
			return ErrorToast(e, http.StatusBadRequest, "Could not read the uploaded file")
		}

		opts := cfg.Parser.Options()
		opts.Logger = zap.L()
		if raw := strings.TrimSpace(e.Request.FormValue("mapping")); raw != "" {
			var mapping services.ColumnMapping
			if err := json.Unmarshal([]byte(raw), &mapping); err != nil || len(mapping) == 0 {
				return ErrorToast(e, http.StatusBadRequest, "Column mapping is not valid JSON")
			}
			opts.Mapping = mapping
		}
		if raw := strings.TrimSpace(e.Request.FormValue("header_row")); raw != "" {
			row, err := strconv.Atoi(raw)
			if err != nil || row < 0 {
				return ErrorToast(e, http.StatusBadRequest, "Header row must be a positive number")
			}
			opts.HeaderRow = row
		}

		result, err := services.ParseBOQFile(buf, header.Filename, opts)
		if err != nil {
			zap.L().Warn("boq_import: unreadable upload",
				zap.String("file", header.Filename), zap.Error(err))
			if errors.Is(err, services.ErrUnreadableWorkbook) {
				return ErrorToast(e, http.StatusUnprocessableEntity, "The file could not be read as a spreadsheet")
			}
			return ErrorToast(e, http.StatusInternalServerError, "Something went wrong. Please try again.")
		}

		id, err := services.SaveBOQImport(app, header.Filename, result, cfg.Import.BatchSize)
		if err != nil {
			zap.L().Error("boq_import: save", zap.String("file", header.Filename), zap.Error(err))
			return ErrorToast(e, http.StatusInternalServerError, "Failed to save the import")
		}

		status := services.ImportStatus(result.Report)
		if status == services.ImportStatusNeedsReview {
			SetToast(e, ToastWarning, "Imported. Please confirm the column mapping.")
		} else {
			SetToast(e, ToastSuccess, "BOQ imported")
		}
		return e.JSON(http.StatusCreated, newBOQImportResponse(id, header.Filename, status, "", result))
	}
}

// HandleBOQImportList returns the most recent imports.
// Route: GET /boq-imports
func HandleBOQImportList(app *pocketbase.PocketBase) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		imports, err := services.ListBOQImports(app, importListLimit)
		if err != nil {
			zap.L().Error("boq_import_list", zap.Error(err))
			return e.String(http.StatusInternalServerError, "Failed to list imports")
		}
		return e.JSON(http.StatusOK, imports)
	}
}

// HandleBOQImportView returns a stored import with its rows and report.
// Route: GET /boq-imports/{id}
func HandleBOQImportView(app *pocketbase.PocketBase) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		stored, ok, err := loadImport(app, e)
		if !ok {
			return err
		}
		return e.JSON(http.StatusOK, newBOQImportResponse(
			stored.ID, stored.FileName, stored.Status, stored.Created, &stored.Result))
	}
}

// HandleBOQImportDelete removes a stored import and its rows.
// Route: DELETE /boq-imports/{id}
func HandleBOQImportDelete(app *pocketbase.PocketBase) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		id := e.Request.PathValue("id")
		if id == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing import ID")
		}
		if err := services.DeleteBOQImport(app, id); err != nil {
			if errors.Is(err, services.ErrImportNotFound) {
				return ErrorToast(e, http.StatusNotFound, "Import not found")
			}
			zap.L().Error("boq_import_delete", zap.String("import", id), zap.Error(err))
			return ErrorToast(e, http.StatusInternalServerError, "Failed to delete import")
		}
		SetToast(e, ToastSuccess, "Import deleted")
		return e.NoContent(http.StatusNoContent)
	}
}

// loadImport resolves the {id} path value. When ok is false the response has
// already been written and err is what the handler should return.
func loadImport(app *pocketbase.PocketBase, e *core.RequestEvent) (stored *services.StoredBOQImport, ok bool, err error) {
	id := e.Request.PathValue("id")
	if id == "" {
		return nil, false, e.String(http.StatusBadRequest, "Missing import ID")
	}
	stored, err = services.LoadBOQImport(app, id)
	if err != nil {
		if errors.Is(err, services.ErrImportNotFound) {
			return nil, false, e.String(http.StatusNotFound, "Import not found")
		}
		zap.L().Error("boq_import: load", zap.String("import", id), zap.Error(err))
		return nil, false, e.String(http.StatusInternalServerError, "Failed to load import")
	}
	return stored, true, nil
}
