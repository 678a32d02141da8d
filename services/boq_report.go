package services

// Reasons recorded on SkippedRow.
const (
	SkipBlank          = "blank"
	SkipBanner         = "banner"
	SkipRepeatedHeader = "repeated header"
	SkipPageArtifact   = "page artifact"

	SkipColumnNumbering = "column numbering"
)

// reportBuilder accumulates the report of a single parse call. It is created
// per call and discarded once build has run.
type reportBuilder struct {
	threshold float64
	report    ParseReport
	weakest   int
}

func newReportBuilder(threshold float64) *reportBuilder {
	return &reportBuilder{
		threshold: threshold,
		weakest:   -1,
		report: ParseReport{
			Warnings:         []string{},
			SuggestedMapping: ColumnMapping{},
			Sheets:           []SheetReport{},
		},
	}
}

func (r *reportBuilder) warn(msgs ...string) {
	r.report.Warnings = append(r.report.Warnings, msgs...)
}

func (r *reportBuilder) skip(sheet *SheetReport, rawRowIndex int, reason, text string) {
	sheet.RowsSkipped++
	r.report.SkippedRows = append(r.report.SkippedRows, SkippedRow{
		SheetName:   sheet.Name,
		RawRowIndex: rawRowIndex,
		Reason:      reason,
		Text:        text,
	})
}

// addSheet records a finished sheet. Empty sheets count towards the totals
// but never towards the confidence minimum.
func (r *reportBuilder) addSheet(sheet SheetReport) {
	r.report.RowsParsed += sheet.RowsParsed
	r.report.RowsSkipped += sheet.RowsSkipped
	r.report.Sheets = append(r.report.Sheets, sheet)
	if sheet.Empty {
		return
	}
	idx := len(r.report.Sheets) - 1
	if r.weakest < 0 || sheet.Confidence < r.report.Sheets[r.weakest].Confidence {
		r.weakest = idx
	}
}

func (r *reportBuilder) build() ParseReport {
	out := r.report
	if r.weakest < 0 {
		out.AmbiguousHeaderConfidence = 0
		out.NeedsManualMapping = true
		out.Warnings = append(out.Warnings, "no sheet contains data rows")
		return out
	}
	weakest := out.Sheets[r.weakest]
	out.AmbiguousHeaderConfidence = weakest.Confidence
	out.SuggestedMapping = weakest.Mapping.Clone()
	out.DetectedColumns = weakest.DetectedColumns
	out.NeedsManualMapping = weakest.Confidence < r.threshold
	return out
}
