package services

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Parser defaults.
const (
	DefaultHeaderScanLimit       = 25
	DefaultMinHeaderConfidence   = 0.5
	DefaultManualReviewThreshold = 0.8
	DefaultCurrency              = "INR"
)

// Options tune a parse call. Zero values fall back to the defaults.
type Options struct {
	HeaderScanLimit       int
	MinHeaderConfidence   float64
	ManualReviewThreshold float64
	AmountTolerance       float64
	DefaultCurrency       string

	// Mapping, when set, replaces header detection on every sheet. HeaderRow
	// is the 1-based row holding the captions it was built from, or 0.
	Mapping   ColumnMapping
	HeaderRow int

	Logger *zap.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		HeaderScanLimit:       DefaultHeaderScanLimit,
		MinHeaderConfidence:   DefaultMinHeaderConfidence,
		ManualReviewThreshold: DefaultManualReviewThreshold,
		AmountTolerance:       DefaultAmountTolerance,
		DefaultCurrency:       DefaultCurrency,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HeaderScanLimit <= 0 {
		o.HeaderScanLimit = d.HeaderScanLimit
	}
	if o.MinHeaderConfidence <= 0 {
		o.MinHeaderConfidence = d.MinHeaderConfidence
	}
	if o.ManualReviewThreshold <= 0 {
		o.ManualReviewThreshold = d.ManualReviewThreshold
	}
	if o.AmountTolerance <= 0 {
		o.AmountTolerance = d.AmountTolerance
	}
	o.DefaultCurrency = canonicalCurrency(o.DefaultCurrency)
	if o.Logger == nil {
		o.Logger = zap.L()
	}
	return o
}

// Parser converts BOQ workbooks into canonical rows. A Parser holds no
// mutable state and may be shared between goroutines.
type Parser struct {
	opts Options
	log  *zap.Logger
}

// NewParser returns a parser using opts, with defaults filled in.
func NewParser(opts Options) *Parser {
	opts = opts.withDefaults()
	return &Parser{opts: opts, log: opts.Logger}
}

// ParseBOQFile decodes buf and parses every sheet in it. Only an unreadable
// buffer is an error; every other irregularity becomes a report warning.
func ParseBOQFile(buf []byte, filename string, opts Options) (*ParseResult, error) {
	return NewParser(opts).Parse(buf, filename)
}

// Parse decodes buf and parses every sheet in it.
func (p *Parser) Parse(buf []byte, filename string) (*ParseResult, error) {
	wb, err := DecodeWorkbook(buf, filename)
	if err != nil {
		p.log.Debug("boq: decode failed", zap.String("file", filename), zap.Error(err))
		return nil, err
	}

	rep := newReportBuilder(p.opts.ManualReviewThreshold)
	parsed := ParsedBOQ{SourceFile: filename, Rows: []StandardBOQRow{}}
	for _, sheet := range wb.Sheets {
		rows, sr := p.parseSheet(sheet, rep)
		parsed.Rows = append(parsed.Rows, rows...)
		if parsed.Currency == "" && !sr.Empty {
			parsed.Currency = sr.Currency
		}
		rep.addSheet(sr)
	}
	if parsed.Currency == "" {
		parsed.Currency = p.opts.DefaultCurrency
	}

	report := rep.build()
	p.log.Debug("boq: parsed",
		zap.String("file", filename),
		zap.String("format", wb.Format),
		zap.Int("sheets", len(wb.Sheets)),
		zap.Int("rows_parsed", report.RowsParsed),
		zap.Int("rows_skipped", report.RowsSkipped),
		zap.Float64("confidence", report.AmbiguousHeaderConfidence),
	)
	return &ParseResult{ParsedBOQ: parsed, Report: report}, nil
}

// headerChoice is the header located on one sheet. first and last are the
// 1-based rows it spans; both are 0 when the sheet has no header.
type headerChoice struct {
	first, last int
	mapping     HeaderMapping
	captions    []string
}

func (p *Parser) parseSheet(sheet Sheet, rep *reportBuilder) ([]StandardBOQRow, SheetReport) {
	sr := SheetReport{Name: sheet.Name, Mapping: ColumnMapping{}, Currency: p.opts.DefaultCurrency}
	if isBlankSheet(sheet.Rows) {
		sr.Empty = true
		for i := range sheet.Rows {
			rep.skip(&sr, i+1, SkipBlank, "")
		}
		return nil, sr
	}

	header, warning := p.locateHeader(sheet)
	if warning != "" {
		rep.warn(warning)
	}
	sr.HeaderRowIndex = header.first
	sr.Confidence = header.mapping.ConfidenceScore
	sr.Mapping = header.mapping.Mapping.Clone()
	sr.DetectedColumns = header.captions
	sr.Currency = p.headerCurrency(sheet, header)

	p.log.Debug("boq: header located",
		zap.String("sheet", sheet.Name),
		zap.Int("row", header.first),
		zap.Float64("confidence", sr.Confidence),
		zap.Int("mapped_fields", len(sr.Mapping)),
	)

	var body []SheetRow
	for i, cells := range sheet.Rows {
		idx := i + 1
		switch {
		case header.first > 0 && idx >= header.first && idx <= header.last:
		case isBlankCells(cells):
			rep.skip(&sr, idx, SkipBlank, "")
		case idx < header.first:
			rep.skip(&sr, idx, SkipBanner, rowText(cells))
		case p.isRepeatedHeader(cells):
			rep.skip(&sr, idx, SkipRepeatedHeader, rowText(cells))
		case isColumnNumbering(cells):
			rep.skip(&sr, idx, SkipColumnNumbering, rowText(cells))
		default:
			body = append(body, SheetRow{Index: idx, Cells: cells})
		}
	}

	builder := newItemBuilder(sheet.Name, sr.Currency, p.opts.AmountTolerance)
	var out []StandardBOQRow
	for _, m := range MergeMultiLineRows(body, sr.Mapping) {
		role := Classify(m)
		if role == RolePageArtifact {
			for i, idx := range m.SourceRows {
				rep.skip(&sr, idx, SkipPageArtifact, rowText(m.Original[i]))
			}
			continue
		}
		out = append(out, builder.Build(m, role))
		sr.RowsParsed += len(m.SourceRows)
	}
	rep.warn(builder.warnings...)
	sr.Currency = builder.currency
	return out, sr
}

// locateHeader finds the header row of a sheet. A resubmitted mapping wins;
// otherwise the first row within the scan limit that reaches the confidence
// floor is taken, then the best row seen, then no header at all.
func (p *Parser) locateHeader(sheet Sheet) (headerChoice, string) {
	if p.opts.Mapping != nil {
		h := headerChoice{
			first:   p.opts.HeaderRow,
			last:    p.opts.HeaderRow,
			mapping: HeaderMapping{Mapping: p.opts.Mapping.Clone(), ConfidenceScore: 1},
		}
		if h.first < 0 || h.first > len(sheet.Rows) {
			h.first, h.last = 0, 0
		}
		if h.first > 0 {
			h.captions = headerCaptions(sheet.Rows[h.first-1])
		}
		return h, ""
	}

	limit := p.opts.HeaderScanLimit
	if limit > len(sheet.Rows) {
		limit = len(sheet.Rows)
	}
	var best headerChoice
	for i := 0; i < limit; i++ {
		cells := sheet.Rows[i]
		if isBlankCells(cells) || rowHasNumber(cells) {
			continue
		}
		h := headerChoice{first: i + 1, last: i + 1, mapping: MapHeaders(cells), captions: headerCaptions(cells)}
		if i+1 < len(sheet.Rows) {
			next := sheet.Rows[i+1]
			if !isBlankCells(next) && !rowHasNumber(next) {
				combined := combineHeaderRows(cells, next)
				if cm := MapHeaders(combined); betterHeader(cm, h.mapping) {
					h = headerChoice{first: i + 1, last: i + 2, mapping: cm, captions: headerCaptions(combined)}
				}
			}
		}
		if h.mapping.ConfidenceScore >= p.opts.MinHeaderConfidence {
			return h, ""
		}
		if h.mapping.ConfidenceScore > best.mapping.ConfidenceScore {
			best = h
		}
	}

	if best.first > 0 {
		return best, fmt.Sprintf("%s: no confident header row; using row %d (confidence %.2f)",
			sheet.Name, best.first, best.mapping.ConfidenceScore)
	}
	return headerChoice{mapping: HeaderMapping{Mapping: ColumnMapping{}}},
		fmt.Sprintf("%s: no header row found in the first %d rows; rows imported as descriptions", sheet.Name, limit)
}

// betterHeader reports whether a stacked two-row header beats the single row:
// higher confidence, or equal confidence with more columns mapped.
func betterHeader(combined, single HeaderMapping) bool {
	if combined.ConfidenceScore != single.ConfidenceScore {
		return combined.ConfidenceScore > single.ConfidenceScore
	}
	return len(combined.Mapping) > len(single.Mapping)
}

// headerCurrency returns the currency named in the rate or amount captions,
// falling back to the configured default.
func (p *Parser) headerCurrency(sheet Sheet, h headerChoice) string {
	if h.first == 0 {
		return p.opts.DefaultCurrency
	}
	for _, f := range []CanonicalField{FieldRate, FieldAmount} {
		for idx := h.first; idx <= h.last; idx++ {
			if code, ok := DetectCurrency(h.mapping.Mapping.Cell(sheet.Rows[idx-1], f)); ok {
				return code
			}
		}
	}
	return p.opts.DefaultCurrency
}

// isRepeatedHeader reports header rows re-printed on later pages.
func (p *Parser) isRepeatedHeader(cells []string) bool {
	if rowHasNumber(cells) {
		return false
	}
	return MapHeaders(cells).ConfidenceScore >= p.opts.MinHeaderConfidence
}

// isColumnNumbering reports the "1 | 2 | 3 | ..." row that many tender
// documents print under the header.
func isColumnNumbering(cells []string) bool {
	n := 0
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if c != strconv.Itoa(n+1) {
			return false
		}
		n++
	}
	return n >= 4
}

func rowHasNumber(cells []string) bool {
	for _, c := range cells {
		if isNumericCell(c) {
			return true
		}
	}
	return false
}

func isBlankSheet(rows [][]string) bool {
	for _, r := range rows {
		if !isBlankCells(r) {
			return false
		}
	}
	return true
}

func rowText(cells []string) string {
	return strings.Join(headerCaptions(cells), " | ")
}
