package services

import (
	"strings"
)

// SheetRow is one raw worksheet row. Index is the 1-based row number in the
// sheet.
type SheetRow struct {
	Index int
	Cells []string
}

// MergedRow is a logical BOQ row after continuation lines have been folded
// into their owning item. Numeric fields hold the raw cell text.
type MergedRow struct {
	RawRowIndex    int
	SourceRows     []int
	Original       [][]string
	SrNo           string
	Description    string
	Unit           string
	ItemCode       string
	Notes          string
	Quantity       string
	Rate           string
	Amount         string
	RateComponents map[CanonicalField]string
	// OffGrid marks a row whose only content sits in unmapped columns. Its
	// Description holds that text.
	OffGrid bool
}

// newMergedRow extracts the mapped fields of a raw row. When no description
// column is mapped, the unmapped text cells stand in for it.
func newMergedRow(row SheetRow, mapping ColumnMapping) MergedRow {
	m := MergedRow{
		RawRowIndex: row.Index,
		SourceRows:  []int{row.Index},
		Original:    [][]string{append([]string(nil), row.Cells...)},
		SrNo:        strings.Trim(mapping.Cell(row.Cells, FieldSrNo), " ."),
		Description: collapseSpaces(mapping.Cell(row.Cells, FieldDescription)),
		Unit:        mapping.Cell(row.Cells, FieldUnit),
		ItemCode:    mapping.Cell(row.Cells, FieldItemCode),
		Notes:       mapping.Cell(row.Cells, FieldRemark),
		Quantity:    mapping.Cell(row.Cells, FieldQuantity),
		Rate:        mapping.Cell(row.Cells, FieldRate),
		Amount:      mapping.Cell(row.Cells, FieldAmount),
	}
	for _, f := range rateComponentFields {
		if v := mapping.Cell(row.Cells, f); v != "" {
			if m.RateComponents == nil {
				m.RateComponents = make(map[CanonicalField]string)
			}
			m.RateComponents[f] = v
		}
	}

	if _, ok := mapping[FieldDescription]; !ok {
		m.Description = unmappedText(row.Cells, mapping, len(mapping) > 0)
		return m
	}
	if m.isBlank() {
		if text := unmappedText(row.Cells, mapping, false); text != "" {
			m.Description = text
			m.OffGrid = true
		}
	}
	return m
}

// unmappedText joins the non-empty cells outside the mapped columns.
func unmappedText(cells []string, mapping ColumnMapping, skipNumbers bool) string {
	mapped := make(map[int]bool, len(mapping))
	for _, idx := range mapping {
		mapped[idx] = true
	}
	var parts []string
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" || mapped[i] {
			continue
		}
		if skipNumbers && isNumericCell(c) {
			continue
		}
		parts = append(parts, c)
	}
	return collapseSpaces(strings.Join(parts, " "))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

// label is the text used for classification: the description, or the serial
// cell when the description is empty.
func (m MergedRow) label() string {
	if m.Description != "" {
		return m.Description
	}
	if m.SrNo != "" {
		return m.SrNo
	}
	return m.Notes
}

func (m MergedRow) isBlank() bool {
	if m.SrNo != "" || m.Description != "" || m.Unit != "" || m.ItemCode != "" || m.Notes != "" ||
		m.Quantity != "" || m.Rate != "" || m.Amount != "" {
		return false
	}
	return len(m.RateComponents) == 0
}

func isNumericCell(s string) bool {
	v, _ := NormalizeNumeric(s)
	return v != nil
}

// hasNumericPayload reports whether quantity, rate, amount or a rate
// component holds a number.
func (m MergedRow) hasNumericPayload() bool {
	if isNumericCell(m.Quantity) || isNumericCell(m.Rate) || isNumericCell(m.Amount) {
		return true
	}
	for _, v := range m.RateComponents {
		if isNumericCell(v) {
			return true
		}
	}
	return false
}

func (m MergedRow) hasAmount() bool {
	return isNumericCell(m.Amount)
}

// appendContinuation folds a description-only row into m. Structural fields
// of m are kept; blanks are filled from the continuation. Text found in the
// numeric columns of c, such as "as reqd", goes to Notes.
func (m *MergedRow) appendContinuation(c MergedRow) {
	m.Description = joinText(m.Description, c.Description)
	m.Notes = joinText(m.Notes, c.Notes)
	for _, v := range c.numericColumnText() {
		m.Notes = joinText(m.Notes, v)
	}
	if m.Unit == "" {
		m.Unit = c.Unit
	}
	if m.ItemCode == "" {
		m.ItemCode = c.ItemCode
	}
	m.SourceRows = append(m.SourceRows, c.SourceRows...)
	m.Original = append(m.Original, c.Original...)
}

// numericColumnText returns the non-numeric text in the quantity, rate and
// amount columns and in the rate components, in column order.
func (m MergedRow) numericColumnText() []string {
	var out []string
	for _, v := range []string{m.Quantity, m.Rate, m.Amount} {
		if v = strings.TrimSpace(v); v != "" && !isNumericCell(v) {
			out = append(out, v)
		}
	}
	for _, f := range rateComponentFields {
		if v := strings.TrimSpace(m.RateComponents[f]); v != "" && !isNumericCell(v) {
			out = append(out, v)
		}
	}
	return out
}

// absorbPayload folds the authoritative numeric row of an item into the
// serial row that opened it. Numbers and unit come from p.
func (m *MergedRow) absorbPayload(p MergedRow) {
	m.Description = joinText(m.Description, p.Description)
	m.Notes = joinText(m.Notes, p.Notes)
	m.Quantity = p.Quantity
	m.Rate = p.Rate
	m.Amount = p.Amount
	m.RateComponents = p.RateComponents
	if p.Unit != "" {
		m.Unit = p.Unit
	}
	if m.ItemCode == "" {
		m.ItemCode = p.ItemCode
	}
	m.SourceRows = append(m.SourceRows, p.SourceRows...)
	m.Original = append(m.Original, p.Original...)
}

// isHardBoundary reports rows that always close the open item: totals and
// carried-forward lines.
func isHardBoundary(m MergedRow) bool {
	label := m.label()
	return isTotalText(label) || carryForwardRe.MatchString(label)
}

// isSoftBoundary reports description-only rows that close an item which
// already has its numbers: headings and notes.
func isSoftBoundary(m MergedRow) bool {
	label := m.label()
	return isHeadingText(label) || isNoteText(label)
}

// breaksPendingItem reports a heading that closes a serial row still waiting
// for its numbers. Only ALL CAPS and section-marker headings qualify, and an
// ALL CAPS line continues an item whose own text is ALL CAPS.
func breaksPendingItem(open, m MergedRow) bool {
	label := m.label()
	if !isHeadingText(label) {
		return false
	}
	if isSectionMarker(label) {
		return true
	}
	return isAllCaps(label) && !isAllCaps(open.Description)
}

// MergeMultiLineRows folds continuation rows into the item they belong to in
// a single forward pass. A row is a continuation only when it has no serial
// and no numeric payload. A serial row without numbers adopts the numbers of
// the next serial-less numeric row. Merging never crosses a heading, total
// or carried-forward row. Pagination artifacts are passed through without
// closing the open item. Off-grid rows never merge; while a serial row waits
// for its numbers they are held back and emitted after it.
func MergeMultiLineRows(rows []SheetRow, mapping ColumnMapping) []MergedRow {
	var (
		out            []MergedRow
		held           []MergedRow
		open           *MergedRow
		openHasNumbers bool
	)
	flush := func() {
		if open != nil {
			out = append(out, *open)
			open = nil
		}
		out = append(out, held...)
		held = nil
	}

	for _, r := range rows {
		m := newMergedRow(r, mapping)
		if m.isBlank() {
			continue
		}
		numeric := m.hasNumericPayload()

		switch {
		case !numeric && isPageArtifactText(m.label()):
			out = append(out, m)

		case m.OffGrid:
			if open != nil && !openHasNumbers {
				held = append(held, m)
				continue
			}
			flush()
			out = append(out, m)

		case m.SrNo != "":
			flush()
			if !numeric && isSectionMarker(m.SrNo) {
				out = append(out, m)
				continue
			}
			open = &m
			openHasNumbers = numeric

		case isHardBoundary(m):
			flush()
			out = append(out, m)

		case numeric:
			if open != nil && !openHasNumbers {
				open.absorbPayload(m)
			} else {
				flush()
				open = &m
			}
			openHasNumbers = true

		default:
			if open != nil && !openHasNumbers && breaksPendingItem(*open, m) {
				flush()
				out = append(out, m)
				continue
			}
			if open != nil && (!openHasNumbers || !isSoftBoundary(m)) {
				open.appendContinuation(m)
				continue
			}
			flush()
			out = append(out, m)
		}
	}
	flush()
	return out
}
