package services

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// DefaultAmountTolerance is the relative difference allowed between a
// declared amount and quantity × rate before a warning is raised.
const DefaultAmountTolerance = 0.005

var (
	knownCodeRe = regexp.MustCompile(`(?i)\b(DSR|CPWD|SOR|MORTH|PWD|SSR|DAR|NHAI|MES)\s*(?:item\s*)?(?:no\.?\s*)?[-/:.]?\s*(\d+(?:\.\d+)*[A-Za-z]?)\b`)
	genericCodeRe = regexp.MustCompile(`\b([A-Z]{2,6})-(\d+(?:[./]\d+)*[A-Z]?)\b`)

	numericSerialRe = regexp.MustCompile(`^\d+(?:\.\d+)*$`)
	altSerialRe     = regexp.MustCompile(`^(\d+(?:\.\d+)*)\s*[-.]?\s*\(?([A-Za-z])\)?$`)
)

// standardsPrefixes name published standards, not schedule item codes.
var standardsPrefixes = map[string]bool{
	"IS": true, "BS": true, "ISO": true, "EN": true, "ASTM": true, "IEC": true, "DIN": true,
}

// extractItemCode returns the first schedule item code found in the
// description, normalised as PREFIX-NUMBER. The description is not changed.
func extractItemCode(description string) (string, bool) {
	type hit struct {
		start  int
		prefix string
		number string
	}
	var hits []hit
	for _, m := range knownCodeRe.FindAllStringSubmatchIndex(description, -1) {
		hits = append(hits, hit{m[0], description[m[2]:m[3]], description[m[4]:m[5]]})
	}
	for _, m := range genericCodeRe.FindAllStringSubmatchIndex(description, -1) {
		prefix := description[m[2]:m[3]]
		if standardsPrefixes[prefix] {
			continue
		}
		hits = append(hits, hit{m[0], prefix, description[m[4]:m[5]]})
	}
	if len(hits) == 0 {
		return "", false
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
	return strings.ToUpper(hits[0].prefix) + "-" + strings.ToUpper(hits[0].number), true
}

func isLumpSumUnit(unit string) bool {
	letters := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, unit)
	return letters == "ls" || letters == "lumpsum"
}

func roundDerived(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// itemBuilder turns classified rows of one sheet into canonical rows. It
// carries the sheet context: current category, currency default and the
// serials seen so far.
type itemBuilder struct {
	sheet       string
	tolerance   float64
	currency    string
	category    string
	subCategory string
	seenSerials map[string]bool
	warnings    []string
}

func newItemBuilder(sheet, defaultCurrency string, tolerance float64) *itemBuilder {
	if tolerance <= 0 {
		tolerance = DefaultAmountTolerance
	}
	return &itemBuilder{
		sheet:       sheet,
		tolerance:   tolerance,
		currency:    defaultCurrency,
		seenSerials: make(map[string]bool),
	}
}

func (b *itemBuilder) warn(row MergedRow, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.warnings = append(b.warnings, fmt.Sprintf("%s row %d: %s", b.sheet, row.RawRowIndex, msg))
}

// number parses a raw numeric cell, warning when it holds text.
func (b *itemBuilder) number(row MergedRow, field, raw string) *float64 {
	v, err := NormalizeNumeric(raw)
	if err != nil {
		b.warn(row, "could not parse %s %q", field, raw)
		return nil
	}
	return v
}

// observeCurrency makes the first explicit marker among cells the sheet
// default for the rows that follow.
func (b *itemBuilder) observeCurrency(cells ...string) {
	for _, c := range cells {
		if code, ok := DetectCurrency(c); ok {
			b.currency = code
			return
		}
	}
}

func (b *itemBuilder) enterHeading(row MergedRow) {
	text := row.Description
	if text == "" {
		text = row.label()
	}
	marker := row.SrNo != "" && isSectionMarker(row.SrNo)
	if b.category == "" || marker || isAllCaps(text) {
		b.category = text
		b.subCategory = ""
		return
	}
	b.subCategory = text
}

// Build produces the canonical row for a classified merged row.
func (b *itemBuilder) Build(row MergedRow, role RowRole) StandardBOQRow {
	out := StandardBOQRow{
		SrNo:        row.SrNo,
		Description: row.Description,
		Unit:        row.Unit,
		Notes:       row.Notes,
		SheetName:   b.sheet,
		RawRowIndex: row.RawRowIndex,
		SourceRows:  row.SourceRows,
		Original:    row.Original,
	}
	out.setRole(role)

	switch role {
	case RoleCategoryHeading:
		b.enterHeading(row)
	case RoleSubtotal, RoleGrandTotal:
		b.observeCurrency(row.Amount)
		out.TenderAmount = b.number(row, "amount", row.Amount)
	case RoleRemark:
	case RoleDataItem:
		b.buildItem(row, &out)
	case RolePageArtifact:
		return out
	}

	out.Category = b.category
	out.SubCategory = b.subCategory
	out.Currency = b.currency
	return out
}

func (b *itemBuilder) buildItem(row MergedRow, out *StandardBOQRow) {
	if code := strings.TrimSpace(row.ItemCode); code != "" {
		out.ItemCode = stringPtr(code)
	} else if code, ok := extractItemCode(row.Description); ok {
		out.ItemCode = stringPtr(code)
	}

	qty := b.number(row, "quantity", row.Quantity)
	rate := b.number(row, "rate", row.Rate)
	amount := b.number(row, "amount", row.Amount)

	currencyCells := []string{row.Rate, row.Amount}
	if len(row.RateComponents) > 0 {
		var sum float64
		components := make(map[string]float64)
		for _, f := range rateComponentFields {
			raw, ok := row.RateComponents[f]
			if !ok {
				continue
			}
			currencyCells = append(currencyCells, raw)
			if v := b.number(row, string(f), raw); v != nil {
				components[string(f)] = *v
				sum += *v
			}
		}
		if len(components) > 0 {
			out.RateComponents = components
			switch {
			case rate == nil:
				rate = floatPtr(roundDerived(sum))
			case !b.withinTolerance(*rate, sum):
				b.warn(row, "rate %s differs from the sum of its components %s",
					FormatAmount(*rate, b.currency), FormatAmount(sum, b.currency))
			}
		}
	}
	b.observeCurrency(append(currencyCells, row.Quantity)...)

	if (amount != nil && qty == nil && rate == nil) || isLumpSumUnit(row.Unit) {
		out.LumpSum = true
		if qty == nil {
			qty = floatPtr(1)
		}
		if rate == nil && amount != nil {
			rate = floatPtr(*amount)
		}
		if rate == nil && amount == nil {
			b.warn(row, "lump sum item has no amount")
		}
	}

	switch {
	case qty != nil && rate != nil && amount == nil:
		amount = floatPtr(roundDerived(*qty * *rate))
	case qty != nil && amount != nil && rate == nil:
		if *qty > 0 {
			rate = floatPtr(roundDerived(*amount / *qty))
		} else {
			b.warn(row, "rate not derived: quantity is %v", *qty)
		}
	case qty == nil && rate != nil && amount != nil:
		b.warn(row, "quantity left empty: not derived from rate and amount")
	case qty != nil && rate != nil && amount != nil:
		if computed := *qty * *rate; !b.withinTolerance(*amount, computed) {
			b.warn(row, "amount %s differs from quantity × rate %s",
				FormatAmount(*amount, b.currency), FormatAmount(computed, b.currency))
		}
	case qty == nil && rate == nil && amount == nil:
		b.warn(row, "item %q has no quantity, rate or amount", out.SrNo)
	}

	out.Quantity, out.TenderRate, out.TenderAmount = qty, rate, amount

	switch sr := out.SrNo; {
	case numericSerialRe.MatchString(sr):
		if b.seenSerials[sr] {
			b.warn(row, "duplicate serial number %q", sr)
		}
		b.seenSerials[sr] = true
	default:
		if m := altSerialRe.FindStringSubmatch(sr); m != nil && b.seenSerials[m[1]] {
			out.AltGroup = stringPtr(m[1])
		}
	}
}

func (b *itemBuilder) withinTolerance(declared, computed float64) bool {
	diff := math.Abs(declared - computed)
	if diff <= 0.01 {
		return true
	}
	ref := math.Max(math.Abs(declared), math.Abs(computed))
	return ref == 0 || diff/ref <= b.tolerance
}
