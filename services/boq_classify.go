package services

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	maxHeadingRunes = 100
	maxHeadingWords = 12
	maxTotalWords   = 8
)

var pageArtifactRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^page\s*(no\.?\s*)?\d+(\s*(of|/)\s*\d+)?$`),
	regexp.MustCompile(`(?i)^(sheet|pg\.?|p\.)\s*(no\.?\s*)?\d+(\s*(of|/)\s*\d+)?$`),
	regexp.MustCompile(`^[-–]\s*\d{1,4}\s*[-–]$`),
	regexp.MustCompile(`^\d{1,4}\s*/\s*\d{1,4}$`),
	regexp.MustCompile(`(?i)^\(?(contd|cont|continued)\.*\)?$`),
	regexp.MustCompile(`(?i)^\(?continued\s+(on|from)\s+(the\s+)?(next|previous|last)\s+page\)?\.?$`),
	regexp.MustCompile(`(?i)^(printed|generated|print date|printed on|generated on)\b`),
	regexp.MustCompile(`(?i)^(c/f|b/f|carried\s+(forward|over)|brought\s+(forward|over))\.?$`),
}

var (
	carryForwardRe  = regexp.MustCompile(`(?i)^(c/f|b/f|carried\s+(forward|over)|brought\s+(forward|over))\b`)
	noteLexiconRe   = regexp.MustCompile(`(?i)^(note|notes|n\.\s?b\.?|nb|remark|remarks|important|general\s+notes?|special\s+notes?|specification\s+notes?|instructions?|conditions?)\b`)
	sectionMarkerRe = regexp.MustCompile(`^(?:(?i:(?:part|section|schedule|bill)(?:\s*no\.?)?\s*[-:]?\s*(?:[a-z]|[ivxlc]{1,6}|\d+))|[A-Z]|[IVXLC]{1,6})[.)]?$`)
	wordSplitRe     = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	markerWordRe    = regexp.MustCompile(`^([a-z]|\d+|x{0,3}(ix|iv|v?i{0,3}))$`)
)

// totalLeadWords may precede the total keyword of a total line.
var totalLeadWords = map[string]bool{
	"sub": true, "grand": true, "net": true, "gross": true, "page": true, "the": true,
	"section": true, "part": true, "bill": true, "schedule": true, "overall": true,
	"final": true, "cumulative": true,
}

// totalTailWords may follow the total keyword of a total line.
var totalTailWords = map[string]bool{
	"of": true, "for": true, "to": true, "in": true, "amount": true, "amt": true,
	"cost": true, "value": true, "price": true, "sum": true, "carried": true,
	"brought": true, "c": true, "b": true, "cf": true, "bf": true, "rs": true,
	"inr": true, "usd": true, "eur": true, "gbp": true, "aed": true, "excluding": true,
	"including": true, "excl": true, "incl": true, "section": true, "part": true,
	"bill": true, "schedule": true, "page": true,
}

func isTotalWord(w string) bool {
	return w == "total" || w == "totals" || w == "subtotal"
}

// titleCaseMinorWords may stay lower case inside a Title Case heading.
var titleCaseMinorWords = map[string]bool{
	"a": true, "an": true, "and": true, "or": true, "of": true, "the": true,
	"in": true, "for": true, "to": true, "with": true, "at": true, "on": true,
	"by": true, "from": true, "including": true,
}

// Classify assigns the semantic role of a merged row. Rules are evaluated in
// priority order: page artifact, grand total / subtotal, category heading,
// remark, data item.
func Classify(row MergedRow) RowRole {
	numeric := row.hasNumericPayload()
	label := row.label()
	hasSrNo := row.SrNo != ""

	if !numeric && isPageArtifactText(label) {
		return RolePageArtifact
	}

	if row.OffGrid {
		return RoleRemark
	}

	if !hasSrNo && row.hasAmount() && (isTotalText(label) || carryForwardRe.MatchString(label)) {
		if isGrandTotalText(label) {
			return RoleGrandTotal
		}
		return RoleSubtotal
	}

	if !numeric {
		marker := hasSrNo && isSectionMarker(row.SrNo)
		if (!hasSrNo || marker) && isHeadingText(label) && !isTotalText(label) {
			return RoleCategoryHeading
		}
		if !hasSrNo || marker {
			return RoleRemark
		}
	}

	return RoleDataItem
}

func isPageArtifactText(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, re := range pageArtifactRes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func words(s string) []string {
	var out []string
	for _, w := range wordSplitRe.Split(s, -1) {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// isTotalText reports whether "total" is the dominant token of a short label:
// the label ends on it, or it opens the label after lead words such as "sub"
// or "grand" and is followed by a connector like "of", "amount" or "rs".
// "Total station instrument" is not a total line.
func isTotalText(s string) bool {
	ws := words(strings.ToLower(s))
	if len(ws) == 0 || len(ws) > maxTotalWords {
		return false
	}
	at := -1
	for i, w := range ws {
		if isTotalWord(w) {
			at = i
			break
		}
	}
	switch {
	case at < 0:
		return false
	case isTotalWord(ws[len(ws)-1]):
		return true
	}
	for _, w := range ws[:at] {
		if !totalLeadWords[w] && !markerWordRe.MatchString(w) {
			return false
		}
	}
	next := ws[at+1]
	return totalTailWords[next] || markerWordRe.MatchString(next)
}

func isGrandTotalText(s string) bool {
	for _, w := range words(strings.ToLower(s)) {
		if w == "grand" {
			return true
		}
	}
	return false
}

func isSectionMarker(srNo string) bool {
	return sectionMarkerRe.MatchString(strings.TrimSpace(srNo))
}

func isNoteText(s string) bool {
	return noteLexiconRe.MatchString(strings.TrimSpace(s))
}

// isHeadingText reports whether s is short ALL CAPS or Title Case text
// without sentence punctuation.
func isHeadingText(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len([]rune(s)) > maxHeadingRunes || isNoteText(s) {
		return false
	}
	if strings.ContainsAny(s, ":;?!") || strings.HasSuffix(s, ".") {
		return false
	}
	ws := words(s)
	if len(ws) == 0 || len(ws) > maxHeadingWords {
		return false
	}
	return isAllCaps(s) || isTitleCase(ws)
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

func isTitleCase(ws []string) bool {
	significant := 0
	for _, w := range ws {
		first := []rune(w)[0]
		if !unicode.IsLetter(first) {
			continue
		}
		if titleCaseMinorWords[strings.ToLower(w)] {
			continue
		}
		if !unicode.IsUpper(first) {
			return false
		}
		significant++
	}
	return significant > 0
}
