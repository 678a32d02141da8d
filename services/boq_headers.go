package services

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	exactMatchScore     = 1.0
	minAcceptScore      = 0.4
	optionalFieldWeight = 0.25
)

// headerSynonyms lists the captions recognised for each canonical field.
// Entries are normalised once by buildSynonymIndex and never modified.
var headerSynonyms = map[CanonicalField][]string{
	FieldSrNo: {
		"s no", "sr no", "sl no", "serial no", "serial number", "serial", "sno",
		"srno", "slno", "no", "item no", "item number", "sr", "sl", "s n",
		"sequence", "ref no",
	},
	FieldDescription: {
		"description", "description of item", "description of items",
		"description of work", "description of works", "item description",
		"work description", "particulars", "particular", "specification",
		"name of item", "name of work", "item", "items", "details", "scope of work",
	},
	FieldQuantity: {
		"quantity", "qty", "qnty", "qtty", "quantities", "tender quantity",
		"estimated quantity", "est qty", "boq qty",
	},
	FieldUnit: {
		"unit", "units", "uom", "unit of measurement", "unit of measure", "measurement unit",
	},
	FieldRate: {
		"rate", "rates", "unit rate", "rate per unit", "unit price", "price",
		"quoted rate", "tender rate", "basic rate", "rate per", "composite rate",
	},
	FieldAmount: {
		"amount", "amt", "total amount", "total", "tender amount", "total cost",
		"cost", "value", "total value", "amount total", "net amount",
	},
	FieldItemCode: {
		"item code", "code", "dsr code", "dsr no", "dsr item no", "cpwd code",
		"sor code", "sor no", "schedule ref", "schedule reference", "ref code",
	},
	FieldRemark: {
		"remark", "remarks", "note", "notes", "comment", "comments",
	},
	FieldMaterialRate: {
		"material rate", "supply rate", "rate material", "rate supply",
		"material", "supply", "material cost",
	},
	FieldLabourRate: {
		"labour rate", "labor rate", "installation rate", "erection rate",
		"rate labour", "rate labor", "labour", "labor", "installation", "labour cost",
	},
	FieldEquipmentRate: {
		"equipment rate", "machinery rate", "plant rate", "equipment", "machinery",
	},
}

// headerStopTokens are dropped from captions before matching.
var headerStopTokens = map[string]bool{
	"rs": true, "inr": true, "usd": true, "eur": true, "gbp": true, "aed": true,
	"in": true, "the": true,
}

type synonym struct {
	field   CanonicalField
	tokens  []string
	compact string
}

var (
	synonymIndex  = buildSynonymIndex()
	fieldPriority = buildFieldPriority()
)

func buildSynonymIndex() []synonym {
	var out []synonym
	for _, field := range append(append([]CanonicalField{}, RequiredFields...), OptionalFields...) {
		for _, s := range headerSynonyms[field] {
			tokens := headerTokens(s)
			if len(tokens) == 0 {
				continue
			}
			out = append(out, synonym{field: field, tokens: tokens, compact: strings.Join(tokens, "")})
		}
	}
	return out
}

func buildFieldPriority() map[CanonicalField]int {
	p := make(map[CanonicalField]int)
	for i, f := range RequiredFields {
		p[f] = i
	}
	for i, f := range OptionalFields {
		p[f] = len(RequiredFields) + i
	}
	return p
}

// headerTokens normalises a caption into lower-case word tokens.
func headerTokens(s string) []string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "#", " no ")
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	var tokens []string
	for _, t := range strings.Fields(s) {
		if headerStopTokens[t] {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) >= 3 && len(b) >= 3 {
		return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
	}
	return false
}

// containsRun reports whether needle occurs as a contiguous run in hay.
func containsRun(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// scoreCaption scores one normalised caption against one synonym.
func scoreCaption(tokens []string, compact string, syn synonym) float64 {
	if compact == syn.compact {
		return exactMatchScore
	}
	if containsRun(tokens, syn.tokens) {
		coverage := float64(len(syn.tokens)) / float64(len(tokens))
		return 0.6 + 0.3*coverage
	}

	matched := 0
	for _, st := range syn.tokens {
		for _, ht := range tokens {
			if tokensMatch(st, ht) {
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return 0
	}
	jaccard := float64(matched) / float64(len(syn.tokens)+len(tokens)-matched)
	return 0.8 * jaccard
}

type headerCandidate struct {
	field CanonicalField
	col   int
	score float64
}

// MapHeaders matches the captions of a candidate header row against the
// canonical fields. Fields without an acceptable match are left out of the
// mapping. Ties resolve to the leftmost column.
func MapHeaders(headerRow []string) HeaderMapping {
	var candidates []headerCandidate
	for col, caption := range headerRow {
		caption = strings.TrimSpace(caption)
		if caption == "" {
			continue
		}
		if v, _ := NormalizeNumeric(caption); v != nil {
			continue
		}
		tokens := headerTokens(caption)
		if len(tokens) == 0 {
			continue
		}
		compact := strings.Join(tokens, "")

		best := make(map[CanonicalField]float64)
		for _, syn := range synonymIndex {
			if s := scoreCaption(tokens, compact, syn); s > best[syn.field] {
				best[syn.field] = s
			}
		}
		for field, score := range best {
			if score >= minAcceptScore {
				candidates = append(candidates, headerCandidate{field: field, col: col, score: score})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if fieldPriority[a.field] != fieldPriority[b.field] {
			return fieldPriority[a.field] < fieldPriority[b.field]
		}
		return a.col < b.col
	})

	mapping := make(ColumnMapping)
	usedCols := make(map[int]bool)
	for _, c := range candidates {
		if _, taken := mapping[c.field]; taken || usedCols[c.col] {
			continue
		}
		mapping[c.field] = c.col
		usedCols[c.col] = true
	}

	return HeaderMapping{
		Mapping:         mapping,
		ConfidenceScore: mappingConfidence(mapping),
	}
}

// mappingConfidence weights required fields above optional ones. A mapping
// with all six required fields scores 1.0.
func mappingConfidence(mapping ColumnMapping) float64 {
	required := 0
	for _, f := range RequiredFields {
		if _, ok := mapping[f]; ok {
			required++
			continue
		}
		if f == FieldRate && hasRateComponent(mapping) {
			required++
		}
	}
	optional := 0
	for _, f := range OptionalFields {
		if _, ok := mapping[f]; ok {
			optional++
		}
	}
	score := (float64(required) + optionalFieldWeight*float64(optional)) / float64(len(RequiredFields))
	score = math.Min(1, score)
	return math.Round(score*1000) / 1000
}

func hasRateComponent(mapping ColumnMapping) bool {
	for _, f := range rateComponentFields {
		if _, ok := mapping[f]; ok {
			return true
		}
	}
	return false
}

// combineHeaderRows joins two stacked header rows column by column, for
// layouts where a group caption ("Rate") sits above its parts.
func combineHeaderRows(upper, lower []string) []string {
	n := len(upper)
	if len(lower) > n {
		n = len(lower)
	}
	out := make([]string, n)
	lastUpper := ""
	for i := 0; i < n; i++ {
		u, l := "", ""
		if i < len(upper) {
			u = strings.TrimSpace(upper[i])
		}
		if i < len(lower) {
			l = strings.TrimSpace(lower[i])
		}
		if u != "" {
			lastUpper = u
		} else if l != "" {
			u = lastUpper
		}
		out[i] = strings.TrimSpace(u + " " + l)
	}
	return out
}
