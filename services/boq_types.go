package services

import (
	"fmt"
	"strings"
)

// CanonicalField names one column of the canonical BOQ schema.
type CanonicalField string

const (
	FieldSrNo        CanonicalField = "srNo"
	FieldDescription CanonicalField = "description"
	FieldQuantity    CanonicalField = "quantity"
	FieldUnit        CanonicalField = "unit"
	FieldRate        CanonicalField = "rate"
	FieldAmount      CanonicalField = "amount"
	FieldItemCode    CanonicalField = "itemCode"
	FieldRemark      CanonicalField = "remark"

	// Split-rate components. Summed into the tender rate when no single
	// rate column is present.
	FieldMaterialRate  CanonicalField = "materialRate"
	FieldLabourRate    CanonicalField = "labourRate"
	FieldEquipmentRate CanonicalField = "equipmentRate"
)

// RequiredFields are the six fields a complete header maps.
var RequiredFields = []CanonicalField{
	FieldSrNo, FieldDescription, FieldQuantity, FieldUnit, FieldRate, FieldAmount,
}

// OptionalFields are mapped when present but never required.
var OptionalFields = []CanonicalField{
	FieldItemCode, FieldRemark, FieldMaterialRate, FieldLabourRate, FieldEquipmentRate,
}

// rateComponentFields lists split-rate columns in the order they are summed.
var rateComponentFields = []CanonicalField{
	FieldMaterialRate, FieldLabourRate, FieldEquipmentRate,
}

// ColumnMapping maps a canonical field to a zero-based column index.
type ColumnMapping map[CanonicalField]int

// Clone returns an independent copy of the mapping.
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Cell returns the trimmed cell mapped to field, or "" when the field is
// unmapped or the row is too short.
func (m ColumnMapping) Cell(cells []string, field CanonicalField) string {
	idx, ok := m[field]
	if !ok || idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// HeaderMapping is the result of matching one candidate header row.
type HeaderMapping struct {
	Mapping         ColumnMapping `json:"mapping"`
	ConfidenceScore float64       `json:"confidenceScore"`
}

// RowRole is the semantic role of a merged sheet row. Exactly one role is
// assigned to each row.
type RowRole int

const (
	RoleDataItem RowRole = iota
	RoleCategoryHeading
	RoleSubtotal
	RoleGrandTotal
	RoleRemark
	RolePageArtifact
)

var roleNames = [...]string{
	RoleDataItem:        "data_item",
	RoleCategoryHeading: "category_heading",
	RoleSubtotal:        "subtotal",
	RoleGrandTotal:      "grand_total",
	RoleRemark:          "remark",
	RolePageArtifact:    "page_artifact",
}

func (r RowRole) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("RowRole(%d)", int(r))
	}
	return roleNames[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r RowRole) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(roleNames) {
		return nil, fmt.Errorf("invalid row role %d", int(r))
	}
	return []byte(roleNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RowRole) UnmarshalText(b []byte) error {
	s := string(b)
	for i, name := range roleNames {
		if name == s {
			*r = RowRole(i)
			return nil
		}
	}
	return fmt.Errorf("unknown row role %q", s)
}

// StandardBOQRow is one canonical line item.
type StandardBOQRow struct {
	SrNo            string             `json:"srNo"`
	Category        string             `json:"category"`
	SubCategory     string             `json:"subCategory"`
	Description     string             `json:"description"`
	Unit            string             `json:"unit"`
	Quantity        *float64           `json:"quantity"`
	TenderRate      *float64           `json:"tenderRate"`
	TenderAmount    *float64           `json:"tenderAmount"`
	ItemCode        *string            `json:"itemCode"`
	Currency        string             `json:"currency"`
	LumpSum         bool               `json:"lumpSum"`
	AltGroup        *string            `json:"altGroup"`
	Role            RowRole            `json:"role"`
	Remark          bool               `json:"remark"`
	Subtotal        bool               `json:"subtotal"`
	GrandTotal      bool               `json:"grandTotal"`
	CategoryHeading bool               `json:"categoryHeading"`
	Notes           string             `json:"notes,omitempty"`
	RateComponents  map[string]float64 `json:"rateComponents,omitempty"`
	SheetName       string             `json:"sheetName"`
	RawRowIndex     int                `json:"rawRowIndex"`
	SourceRows      []int              `json:"sourceRows"`
	Original        [][]string         `json:"original"`
	Revisions       map[string]any     `json:"revisions,omitempty"`
}

// setRole assigns the role and derives the role flags from it.
func (r *StandardBOQRow) setRole(role RowRole) {
	r.Role = role
	r.Remark = role == RoleRemark
	r.Subtotal = role == RoleSubtotal
	r.GrandTotal = role == RoleGrandTotal
	r.CategoryHeading = role == RoleCategoryHeading
}

// ParsedBOQ is the canonical output of one parse call.
type ParsedBOQ struct {
	SourceFile string           `json:"sourceFile"`
	Currency   string           `json:"currency"`
	Rows       []StandardBOQRow `json:"rows"`
}

// SheetReport summarises one worksheet.
type SheetReport struct {
	Name            string        `json:"name"`
	HeaderRowIndex  int           `json:"headerRowIndex"`
	Confidence      float64       `json:"confidence"`
	Mapping         ColumnMapping `json:"mapping"`
	DetectedColumns []string      `json:"detectedColumns,omitempty"`
	RowsParsed      int           `json:"rowsParsed"`
	RowsSkipped     int           `json:"rowsSkipped"`
	Currency        string        `json:"currency"`
	Empty           bool          `json:"empty,omitempty"`
}

// SkippedRow records a source row that was dropped from the output.
type SkippedRow struct {
	SheetName   string `json:"sheetName"`
	RawRowIndex int    `json:"rawRowIndex"`
	Reason      string `json:"reason"`
	Text        string `json:"text,omitempty"`
}

// ParseReport aggregates counts, warnings and header confidence for a call.
type ParseReport struct {
	RowsParsed                int           `json:"rowsParsed"`
	RowsSkipped               int           `json:"rowsSkipped"`
	Warnings                  []string      `json:"warnings"`
	AmbiguousHeaderConfidence float64       `json:"ambiguousHeaderConfidence"`
	SuggestedMapping          ColumnMapping `json:"suggestedMapping"`
	Sheets                    []SheetReport `json:"sheets"`
	DetectedColumns           []string      `json:"detectedColumns,omitempty"`
	SkippedRows               []SkippedRow  `json:"skippedRows,omitempty"`
	NeedsManualMapping        bool          `json:"needsManualMapping"`
}

// ParseResult pairs the canonical rows with their report.
type ParseResult struct {
	ParsedBOQ ParsedBOQ   `json:"parsedBoq"`
	Report    ParseReport `json:"parseReport"`
}

func floatPtr(v float64) *float64 { return &v }

func stringPtr(s string) *string { return &s }
