package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildOne(t *testing.T, row MergedRow) (StandardBOQRow, []string) {
	t.Helper()
	b := newItemBuilder("BOQ", "INR", 0)
	if row.RawRowIndex == 0 {
		row.RawRowIndex = 2
	}
	out := b.Build(row, Classify(row))
	return out, b.warnings
}

func TestBuild_DerivesAmount(t *testing.T) {
	out, warnings := buildOne(t, MergedRow{SrNo: "1", Description: "Excavation", Quantity: "10", Unit: "cum", Rate: "25"})

	require.NotNil(t, out.TenderAmount)
	assert.Equal(t, 250.0, *out.TenderAmount)
	assert.Empty(t, warnings)
}

func TestBuild_DerivesRate(t *testing.T) {
	out, warnings := buildOne(t, MergedRow{SrNo: "1", Description: "Excavation", Quantity: "4", Amount: "1000"})

	require.NotNil(t, out.TenderRate)
	assert.Equal(t, 250.0, *out.TenderRate)
	assert.Empty(t, warnings)
}

func TestBuild_NeverDerivesQuantity(t *testing.T) {
	out, warnings := buildOne(t, MergedRow{SrNo: "1", Description: "Excavation", Rate: "10", Amount: "100"})

	assert.Nil(t, out.Quantity)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "quantity left empty")
	assert.Contains(t, warnings[0], "BOQ row 2")
}

func TestBuild_ZeroQuantityKeepsRateEmpty(t *testing.T) {
	out, warnings := buildOne(t, MergedRow{SrNo: "1", Description: "Excavation", Quantity: "0", Amount: "100"})

	assert.Nil(t, out.TenderRate)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "rate not derived")
}

func TestBuild_AmountMismatchWarns(t *testing.T) {
	out, warnings := buildOne(t, MergedRow{SrNo: "1", Description: "Excavation", Quantity: "10", Rate: "25", Amount: "300"})

	assert.Equal(t, 300.0, *out.TenderAmount)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "₹300.00")
	assert.Contains(t, warnings[0], "₹250.00")
}

func TestBuild_AmountWithinTolerance(t *testing.T) {
	_, warnings := buildOne(t, MergedRow{SrNo: "1", Description: "Excavation", Quantity: "3", Rate: "33.33", Amount: "100"})

	assert.Empty(t, warnings)
}

func TestBuild_LumpSum(t *testing.T) {
	out, warnings := buildOne(t, MergedRow{SrNo: "1", Description: "Mobilization - Lump Sum", Unit: "LS", Amount: "500000"})

	assert.True(t, out.LumpSum)
	assert.Equal(t, 1.0, *out.Quantity)
	assert.Equal(t, 500000.0, *out.TenderRate)
	assert.Equal(t, 500000.0, *out.TenderAmount)
	assert.Empty(t, warnings)
}

func TestBuild_LumpSumWithoutAmount(t *testing.T) {
	out, warnings := buildOne(t, MergedRow{SrNo: "1", Description: "Site clearance", Unit: "L.S."})

	assert.True(t, out.LumpSum)
	assert.Nil(t, out.TenderAmount)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "lump sum item has no amount")
}

func TestBuild_UnparseableCellWarns(t *testing.T) {
	out, warnings := buildOne(t, MergedRow{SrNo: "1", Description: "Excavation", Quantity: "as reqd", Rate: "10"})

	assert.Nil(t, out.Quantity)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], `could not parse quantity "as reqd"`)
}

func TestBuild_SplitRate(t *testing.T) {
	out, warnings := buildOne(t, MergedRow{
		SrNo: "1", Description: "Brick work", Quantity: "2",
		RateComponents: map[CanonicalField]string{FieldMaterialRate: "100", FieldLabourRate: "50"},
	})

	assert.Equal(t, 150.0, *out.TenderRate)
	assert.Equal(t, 300.0, *out.TenderAmount)
	assert.Equal(t, map[string]float64{"materialRate": 100, "labourRate": 50}, out.RateComponents)
	assert.Empty(t, warnings)
}

func TestBuild_SplitRateDisagreesWithRate(t *testing.T) {
	_, warnings := buildOne(t, MergedRow{
		SrNo: "1", Description: "Brick work", Quantity: "2", Rate: "200",
		RateComponents: map[CanonicalField]string{FieldMaterialRate: "100", FieldLabourRate: "50"},
	})

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "differs from the sum of its components")
}

func TestBuild_ItemCodeFromDescription(t *testing.T) {
	out, _ := buildOne(t, MergedRow{SrNo: "1", Description: "Excavation as per DSR 2.8.1 in all soils", Quantity: "1", Rate: "1"})

	require.NotNil(t, out.ItemCode)
	assert.Equal(t, "DSR-2.8.1", *out.ItemCode)
	assert.Equal(t, "Excavation as per DSR 2.8.1 in all soils", out.Description)
}

func TestBuild_ItemCodeColumnWins(t *testing.T) {
	out, _ := buildOne(t, MergedRow{SrNo: "1", Description: "DSR 2.8.1 excavation", ItemCode: "X-9", Quantity: "1", Rate: "1"})

	assert.Equal(t, "X-9", *out.ItemCode)
}

func TestExtractItemCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Excavation as per DSR 2.8.1", "DSR-2.8.1", true},
		{"CPWD item no. 5.1 plastering", "CPWD-5.1", true},
		{"Concrete conforming to IS-456 ref ABC-12", "ABC-12", true},
		{"M-20 grade concrete", "", false},
		{"Steel mesh 10 mm", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := extractItemCode(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuild_AlternateItems(t *testing.T) {
	b := newItemBuilder("BOQ", "INR", 0)
	rows := []MergedRow{
		{RawRowIndex: 2, SrNo: "10", Description: "Flush door", Quantity: "1", Rate: "100"},
		{RawRowIndex: 3, SrNo: "10A", Description: "Panel door", Quantity: "1", Rate: "120"},
		{RawRowIndex: 4, SrNo: "10 B", Description: "Steel door", Quantity: "1", Rate: "150"},
		{RawRowIndex: 5, SrNo: "11A", Description: "Orphan", Quantity: "1", Rate: "1"},
	}
	var out []StandardBOQRow
	for _, r := range rows {
		out = append(out, b.Build(r, RoleDataItem))
	}

	assert.Nil(t, out[0].AltGroup)
	require.NotNil(t, out[1].AltGroup)
	assert.Equal(t, "10", *out[1].AltGroup)
	require.NotNil(t, out[2].AltGroup)
	assert.Equal(t, "10", *out[2].AltGroup)
	assert.Nil(t, out[3].AltGroup)
}

func TestBuild_DuplicateSerialWarns(t *testing.T) {
	b := newItemBuilder("BOQ", "INR", 0)
	b.Build(MergedRow{RawRowIndex: 2, SrNo: "1", Description: "A", Quantity: "1", Rate: "1"}, RoleDataItem)
	b.Build(MergedRow{RawRowIndex: 3, SrNo: "1", Description: "B", Quantity: "1", Rate: "1"}, RoleDataItem)

	require.Len(t, b.warnings, 1)
	assert.Contains(t, b.warnings[0], `duplicate serial number "1"`)
}

func TestBuild_CurrencyCarriesForward(t *testing.T) {
	b := newItemBuilder("BOQ", "INR", 0)
	first := b.Build(MergedRow{RawRowIndex: 2, SrNo: "1", Description: "A", Quantity: "2", Rate: "US$ 10"}, RoleDataItem)
	second := b.Build(MergedRow{RawRowIndex: 3, SrNo: "2", Description: "B", Quantity: "2", Rate: "10"}, RoleDataItem)

	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, "USD", second.Currency)
	assert.Equal(t, 20.0, *first.TenderAmount)
}

func TestBuild_CategoryContext(t *testing.T) {
	b := newItemBuilder("BOQ", "INR", 0)
	b.Build(MergedRow{RawRowIndex: 1, Description: "CIVIL WORKS"}, RoleCategoryHeading)
	b.Build(MergedRow{RawRowIndex: 2, Description: "Earth Work"}, RoleCategoryHeading)
	item := b.Build(MergedRow{RawRowIndex: 3, SrNo: "1", Description: "Excavation", Quantity: "1", Rate: "1"}, RoleDataItem)

	assert.Equal(t, "CIVIL WORKS", item.Category)
	assert.Equal(t, "Earth Work", item.SubCategory)

	b.Build(MergedRow{RawRowIndex: 4, Description: "ELECTRICAL"}, RoleCategoryHeading)
	item = b.Build(MergedRow{RawRowIndex: 5, SrNo: "2", Description: "Wiring", Quantity: "1", Rate: "1"}, RoleDataItem)

	assert.Equal(t, "ELECTRICAL", item.Category)
	assert.Empty(t, item.SubCategory)
}

func TestBuild_TotalsKeepAmount(t *testing.T) {
	out, _ := buildOne(t, MergedRow{Description: "Grand Total", Amount: "275000"})

	assert.Equal(t, RoleGrandTotal, out.Role)
	assert.True(t, out.GrandTotal)
	assert.Equal(t, 275000.0, *out.TenderAmount)
	assert.Nil(t, out.Quantity)
}
