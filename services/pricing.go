package services

import "math"

// CategoryTotal is the priced amount of one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Items    int     `json:"items"`
	Amount   float64 `json:"amount"`
}

// ParsedTotals summarises the priced rows of a parsed BOQ. The declared grand
// total is reported next to the computed one and never reconciled.
type ParsedTotals struct {
	ItemCount          int             `json:"itemCount"`
	LumpSumCount       int             `json:"lumpSumCount"`
	AlternateCount     int             `json:"alternateCount"`
	UnpricedCount      int             `json:"unpricedCount"`
	TotalAmount        float64         `json:"totalAmount"`
	DeclaredGrandTotal *float64        `json:"declaredGrandTotal"`
	ByCategory         []CategoryTotal `json:"byCategory"`
}

// CalcLineAmount is the amount of a line priced at rate per unit.
func CalcLineAmount(qty, rate float64) float64 {
	return roundDerived(qty * rate)
}

// CalcParsedTotals sums the data items of rows. Alternates are counted but
// excluded from the total, since only the base item is executed.
func CalcParsedTotals(rows []StandardBOQRow) ParsedTotals {
	totals := ParsedTotals{ByCategory: []CategoryTotal{}}
	categoryIdx := make(map[string]int)

	for _, r := range rows {
		switch r.Role {
		case RoleGrandTotal:
			if r.TenderAmount != nil {
				sum := *r.TenderAmount
				if totals.DeclaredGrandTotal != nil {
					sum += *totals.DeclaredGrandTotal
				}
				totals.DeclaredGrandTotal = &sum
			}
			continue
		case RoleDataItem:
		default:
			continue
		}

		totals.ItemCount++
		if r.LumpSum {
			totals.LumpSumCount++
		}
		if r.AltGroup != nil {
			totals.AlternateCount++
			continue
		}
		amount, ok := lineAmount(r)
		if !ok {
			totals.UnpricedCount++
			continue
		}
		totals.TotalAmount += amount

		idx, seen := categoryIdx[r.Category]
		if !seen {
			idx = len(totals.ByCategory)
			categoryIdx[r.Category] = idx
			totals.ByCategory = append(totals.ByCategory, CategoryTotal{Category: r.Category})
		}
		totals.ByCategory[idx].Items++
		totals.ByCategory[idx].Amount += amount
	}

	totals.TotalAmount = math.Round(totals.TotalAmount*100) / 100
	for i := range totals.ByCategory {
		totals.ByCategory[i].Amount = math.Round(totals.ByCategory[i].Amount*100) / 100
	}
	return totals
}

func lineAmount(r StandardBOQRow) (float64, bool) {
	switch {
	case r.TenderAmount != nil:
		return *r.TenderAmount, true
	case r.Quantity != nil && r.TenderRate != nil:
		return CalcLineAmount(*r.Quantity, *r.TenderRate), true
	}
	return 0, false
}
