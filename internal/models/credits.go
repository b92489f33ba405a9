// Package models defines data structures and domain types.
package models

import (
	"fmt"
	"math"
)

// Credits is an amount of credits expressed in hundredths, the unit the
// analytics API reports. Sums are exact integers so folding order never
// changes a total.
type Credits int64

// CreditsFromFloat converts a credit amount (e.g. 1.25) to hundredths.
func CreditsFromFloat(v float64) Credits {
	return Credits(math.Round(v * 100))
}

// Float returns the amount in whole credits.
func (c Credits) Float() float64 {
	return float64(c) / 100
}

// String formats the amount with two decimals.
func (c Credits) String() string {
	return fmt.Sprintf("%.2f", c.Float())
}
