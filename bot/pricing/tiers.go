// Package pricing holds the fixed tier table: message counts and the SOL
// price charged for each.
package pricing

import "strconv"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Tier pairs a purchasable message count with its price.
type Tier struct {
	Messages int
	SOL      float64
	Lamports int64
}

// table is ordered by message count and never mutated after startup.
// Lamports are spelled out to keep amount comparisons free of float rounding.
var table = []Tier{
	{Messages: 10, SOL: 0.01, Lamports: 10_000_000},
	{Messages: 25, SOL: 0.025, Lamports: 25_000_000},
	{Messages: 50, SOL: 0.05, Lamports: 50_000_000},
	{Messages: 75, SOL: 0.075, Lamports: 75_000_000},
	{Messages: 100, SOL: 0.1, Lamports: 100_000_000},
	{Messages: 250, SOL: 0.25, Lamports: 250_000_000},
	{Messages: 500, SOL: 0.5, Lamports: 500_000_000},
	{Messages: 750, SOL: 0.75, Lamports: 750_000_000},
	{Messages: 1000, SOL: 1.0, Lamports: 1_000_000_000},
}

// Tiers returns a copy of the tier table in ascending message-count order.
func Tiers() []Tier {
	out := make([]Tier, len(table))
	copy(out, table)
	return out
}

// Lookup returns the tier for the given message count.
func Lookup(messages int) (Tier, bool) {
	for _, t := range table {
		if t.Messages == messages {
			return t, true
		}
	}
	return Tier{}, false
}

// FormatSOL renders a lamport amount as a SOL string without trailing zeros.
func FormatSOL(lamports int64) string {
	return strconv.FormatFloat(float64(lamports)/LamportsPerSOL, 'f', -1, 64)
}
