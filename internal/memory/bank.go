// Package memory provides the historical-recall collaborator used by the
// valuation agent. Recall is a fixed canned response for now.
package memory

// Bank answers recall queries against historical context.
type Bank struct{}

// NewBank creates a memory bank.
func NewBank() *Bank {
	return &Bank{}
}

// Recall returns historical context for a query.
func (b *Bank) Recall(query string) string {
	return "HISTORY: Similar undervaluation in 2023 led to 15% gain."
}
