package reconcile

import "github.com/karimndoye/sunumarket-backend/pkg/db/models"

// Outcome classifies what a reconciliation attempt did. Callers decide how
// to surface each one: webhooks turn NotFound into a 404, the sweeper counts
// it as a skip.
type Outcome string

const (
	// OutcomeApplied means the transition was written.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the transaction already carried the incoming
	// status; nothing was written.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeConflictIgnored means the transaction is terminal in a
	// different status; the incoming report was discarded.
	OutcomeConflictIgnored Outcome = "conflict_ignored"
	// OutcomeNotFound means no transaction matches the gateway identifier.
	OutcomeNotFound Outcome = "not_found"
)

// Result reports the outcome of one reconciliation attempt.
type Result struct {
	Outcome     Outcome
	Transaction *models.PaymentTransaction
	Order       *models.Order
}

func (r *Result) Applied() bool {
	return r != nil && r.Outcome == OutcomeApplied
}
