package engine

import (
	"fmt"

	"github.com/quantfold/riskgate/order"
)

// InvariantError reports ledger drift detected after a mutation. It is
// an engine bug, not a trader's mistake, and is surfaced distinctly
// from policy rejections. The engine trips the scope's breaker
// defensively before returning one.
type InvariantError struct {
	Scope order.Scope
	Err   error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in scope %s: %v", e.Scope, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }
