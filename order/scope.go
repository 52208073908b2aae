package order

import "fmt"

// Scope identifies the (user, optional strategy) pair under which
// limits, breaker state and the ledger are tracked independently.
// A zero Strategy means the user-wide scope.
type Scope struct {
	User     string
	Strategy string
}

func (s Scope) String() string {
	if s.Strategy == "" {
		return s.User
	}
	return fmt.Sprintf("%s/%s", s.User, s.Strategy)
}

// UserScope returns the scope with the strategy component stripped.
func (s Scope) UserScope() Scope { return Scope{User: s.User} }
