package dispatch

import (
	"fmt"
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
)

// Policy paces delivery for one priority class: how many recipients go
// into each batch and how long to wait between batches.
type Policy struct {
	BatchSize  int
	BatchDelay time.Duration
}

// PolicySet maps newsletter priorities to pacing policies.
type PolicySet struct {
	Normal Policy
	Urgent Policy
}

// DefaultPolicies returns the standard pacing: normal sends in batches of
// 100 with a 1s gap, urgent in batches of 50 with a 500ms gap.
func DefaultPolicies() PolicySet {
	return PolicySet{
		Normal: Policy{BatchSize: 100, BatchDelay: time.Second},
		Urgent: Policy{BatchSize: 50, BatchDelay: 500 * time.Millisecond},
	}
}

// For returns the policy for a priority.
func (ps PolicySet) For(p domain.Priority) Policy {
	if p == domain.PriorityUrgent {
		return ps.Urgent
	}
	return ps.Normal
}

// Validate checks the set is internally consistent. Urgent must be
// strictly more aggressive than normal on both axes, otherwise the
// priority flag would be meaningless.
func (ps PolicySet) Validate() error {
	if ps.Normal.BatchSize <= 0 || ps.Urgent.BatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	if ps.Normal.BatchDelay < 0 || ps.Urgent.BatchDelay < 0 {
		return fmt.Errorf("batch delays must not be negative")
	}
	if ps.Urgent.BatchSize >= ps.Normal.BatchSize {
		return fmt.Errorf("urgent batch size %d must be smaller than normal %d",
			ps.Urgent.BatchSize, ps.Normal.BatchSize)
	}
	if ps.Urgent.BatchDelay >= ps.Normal.BatchDelay {
		return fmt.Errorf("urgent batch delay %s must be shorter than normal %s",
			ps.Urgent.BatchDelay, ps.Normal.BatchDelay)
	}
	return nil
}
