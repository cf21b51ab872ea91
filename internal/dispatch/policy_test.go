package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter-engine/internal/domain"
)

func TestDefaultPolicies(t *testing.T) {
	ps := DefaultPolicies()
	require.NoError(t, ps.Validate())

	assert.Equal(t, Policy{BatchSize: 100, BatchDelay: time.Second}, ps.For(domain.PriorityNormal))
	assert.Equal(t, Policy{BatchSize: 50, BatchDelay: 500 * time.Millisecond}, ps.For(domain.PriorityUrgent))

	// An unknown priority falls back to normal pacing.
	assert.Equal(t, ps.Normal, ps.For(domain.Priority("unknown")))
	assert.Equal(t, ps.Normal, ps.For(domain.Priority("")))
}

func TestPolicySetValidate(t *testing.T) {
	tests := []struct {
		name    string
		set     PolicySet
		wantErr string
	}{
		{
			name: "urgent batch not smaller",
			set: PolicySet{
				Normal: Policy{BatchSize: 100, BatchDelay: time.Second},
				Urgent: Policy{BatchSize: 100, BatchDelay: 500 * time.Millisecond},
			},
			wantErr: "batch size",
		},
		{
			name: "urgent delay not shorter",
			set: PolicySet{
				Normal: Policy{BatchSize: 100, BatchDelay: time.Second},
				Urgent: Policy{BatchSize: 50, BatchDelay: time.Second},
			},
			wantErr: "batch delay",
		},
		{
			name: "zero batch size",
			set: PolicySet{
				Normal: Policy{BatchSize: 0, BatchDelay: time.Second},
				Urgent: Policy{BatchSize: 50, BatchDelay: 500 * time.Millisecond},
			},
			wantErr: "positive",
		},
		{
			name: "negative delay",
			set: PolicySet{
				Normal: Policy{BatchSize: 100, BatchDelay: time.Second},
				Urgent: Policy{BatchSize: 50, BatchDelay: -time.Millisecond},
			},
			wantErr: "negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
