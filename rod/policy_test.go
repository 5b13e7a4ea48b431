package rod_test

import (
	"testing"
	"time"

	"github.com/fwojciec/stockwatch/rod"
	"github.com/stretchr/testify/assert"
)

func TestRecyclePolicy_Due(t *testing.T) {
	t.Parallel()

	launched := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	policy := rod.RecyclePolicy{MaxPages: 10, MaxAge: time.Hour}

	tests := []struct {
		name   string
		policy rod.RecyclePolicy
		pages  int64
		now    time.Time
		reason string
		due    bool
	}{
		{name: "fresh browser", policy: policy, pages: 3, now: launched.Add(time.Minute)},
		{name: "page limit reached", policy: policy, pages: 10, now: launched.Add(time.Minute), reason: "page limit", due: true},
		{name: "max age reached", policy: policy, pages: 1, now: launched.Add(time.Hour), reason: "max age", due: true},
		{name: "page limit wins over age", policy: policy, pages: 12, now: launched.Add(2 * time.Hour), reason: "page limit", due: true},
		{name: "zero policy never recycles", pages: 1 << 20, now: launched.Add(1000 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reason, due := tt.policy.Due(tt.pages, launched, tt.now)

			assert.Equal(t, tt.due, due)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestDefaultRecyclePolicy(t *testing.T) {
	t.Parallel()

	p := rod.DefaultRecyclePolicy()

	assert.Equal(t, int64(rod.DefaultMaxPages), p.MaxPages)
	assert.Equal(t, rod.DefaultMaxAge, p.MaxAge)
	assert.Equal(t, rod.DefaultIdleTimeout, p.IdleTimeout)
}
