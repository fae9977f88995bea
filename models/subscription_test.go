package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTier(t *testing.T) {
	tests := []struct {
		name string
		sub  Subscription
		want Tier
	}{
		{"explicit free", Subscription{Title: "Starter", Price: "9", Tier: "FREE"}, TierFree},
		{"explicit paid wins over legacy title", Subscription{Title: LegacyFreeTitle, Tier: TierPaid}, TierPaid},
		{"legacy title", Subscription{Title: " Free Membership "}, TierFree},
		{"zero price trial stays paid", Subscription{Title: "Trial Week", Price: "0", PlanID: "P-TRIAL"}, TierPaid},
		{"dollar zero stays paid", Subscription{Title: "Intro", Price: "$0.00"}, TierPaid},
		{"priced", Subscription{Title: "Gold", Price: "49"}, TierPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.ResolveTier())
		})
	}
}

func TestMembershipHolds(t *testing.T) {
	gold := Subscription{Title: "Gold", PlanID: "P-GOLD"}

	assert.True(t, Membership{Title: "Other", PlanID: "P-GOLD"}.Holds(gold))
	assert.False(t, Membership{Title: "Gold", PlanID: "P-SILVER"}.Holds(gold))
	assert.True(t, Membership{Title: "gold"}.Holds(gold))
	assert.False(t, Membership{}.Holds(gold))
}
