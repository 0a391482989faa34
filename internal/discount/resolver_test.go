package discount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/model"
)

var (
	wednesday = time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	saturday  = time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
	weekdays  = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	tod       = model.MustTimeOfDay
)

func afternoon() model.DiscountRule {
	return model.DiscountRule{
		ID:         "afternoon",
		Name:       "Quiet afternoon",
		Percent:    20,
		Days:       weekdays,
		Start:      tod("13:00"),
		End:        tod("16:00"),
		ServiceIDs: []string{"S"},
	}
}

func TestPriceFor_WeekdayAfternoon(t *testing.T) {
	rules := []model.DiscountRule{afternoon()}

	p := PriceFor(rules, 5000, Query{ServiceID: "S", Date: wednesday, At: tod("15:30")})
	assert.Equal(t, int64(5000), p.OriginalMinor)
	assert.Equal(t, int64(4000), p.FinalMinor)
	assert.Equal(t, "afternoon", p.DiscountID)
	assert.Equal(t, 20.0, p.DiscountPercent)

	p = PriceFor(rules, 5000, Query{ServiceID: "S", Date: wednesday, At: tod("16:30")})
	assert.Equal(t, int64(5000), p.FinalMinor)
	assert.Empty(t, p.DiscountID)
}

func TestMatches(t *testing.T) {
	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(r *model.DiscountRule)
		q      Query
		want   bool
	}{
		{"match", nil, Query{ServiceID: "S", Date: wednesday, At: tod("13:00")}, true},
		{"end is exclusive", nil, Query{ServiceID: "S", Date: wednesday, At: tod("16:00")}, false},
		{"before start", nil, Query{ServiceID: "S", Date: wednesday, At: tod("12:59")}, false},
		{"numeric not lexical", func(r *model.DiscountRule) { r.Start, r.End = tod("9:00"), tod("10:30") },
			Query{ServiceID: "S", Date: wednesday, At: tod("10:00")}, true},
		{"other service", nil, Query{ServiceID: "T", Date: wednesday, At: tod("14:00")}, false},
		{"weekend", nil, Query{ServiceID: "S", Date: saturday, At: tod("14:00")}, false},
		{"staff unknown matches staff rule", func(r *model.DiscountRule) { r.StaffIDs = []string{"anna"} },
			Query{ServiceID: "S", Date: wednesday, At: tod("14:00")}, true},
		{"staff listed", func(r *model.DiscountRule) { r.StaffIDs = []string{"anna"} },
			Query{ServiceID: "S", StaffID: "anna", Date: wednesday, At: tod("14:00")}, true},
		{"staff not listed", func(r *model.DiscountRule) { r.StaffIDs = []string{"anna"} },
			Query{ServiceID: "S", StaffID: "bob", Date: wednesday, At: tod("14:00")}, false},
		{"valid until is inclusive", func(r *model.DiscountRule) { r.ValidFrom, r.ValidUntil = &from, &until },
			Query{ServiceID: "S", Date: wednesday, At: tod("14:00")}, true},
		{"valid until ignores time of day", func(r *model.DiscountRule) { u := until.Add(-time.Hour); r.ValidUntil = &u },
			Query{ServiceID: "S", Date: wednesday.Add(-time.Hour * 24), At: tod("14:00")}, true},
		{"after validity", func(r *model.DiscountRule) { r.ValidUntil = &from },
			Query{ServiceID: "S", Date: wednesday, At: tod("14:00")}, false},
		{"before validity", func(r *model.DiscountRule) { f := wednesday.AddDate(0, 0, 1); r.ValidFrom = &f },
			Query{ServiceID: "S", Date: wednesday, At: tod("14:00")}, false},
		{"percent above 100", func(r *model.DiscountRule) { r.Percent = 120 },
			Query{ServiceID: "S", Date: wednesday, At: tod("14:00")}, false},
		{"negative percent", func(r *model.DiscountRule) { r.Percent = -5 },
			Query{ServiceID: "S", Date: wednesday, At: tod("14:00")}, false},
		{"zero and hundred are valid", func(r *model.DiscountRule) { r.Percent = 100 },
			Query{ServiceID: "S", Date: wednesday, At: tod("14:00")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := afternoon()
			if tt.mutate != nil {
				tt.mutate(&r)
			}
			assert.Equal(t, tt.want, Matches(&r, tt.q))
		})
	}
}

func TestBest_HighestPercentWins(t *testing.T) {
	low := afternoon()
	low.ID, low.Percent = "low", 10
	high := afternoon()
	high.ID, high.Percent = "high", 25
	invalid := afternoon()
	invalid.ID, invalid.Percent = "invalid", 150

	q := Query{ServiceID: "S", Date: wednesday, At: tod("14:00")}

	for _, rules := range [][]model.DiscountRule{
		{low, high, invalid},
		{invalid, high, low},
		{high, low},
	} {
		best, ok := Best(rules, q)
		require.True(t, ok)
		assert.Equal(t, "high", best.ID)
	}
}

func TestBest_TieKeepsFirst(t *testing.T) {
	a := afternoon()
	a.ID = "a"
	b := afternoon()
	b.ID = "b"

	best, ok := Best([]model.DiscountRule{a, b}, Query{ServiceID: "S", Date: wednesday, At: tod("14:00")})
	require.True(t, ok)
	assert.Equal(t, "a", best.ID)

	best, ok = Best([]model.DiscountRule{b, a}, Query{ServiceID: "S", Date: wednesday, At: tod("14:00")})
	require.True(t, ok)
	assert.Equal(t, "b", best.ID)
}

func TestBest_None(t *testing.T) {
	_, ok := Best(nil, Query{ServiceID: "S", Date: wednesday, At: tod("14:00")})
	assert.False(t, ok)
}

func TestApplyAndRound(t *testing.T) {
	// 1999 * 0.85 = 1699.15; rounding happens once, at the end.
	assert.InDelta(t, 1699.15, Apply(1999, 15), 1e-9)
	assert.Equal(t, int64(1699), RoundMinor(Apply(1999, 15)))
	assert.Equal(t, int64(1), RoundMinor(0.5))
	assert.Equal(t, int64(0), RoundMinor(Apply(1999, 100)))
	assert.Equal(t, int64(1999), RoundMinor(Apply(1999, 0)))
}

func TestQueryAt(t *testing.T) {
	start := time.Date(2026, 1, 14, 15, 30, 0, 0, time.UTC)
	q := QueryAt("S", "anna", start)
	assert.Equal(t, wednesday, q.Date)
	assert.Equal(t, tod("15:30"), q.At)
	assert.Equal(t, "anna", q.StaffID)
}
