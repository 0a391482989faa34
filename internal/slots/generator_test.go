package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/interval"
	"salonbook/internal/model"
)

var (
	day = time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	tod = model.MustTimeOfDay
)

func window(date time.Time, start, end string) model.WorkingWindow {
	return model.WorkingWindow{
		StaffID:   "anna",
		Date:      date,
		Available: true,
		Start:     tod(start),
		End:       tod(end),
	}
}

func at(date time.Time, hhmm string) time.Time {
	return tod(hhmm).On(date)
}

func span(date time.Time, from, to string) interval.Interval {
	return interval.Interval{Start: at(date, from), End: at(date, to)}
}

func labels(times []time.Time) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.Format("15:04")
	}
	return out
}

func TestGenerate_FullDay(t *testing.T) {
	slots := Generate(Input{
		Window:   window(day, "10:00", "19:00"),
		Duration: 60 * time.Minute,
		Now:      day.AddDate(0, 0, -1),
	})

	require.Len(t, slots, 33)
	assert.Equal(t, "10:00", slots[0].Format("15:04"))
	assert.Equal(t, "10:15", slots[1].Format("15:04"))
	assert.Equal(t, "18:00", slots[len(slots)-1].Format("15:04"), "last slot must end by closing")
}

func TestGenerate_ConfirmedAppointmentConflict(t *testing.T) {
	slots := labels(Generate(Input{
		Window:   window(day, "10:00", "19:00"),
		Duration: 60 * time.Minute,
		Now:      day.AddDate(0, 0, -1),
		Busy:     []interval.Interval{span(day, "14:00", "15:00")},
	}))

	assert.Contains(t, slots, "13:00")
	assert.NotContains(t, slots, "13:15")
	assert.NotContains(t, slots, "13:30")
	assert.NotContains(t, slots, "13:45")
	assert.NotContains(t, slots, "14:00")
	assert.NotContains(t, slots, "14:45")
	assert.Contains(t, slots, "15:00")
}

func TestGenerate_PastCutoffOnlyToday(t *testing.T) {
	now := at(day, "14:05")
	w := window(day, "10:00", "19:00")

	today := labels(Generate(Input{Window: w, Duration: 60 * time.Minute, Now: now}))
	require.NotEmpty(t, today)
	assert.Equal(t, "14:15", today[0])
	assert.NotContains(t, today, "14:00")

	tomorrow := labels(Generate(Input{
		Window:   window(day.AddDate(0, 0, 1), "10:00", "19:00"),
		Duration: 60 * time.Minute,
		Now:      now,
	}))
	require.NotEmpty(t, tomorrow)
	assert.Equal(t, "10:00", tomorrow[0])
	assert.Len(t, tomorrow, 33)
}

func TestGenerate_StartEqualToNowIsPast(t *testing.T) {
	slots := labels(Generate(Input{
		Window:   window(day, "10:00", "12:00"),
		Duration: 30 * time.Minute,
		Now:      at(day, "10:30"),
	}))
	assert.Equal(t, []string{"10:45", "11:00", "11:15", "11:30"}, slots)
}

func TestGenerate_ExclusionsAndHolds(t *testing.T) {
	w := window(day, "10:00", "14:00")
	w.Excluded = []interval.Interval{span(day, "12:00", "13:00")}

	slots := labels(Generate(Input{
		Window:   w,
		Duration: 60 * time.Minute,
		Now:      day.AddDate(0, 0, -1),
		Busy:     []interval.Interval{span(day, "10:00", "10:30")}, // a hold
	}))

	assert.Equal(t, []string{"10:30", "10:45", "11:00", "13:00"}, slots)
}

func TestGenerate_UnavailableAndDegenerate(t *testing.T) {
	w := window(day, "10:00", "19:00")
	w.Available = false
	assert.Empty(t, Generate(Input{Window: w, Duration: time.Hour, Now: day.AddDate(0, 0, -1)}))

	assert.Empty(t, Generate(Input{Window: window(day, "10:00", "10:45"), Duration: time.Hour, Now: day.AddDate(0, 0, -1)}))
	assert.Empty(t, Generate(Input{Window: window(day, "10:00", "19:00"), Duration: 0, Now: day.AddDate(0, 0, -1)}))
}

func TestGenerate_CustomGranularity(t *testing.T) {
	slots := labels(Generate(Input{
		Window:      window(day, "10:00", "12:00"),
		Duration:    60 * time.Minute,
		Granularity: 30 * time.Minute,
		Now:         day.AddDate(0, 0, -1),
	}))
	assert.Equal(t, []string{"10:00", "10:30", "11:00"}, slots)
}

func TestGenerate_Deterministic(t *testing.T) {
	in := Input{
		Window:   window(day, "10:00", "19:00"),
		Duration: 45 * time.Minute,
		Now:      at(day, "11:10"),
		Busy: []interval.Interval{
			span(day, "12:00", "12:45"),
			span(day, "16:30", "17:00"),
		},
	}

	first := Generate(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Generate(in))
	}
}

func TestGenerateAny_UnionAndFirstFit(t *testing.T) {
	anna := Candidate{StaffID: "anna", Window: window(day, "10:00", "14:00")}
	anna.Window.StaffID = "anna"
	bob := Candidate{StaffID: "bob", Window: window(day, "12:00", "19:00"), Busy: []interval.Interval{span(day, "15:00", "16:00")}}
	bob.Window.StaffID = "bob"
	off := Candidate{StaffID: "carla", Window: model.WorkingWindow{StaffID: "carla", Date: day}}

	offers := GenerateAny([]Candidate{anna, bob, off}, 60*time.Minute, 0, day.AddDate(0, 0, -1))
	require.NotEmpty(t, offers)

	byTime := make(map[string]string)
	for _, o := range offers {
		byTime[o.Start.Format("15:04")] = o.StaffID
		assert.Equal(t, o.Start.Add(time.Hour), o.End)
	}

	assert.Equal(t, "anna", byTime["10:00"])
	assert.Equal(t, "anna", byTime["13:00"], "first staff in pool order wins")
	assert.Equal(t, "bob", byTime["13:15"])
	assert.Equal(t, "bob", byTime["18:00"])
	_, ok := byTime["14:30"]
	assert.False(t, ok, "bob is busy 15:00-16:00")
	_, ok = byTime["18:15"]
	assert.False(t, ok)

	assert.Equal(t, "10:00", offers[0].Start.Format("15:04"))
	assert.Equal(t, "18:00", offers[len(offers)-1].Start.Format("15:04"))
}

func TestGenerateAny_SupersetOfEachStaff(t *testing.T) {
	now := at(day, "09:00")
	candidates := []Candidate{
		{StaffID: "anna", Window: window(day, "10:00", "14:00"), Busy: []interval.Interval{span(day, "11:00", "12:00")}},
		{StaffID: "bob", Window: window(day, "11:30", "17:00")},
	}

	anyTimes := make(map[time.Time]bool)
	for _, o := range GenerateAny(candidates, 30*time.Minute, DefaultGranularity, now) {
		anyTimes[o.Start] = true
	}

	for _, c := range candidates {
		for _, s := range Generate(Input{Window: c.Window, Duration: 30 * time.Minute, Now: now, Busy: c.Busy}) {
			assert.True(t, anyTimes[s], "%s offered for %s but missing in any-staff list", s.Format("15:04"), c.StaffID)
		}
	}
}

func TestGenerateAny_NoneAvailable(t *testing.T) {
	assert.Nil(t, GenerateAny(nil, time.Hour, 0, day))
	assert.Nil(t, GenerateAny([]Candidate{{StaffID: "x", Window: model.WorkingWindow{Date: day}}}, time.Hour, 0, day))
}

func TestOnGridAndGridOrigin(t *testing.T) {
	origin := at(day, "10:00")
	assert.True(t, OnGrid(origin, origin, 0))
	assert.True(t, OnGrid(origin, at(day, "11:45"), DefaultGranularity))
	assert.False(t, OnGrid(origin, at(day, "10:07"), DefaultGranularity))
	assert.False(t, OnGrid(origin, origin.Add(7*time.Minute+30*time.Second), DefaultGranularity))
	assert.False(t, OnGrid(origin, at(day, "09:45"), DefaultGranularity), "before the origin")
	assert.True(t, OnGrid(origin, at(day, "10:10"), 5*time.Minute))

	got, ok := GridOrigin([]Candidate{
		{StaffID: "off", Window: model.WorkingWindow{Date: day}},
		{StaffID: "bob", Window: window(day, "12:00", "19:00")},
		{StaffID: "anna", Window: window(day, "10:10", "14:00")},
	})
	require.True(t, ok)
	assert.Equal(t, at(day, "10:10"), got)

	_, ok = GridOrigin([]Candidate{{StaffID: "off", Window: model.WorkingWindow{Date: day}}})
	assert.False(t, ok)
}

func TestToSlotInfo(t *testing.T) {
	infos := ToSlotInfo([]Offer{{Start: at(day, "09:00"), End: at(day, "09:30"), StaffID: "anna"}})
	require.Len(t, infos, 1)
	assert.Equal(t, SlotInfo{Start: "09:00", End: "09:30", StaffID: "anna"}, infos[0])
}
