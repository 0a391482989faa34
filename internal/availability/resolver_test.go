package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salonbook/internal/model"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) WeeklyHours(ctx context.Context, staffID string) (model.WeeklyHours, error) {
	args := m.Called(ctx, staffID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.WeeklyHours), args.Error(1)
}

func (m *mockSource) Override(ctx context.Context, staffID string, date time.Time) (*model.DateOverride, error) {
	args := m.Called(ctx, staffID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DateOverride), args.Error(1)
}

var (
	// 2026-01-14 is a Wednesday.
	wednesday = time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	tod       = model.MustTimeOfDay
)

func tp(s string) *model.TimeOfDay {
	v := tod(s)
	return &v
}

func weekdays() model.WeeklyHours {
	hours := model.WeeklyHours{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		hours[d] = model.DayHours{IsWorking: d != time.Sunday, Start: tod("10:00"), End: tod("19:00")}
	}
	return hours
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name      string
		date      time.Time
		weekly    model.WeeklyHours
		override  *model.DateOverride
		available bool
		start     string
		end       string
		excluded  int
		gap       bool
	}{
		{
			name:      "recurring hours",
			date:      wednesday,
			weekly:    weekdays(),
			available: true, start: "10:00", end: "19:00",
		},
		{
			name:   "recurring day not working",
			date:   wednesday.AddDate(0, 0, 4), // Sunday
			weekly: weekdays(),
		},
		{
			name:     "day off override wins",
			date:     wednesday,
			weekly:   weekdays(),
			override: &model.DateOverride{IsDayOff: true, Start: tp("12:00"), End: tp("14:00")},
		},
		{
			name:      "custom hours replace recurring",
			date:      wednesday,
			weekly:    weekdays(),
			override:  &model.DateOverride{Start: tp("12:00"), End: tp("16:00")},
			available: true, start: "12:00", end: "16:00",
		},
		{
			name:      "custom hours open a non-working day",
			date:      wednesday.AddDate(0, 0, 4),
			weekly:    weekdays(),
			override:  &model.DateOverride{Start: tp("11:00"), End: tp("15:00")},
			available: true, start: "11:00", end: "15:00",
		},
		{
			name:   "exclusions alone do not open a non-working day",
			date:   wednesday.AddDate(0, 0, 4),
			weekly: weekdays(),
			override: &model.DateOverride{Exclusions: []model.TimeRange{
				{Start: tod("13:00"), End: tod("14:00")},
			}},
		},
		{
			name:   "exclusions layered on recurring",
			date:   wednesday,
			weekly: weekdays(),
			override: &model.DateOverride{Exclusions: []model.TimeRange{
				{Start: tod("13:00"), End: tod("14:00")},
				{Start: tod("17:00"), End: tod("17:30")},
				{Start: tod("18:00"), End: tod("18:00")}, // empty, ignored
			}},
			available: true, start: "10:00", end: "19:00", excluded: 2,
		},
		{
			name:   "missing weekday is a gap",
			date:   wednesday,
			weekly: model.WeeklyHours{time.Monday: {IsWorking: true, Start: tod("10:00"), End: tod("19:00")}},
			gap:    true,
		},
		{
			name: "no data at all is a gap",
			date: wednesday,
			gap:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, gap := Merge("anna", tt.date, tt.weekly, tt.override)
			assert.Equal(t, tt.gap, gap)
			assert.Equal(t, tt.available, w.Available)
			if tt.available {
				assert.Equal(t, tt.start, w.Start.String())
				assert.Equal(t, tt.end, w.End.String())
			}
			assert.Len(t, w.Excluded, tt.excluded)
		})
	}
}

func TestResolve_ExclusionsAreAbsolute(t *testing.T) {
	src := new(mockSource)
	ctx := context.Background()
	src.On("WeeklyHours", ctx, "anna").Return(weekdays(), nil)
	src.On("Override", ctx, "anna", wednesday).Return(&model.DateOverride{
		Exclusions: []model.TimeRange{{Start: tod("13:00"), End: tod("14:00")}},
	}, nil)

	r := NewResolver(src, DefaultFallback(), zerolog.Nop())
	w, err := r.Resolve(ctx, "anna", wednesday.Add(15*time.Hour))
	require.NoError(t, err)

	require.Len(t, w.Excluded, 1)
	assert.Equal(t, time.Date(2026, 1, 14, 13, 0, 0, 0, time.UTC), w.Excluded[0].Start)
	assert.Equal(t, time.Date(2026, 1, 14, 14, 0, 0, 0, time.UTC), w.Excluded[0].End)
	assert.Equal(t, wednesday, w.Date)
	src.AssertExpectations(t)
}

func TestResolve_FallbackOnLoadError(t *testing.T) {
	src := new(mockSource)
	ctx := context.Background()
	src.On("WeeklyHours", ctx, "anna").Return(nil, errors.New("db down"))
	src.On("Override", ctx, "anna", wednesday).Return(nil, nil)

	r := NewResolver(src, DefaultFallback(), zerolog.Nop())
	w, err := r.Resolve(ctx, "anna", wednesday)
	require.NoError(t, err)

	assert.True(t, w.Available)
	assert.True(t, w.Fallback)
	assert.Equal(t, "10:00", w.Start.String())
	assert.Equal(t, "19:00", w.End.String())
}

func TestResolve_FallbackKeepsExclusionsAndDayOff(t *testing.T) {
	ctx := context.Background()

	src := new(mockSource)
	src.On("WeeklyHours", ctx, "anna").Return(model.WeeklyHours{}, nil)
	src.On("Override", ctx, "anna", wednesday).Return(&model.DateOverride{
		Exclusions: []model.TimeRange{{Start: tod("13:00"), End: tod("14:00")}},
	}, nil)

	w, err := NewResolver(src, DefaultFallback(), zerolog.Nop()).Resolve(ctx, "anna", wednesday)
	require.NoError(t, err)
	assert.True(t, w.Fallback)
	assert.Len(t, w.Excluded, 1)

	off := new(mockSource)
	off.On("WeeklyHours", ctx, "anna").Return(nil, errors.New("db down"))
	off.On("Override", ctx, "anna", wednesday).Return(&model.DateOverride{IsDayOff: true}, nil)

	w, err = NewResolver(off, DefaultFallback(), zerolog.Nop()).Resolve(ctx, "anna", wednesday)
	require.NoError(t, err)
	assert.False(t, w.Available, "a known day off is not a gap")
}

func TestResolve_FallbackDisabled(t *testing.T) {
	src := new(mockSource)
	ctx := context.Background()
	loadErr := errors.New("db down")
	src.On("WeeklyHours", ctx, "anna").Return(nil, loadErr)
	src.On("Override", ctx, "anna", wednesday).Return(nil, nil)

	r := NewResolver(src, FallbackPolicy{Enabled: false}, zerolog.Nop())
	w, err := r.Resolve(ctx, "anna", wednesday)

	var gapErr *ConfigurationGapError
	require.ErrorAs(t, err, &gapErr)
	assert.Equal(t, "anna", gapErr.StaffID)
	assert.ErrorIs(t, err, loadErr)
	assert.False(t, w.Available)
}

func TestResolve_OverrideErrorUsesRecurring(t *testing.T) {
	src := new(mockSource)
	ctx := context.Background()
	src.On("WeeklyHours", ctx, "anna").Return(weekdays(), nil)
	src.On("Override", ctx, "anna", wednesday).Return(nil, errors.New("timeout"))

	w, err := NewResolver(src, DefaultFallback(), zerolog.Nop()).Resolve(ctx, "anna", wednesday)
	require.NoError(t, err)
	assert.True(t, w.Available)
	assert.False(t, w.Fallback)
}
