package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"salonbook/internal/model"
)

// ScheduleConfig is a staff member's regular day.
type ScheduleConfig struct {
	StartTime string `yaml:"start_time"` // "10:00"
	EndTime   string `yaml:"end_time"`   // "19:00"
}

// DayHoursConfig replaces the regular day for one day of the week.
type DayHoursConfig struct {
	Day       int    `yaml:"day"` // 1=Mon, 7=Sun
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
}

// StaffConfig represents a single staff member.
type StaffConfig struct {
	ID        string           `yaml:"id"`
	Name      string           `yaml:"name"`
	SortOrder int              `yaml:"sort_order"`
	IsActive  *bool            `yaml:"is_active"` // defaults to true
	Services  []string         `yaml:"services"`
	Schedule  *ScheduleConfig  `yaml:"schedule,omitempty"`
	DaysOff   []int            `yaml:"days_off,omitempty"` // 1=Mon, 7=Sun; replaces defaults.days_off
	Hours     []DayHoursConfig `yaml:"hours,omitempty"`
}

// Active reports whether the staff member takes bookings.
func (s StaffConfig) Active() bool {
	return s.IsActive == nil || *s.IsActive
}

// ServiceConfig represents a bookable service.
type ServiceConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	PriceMinor      int64  `yaml:"price_minor"`
	IsActive        *bool  `yaml:"is_active"`
}

// DiscountConfig represents a time-sensitive discount.
type DiscountConfig struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Percent    float64  `yaml:"percent"`
	Days       []int    `yaml:"days"` // 1=Mon, 7=Sun
	StartTime  string   `yaml:"start_time"`
	EndTime    string   `yaml:"end_time"`
	Services   []string `yaml:"services"`
	Staff      []string `yaml:"staff,omitempty"` // empty = every staff member
	ValidFrom  string   `yaml:"valid_from,omitempty"`
	ValidUntil string   `yaml:"valid_until,omitempty"`
}

// HolidayConfig represents a salon-wide day off.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"`
}

// CatalogDefaults apply to staff without their own schedule.
type CatalogDefaults struct {
	Schedule *ScheduleConfig `yaml:"schedule"`
	DaysOff  []int           `yaml:"days_off"` // 1=Mon, 7=Sun
}

// SalonConfig is the root of salon.yaml.
type SalonConfig struct {
	Staff     []StaffConfig    `yaml:"staff"`
	Services  []ServiceConfig  `yaml:"services"`
	Discounts []DiscountConfig `yaml:"discounts"`
	Holidays  []HolidayConfig  `yaml:"holidays"`
	Defaults  CatalogDefaults  `yaml:"defaults"`
}

// LoadCatalog loads and validates salon.yaml.
func LoadCatalog(path string) (*SalonConfig, error) {
	if path == "" {
		path = "configs/salon.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*SalonConfig, error) {
	var cfg SalonConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return &cfg, nil
}

// Validate checks the catalog for errors. Discount percentages are not
// checked here; out-of-range rules are simply never applied.
func (c *SalonConfig) Validate() error {
	if len(c.Services) == 0 {
		return fmt.Errorf("no services defined")
	}
	if len(c.Staff) == 0 {
		return fmt.Errorf("no staff defined")
	}

	services := make(map[string]bool)
	for i, s := range c.Services {
		if s.ID == "" {
			return fmt.Errorf("service[%d]: id is required", i)
		}
		if services[s.ID] {
			return fmt.Errorf("service[%d]: duplicate id '%s'", i, s.ID)
		}
		services[s.ID] = true
		if s.Name == "" {
			return fmt.Errorf("service[%d]: name is required", i)
		}
		if s.DurationMinutes <= 0 {
			return fmt.Errorf("service[%d]: duration_minutes must be positive", i)
		}
		if s.PriceMinor < 0 {
			return fmt.Errorf("service[%d]: price_minor cannot be negative", i)
		}
	}

	staff := make(map[string]bool)
	for i, s := range c.Staff {
		prefix := fmt.Sprintf("staff[%d]", i)
		if s.ID == "" {
			return fmt.Errorf("%s: id is required", prefix)
		}
		if staff[s.ID] {
			return fmt.Errorf("%s: duplicate id '%s'", prefix, s.ID)
		}
		staff[s.ID] = true
		if s.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		for _, id := range s.Services {
			if !services[id] {
				return fmt.Errorf("%s: unknown service '%s'", prefix, id)
			}
		}
		if s.Schedule != nil {
			if err := validateRange(s.Schedule.StartTime, s.Schedule.EndTime, prefix+".schedule"); err != nil {
				return err
			}
		}
		if err := validateDays(s.DaysOff, prefix+".days_off"); err != nil {
			return err
		}
		for j, h := range s.Hours {
			p := fmt.Sprintf("%s.hours[%d]", prefix, j)
			if err := validateDays([]int{h.Day}, p+".day"); err != nil {
				return err
			}
			if err := validateRange(h.StartTime, h.EndTime, p); err != nil {
				return err
			}
		}
	}

	if c.Defaults.Schedule != nil {
		if err := validateRange(c.Defaults.Schedule.StartTime, c.Defaults.Schedule.EndTime, "defaults.schedule"); err != nil {
			return err
		}
	}
	if err := validateDays(c.Defaults.DaysOff, "defaults.days_off"); err != nil {
		return err
	}

	discounts := make(map[string]bool)
	for i, d := range c.Discounts {
		prefix := fmt.Sprintf("discount[%d]", i)
		if d.ID == "" {
			return fmt.Errorf("%s: id is required", prefix)
		}
		if discounts[d.ID] {
			return fmt.Errorf("%s: duplicate id '%s'", prefix, d.ID)
		}
		discounts[d.ID] = true
		if err := validateRange(d.StartTime, d.EndTime, prefix); err != nil {
			return err
		}
		if err := validateDays(d.Days, prefix+".days"); err != nil {
			return err
		}
		for _, id := range d.Services {
			if !services[id] {
				return fmt.Errorf("%s: unknown service '%s'", prefix, id)
			}
		}
		for _, id := range d.Staff {
			if !staff[id] {
				return fmt.Errorf("%s: unknown staff '%s'", prefix, id)
			}
		}
		for field, v := range map[string]string{"valid_from": d.ValidFrom, "valid_until": d.ValidUntil} {
			if v == "" {
				continue
			}
			if _, err := time.Parse(model.DateLayout, v); err != nil {
				return fmt.Errorf("%s.%s: invalid date format '%s', expected YYYY-MM-DD", prefix, field, v)
			}
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse(model.DateLayout, h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	return nil
}

func validateRange(start, end, prefix string) error {
	if start == "" {
		return fmt.Errorf("%s.start_time is required", prefix)
	}
	if end == "" {
		return fmt.Errorf("%s.end_time is required", prefix)
	}
	s, err := model.ParseTimeOfDay(start)
	if err != nil {
		return fmt.Errorf("%s.start_time: %w", prefix, err)
	}
	e, err := model.ParseTimeOfDay(end)
	if err != nil {
		return fmt.Errorf("%s.end_time: %w", prefix, err)
	}
	if s >= e {
		return fmt.Errorf("%s: start_time must be before end_time", prefix)
	}
	return nil
}

func validateDays(days []int, prefix string) error {
	for i, d := range days {
		if d < 1 || d > 7 {
			return fmt.Errorf("%s[%d]: invalid day %d, must be 1-7 (1=Mon, 7=Sun)", prefix, i, d)
		}
	}
	return nil
}

// weekday converts 1=Mon..7=Sun to time.Weekday.
func weekday(d int) time.Weekday {
	return time.Weekday(d % 7)
}

// WeeklyHours expands a staff member's schedule into one entry per weekday.
// Staff without a schedule use defaults; without either, no entries are
// produced and the availability fallback applies.
func (c *SalonConfig) WeeklyHours(s StaffConfig) model.WeeklyHours {
	sched := s.Schedule
	if sched == nil {
		sched = c.Defaults.Schedule
	}
	daysOff := s.DaysOff
	if daysOff == nil {
		daysOff = c.Defaults.DaysOff
	}

	hours := model.WeeklyHours{}
	if sched != nil {
		start := model.MustTimeOfDay(sched.StartTime)
		end := model.MustTimeOfDay(sched.EndTime)
		for d := time.Sunday; d <= time.Saturday; d++ {
			hours[d] = model.DayHours{IsWorking: true, Start: start, End: end}
		}
	}
	for _, d := range daysOff {
		hours[weekday(d)] = model.DayHours{IsWorking: false}
	}
	for _, h := range s.Hours {
		hours[weekday(h.Day)] = model.DayHours{
			IsWorking: true,
			Start:     model.MustTimeOfDay(h.StartTime),
			End:       model.MustTimeOfDay(h.EndTime),
		}
	}
	return hours
}

// ServiceModels converts services to model values.
func (c *SalonConfig) ServiceModels() []model.Service {
	out := make([]model.Service, len(c.Services))
	for i, s := range c.Services {
		out[i] = model.Service{
			ID:              s.ID,
			Name:            s.Name,
			DurationMinutes: s.DurationMinutes,
			PriceMinor:      s.PriceMinor,
			IsActive:        s.IsActive == nil || *s.IsActive,
		}
	}
	return out
}

// StaffModels converts staff to model values.
func (c *SalonConfig) StaffModels() []model.Staff {
	out := make([]model.Staff, len(c.Staff))
	for i, s := range c.Staff {
		out[i] = model.Staff{
			ID:         s.ID,
			Name:       s.Name,
			SortOrder:  s.SortOrder,
			IsActive:   s.Active(),
			ServiceIDs: append([]string(nil), s.Services...),
		}
	}
	return out
}

// DiscountRules converts discounts to model values in file order.
// Validity dates are placed in loc.
func (c *SalonConfig) DiscountRules(loc *time.Location) []model.DiscountRule {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]model.DiscountRule, len(c.Discounts))
	for i, d := range c.Discounts {
		days := make([]time.Weekday, len(d.Days))
		for j, day := range d.Days {
			days[j] = weekday(day)
		}
		out[i] = model.DiscountRule{
			ID:         d.ID,
			Name:       d.Name,
			Percent:    d.Percent,
			Days:       days,
			Start:      model.MustTimeOfDay(d.StartTime),
			End:        model.MustTimeOfDay(d.EndTime),
			ServiceIDs: append([]string(nil), d.Services...),
			StaffIDs:   append([]string(nil), d.Staff...),
			ValidFrom:  parseOptionalDate(d.ValidFrom, loc),
			ValidUntil: parseOptionalDate(d.ValidUntil, loc),
		}
	}
	return out
}

func parseOptionalDate(s string, loc *time.Location) *time.Time {
	if s == "" {
		return nil
	}
	t, err := model.ParseDate(s, loc)
	if err != nil {
		return nil
	}
	return &t
}

// CatalogWatcher polls salon.yaml and hands each valid new version to onUpdate.
// A version is identified by modification time and size; an invalid version
// is remembered too, so it is reported once rather than on every tick.
type CatalogWatcher struct {
	path     string
	interval time.Duration
	onUpdate func(*SalonConfig)
	logger   zerolog.Logger

	modTime time.Time
	size    int64
}

// NewCatalogWatcher creates a watcher. Empty path and non-positive interval
// select configs/salon.yaml and 30s.
func NewCatalogWatcher(path string, interval time.Duration, logger zerolog.Logger, onUpdate func(*SalonConfig)) *CatalogWatcher {
	if path == "" {
		path = "configs/salon.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &CatalogWatcher{
		path:     path,
		interval: interval,
		onUpdate: onUpdate,
		logger:   logger.With().Str("component", "catalog").Str("path", path).Logger(),
	}
}

// Load reads the current catalog and applies it. Unlike Poll it fails on an
// invalid file, since there is no previous version to keep.
func (w *CatalogWatcher) Load() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("stat catalog: %w", err)
	}
	cfg, err := LoadCatalog(w.path)
	if err != nil {
		return err
	}
	w.modTime, w.size = info.ModTime(), info.Size()
	w.apply(cfg)
	return nil
}

// Poll reloads the catalog if the file changed since the last version seen.
// It reports whether onUpdate was called.
func (w *CatalogWatcher) Poll() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Debug().Err(err).Msg("catalog stat failed")
		return false
	}
	if info.ModTime().Equal(w.modTime) && info.Size() == w.size {
		return false
	}
	w.modTime, w.size = info.ModTime(), info.Size()

	cfg, err := LoadCatalog(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("catalog changed but is invalid, keeping previous")
		return false
	}
	w.apply(cfg)
	return true
}

// Run polls until ctx is done.
func (w *CatalogWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll()
		}
	}
}

func (w *CatalogWatcher) apply(cfg *SalonConfig) {
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}

// WatchCatalog loads the catalog once, then keeps polling it in the background.
func WatchCatalog(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, onUpdate func(*SalonConfig)) error {
	w := NewCatalogWatcher(path, interval, logger, onUpdate)
	if err := w.Load(); err != nil {
		return err
	}
	go w.Run(ctx)
	return nil
}
