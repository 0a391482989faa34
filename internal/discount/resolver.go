// Package discount picks the best time-sensitive discount for a slot.
package discount

import (
	"math"
	"time"

	"salonbook/internal/model"
)

// Query describes the slot being priced. StaffID may be empty when the staff
// member is not known yet.
type Query struct {
	ServiceID string
	StaffID   string
	Date      time.Time
	At        model.TimeOfDay
}

// QueryAt builds a Query from an absolute start time.
func QueryAt(serviceID, staffID string, start time.Time) Query {
	return Query{
		ServiceID: serviceID,
		StaffID:   staffID,
		Date:      model.DateOf(start),
		At:        model.TimeOfDayOf(start),
	}
}

// Best returns the matching rule with the highest percent. Ties keep the
// earliest rule in rules. The returned pointer aliases rules.
func Best(rules []model.DiscountRule, q Query) (*model.DiscountRule, bool) {
	var best *model.DiscountRule
	for i := range rules {
		r := &rules[i]
		if !Matches(r, q) {
			continue
		}
		if best == nil || r.Percent > best.Percent {
			best = r
		}
	}
	return best, best != nil
}

// Matches reports whether rule applies to q.
func Matches(rule *model.DiscountRule, q Query) bool {
	if rule.Percent < 0 || rule.Percent > 100 || math.IsNaN(rule.Percent) {
		return false
	}
	if !contains(rule.ServiceIDs, q.ServiceID) {
		return false
	}
	if !withinValidity(rule, q.Date) {
		return false
	}
	if !hasWeekday(rule.Days, q.Date.Weekday()) {
		return false
	}
	if q.At < rule.Start || q.At >= rule.End {
		return false
	}
	if q.StaffID != "" && len(rule.StaffIDs) > 0 && !contains(rule.StaffIDs, q.StaffID) {
		return false
	}
	return true
}

// Apply returns price reduced by percent, unrounded.
func Apply(priceMinor int64, percent float64) float64 {
	return float64(priceMinor) * (1 - percent/100)
}

// RoundMinor rounds an amount to whole minor units, half away from zero.
// Call it once, when the amount is shown or charged.
func RoundMinor(amount float64) int64 {
	return int64(math.Round(amount))
}

// Price is a resolved price for one slot.
type Price struct {
	OriginalMinor   int64   `json:"original_minor"`
	FinalMinor      int64   `json:"final_minor"`
	DiscountID      string  `json:"discount_id,omitempty"`
	DiscountName    string  `json:"discount_name,omitempty"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`
}

// PriceFor resolves the best rule for q and prices priceMinor with it.
func PriceFor(rules []model.DiscountRule, priceMinor int64, q Query) Price {
	p := Price{OriginalMinor: priceMinor, FinalMinor: priceMinor}
	rule, ok := Best(rules, q)
	if !ok {
		return p
	}
	p.DiscountID = rule.ID
	p.DiscountName = rule.Name
	p.DiscountPercent = rule.Percent
	p.FinalMinor = RoundMinor(Apply(priceMinor, rule.Percent))
	return p
}

// withinValidity compares calendar dates only; both bounds are inclusive.
func withinValidity(rule *model.DiscountRule, date time.Time) bool {
	d := dateKey(date)
	if rule.ValidFrom != nil && d < dateKey(*rule.ValidFrom) {
		return false
	}
	if rule.ValidUntil != nil && d > dateKey(*rule.ValidUntil) {
		return false
	}
	return true
}

func dateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

func hasWeekday(days []time.Weekday, wd time.Weekday) bool {
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
