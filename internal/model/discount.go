package model

import "time"

// DiscountRule is a time-sensitive percentage discount configured by the salon.
type DiscountRule struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Percent    float64        `json:"percent"`
	Days       []time.Weekday `json:"days"` // 0=Sunday .. 6=Saturday
	Start      TimeOfDay      `json:"start"`
	End        TimeOfDay      `json:"end"`
	ServiceIDs []string       `json:"service_ids"`
	StaffIDs   []string       `json:"staff_ids,omitempty"` // empty means every staff member
	ValidFrom  *time.Time     `json:"valid_from,omitempty"`
	ValidUntil *time.Time     `json:"valid_until,omitempty"`
}
