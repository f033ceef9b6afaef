// Package fleet holds the read models of the transport domain that the tracking core consumes.
package fleet

import (
	"strconv"
	"strings"
	"time"

	"github.com/kiddiebus/kiddiebus-client/internal/utils"
)

type BusStatus string

const (
	BusActive      BusStatus = "active"
	BusMaintenance BusStatus = "maintenance"
	BusInactive    BusStatus = "inactive"
)

// Location is a bus's last reported position
type Location struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	UpdatedAt *Timestamp `json:"updated_at,omitempty"`
}

type Bus struct {
	ID                 int       `json:"id"`
	RegistrationNumber string    `json:"registration_number"`
	Capacity           int       `json:"capacity,omitempty"`
	Make               string    `json:"make,omitempty"`
	Model              string    `json:"model,omitempty"`
	Year               int       `json:"year,omitempty"`
	Status             BusStatus `json:"status,omitempty"`
	CurrentLocation    *Location `json:"current_location,omitempty"` // nil until the bus reports
}

// Vehicle returns "Make Model", trimmed
func (b *Bus) Vehicle() string {
	return strings.TrimSpace(b.Make + " " + b.Model)
}

// Snapshot converts the bus's current position into a LocationSnapshot. A bus that
// has not reported yields a snapshot with no coordinates.
func (b *Bus) Snapshot() Snapshot {
	s := Snapshot{BusID: b.ID, Label: b.RegistrationNumber}
	if loc := b.CurrentLocation; loc != nil {
		s.Latitude = loc.Latitude
		s.Longitude = loc.Longitude
		if loc.UpdatedAt != nil {
			s.UpdatedAt = utils.Ptr(loc.UpdatedAt.Time)
		}
	}
	return s
}

type Route struct {
	ID                 int      `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	BusID              *int     `json:"bus_id,omitempty"`
	Bus                *Bus     `json:"bus,omitempty"`
	OperatorID         int      `json:"operator_id,omitempty"`
	StartLocation      string   `json:"start_location,omitempty"`
	EndLocation        string   `json:"end_location,omitempty"`
	ScheduledStartTime string   `json:"scheduled_start_time,omitempty"`
	ScheduledEndTime   string   `json:"scheduled_end_time,omitempty"`
	DaysOfWeek         []string `json:"days_of_week,omitempty"`
	Status             string   `json:"status,omitempty"`
	IsMorningRoute     bool     `json:"is_morning_route"`
}

// AssignedBusID returns the bus serving the route, preferring the embedded bus
func (r *Route) AssignedBusID() (int, bool) {
	if r.Bus != nil && r.Bus.ID != 0 {
		return r.Bus.ID, true
	}
	if r.BusID != nil {
		return *r.BusID, true
	}
	return 0, false
}

func (r *Route) Kind() string {
	if r.IsMorningRoute {
		return "Morning Pickup"
	}
	return "Afternoon Drop-off"
}

func (r *Route) Schedule() string {
	if r.ScheduledStartTime == "" || r.ScheduledEndTime == "" {
		return "Not set"
	}
	return r.ScheduledStartTime + " - " + r.ScheduledEndTime
}

func (r *Route) Days() string {
	if len(r.DaysOfWeek) == 0 {
		return "Not set"
	}
	days := make([]string, 0, len(r.DaysOfWeek))
	for _, d := range r.DaysOfWeek {
		if d == "" {
			continue
		}
		days = append(days, strings.ToUpper(d[:1])+d[1:])
	}
	return strings.Join(days, ", ")
}

type Student struct {
	ID            int    `json:"id"`
	FullName      string `json:"full_name"`
	RouteID       *int   `json:"route_id,omitempty"`
	SchoolID      *int   `json:"school_id,omitempty"`
	ParentID      *int   `json:"parent_id,omitempty"`
	CardID        string `json:"card_id,omitempty"`
	PickupAddress string `json:"pickup_address,omitempty"`
}

func (s *Student) HasRoute() bool {
	return s.RouteID != nil
}

// Snapshot is a LocationSnapshot: the latest known position of one bus. Latitude and
// Longitude are both nil when the bus has not reported yet, which is a valid state.
type Snapshot struct {
	BusID     int
	Label     string
	Latitude  *float64
	Longitude *float64
	UpdatedAt *time.Time
}

func (s Snapshot) HasPosition() bool {
	return utils.Both(s.Latitude, s.Longitude)
}

func (s Snapshot) Key() string {
	return strconv.Itoa(s.BusID)
}

// Timestamp decodes the server's ISO-8601 timestamps, which may omit the zone
// (naive values are UTC).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.UTC().Format(time.RFC3339Nano))), nil
}
