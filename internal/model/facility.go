package model

import (
	"time"
)

// Category classifies a facility by the kind of care it delivers.
type Category string

const (
	CategoryUrgentCare Category = "urgent_care"
	CategoryEmergency  Category = "emergency"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	return c == CategoryUrgentCare || c == CategoryEmergency
}

// Hours holds a facility's daily operating window as local clock times
// in "15:04" format. A nil Hours means the facility is always open.
type Hours struct {
	Open  string `json:"open" yaml:"open"`
	Close string `json:"close" yaml:"close"`
}

// IsOpenAt reports whether t falls inside the operating window. Windows
// that cross midnight (e.g. 18:00 to 02:00) are supported.
func (h *Hours) IsOpenAt(t time.Time) bool {
	if h == nil {
		return true
	}
	open, err1 := time.Parse("15:04", h.Open)
	cls, err2 := time.Parse("15:04", h.Close)
	if err1 != nil || err2 != nil {
		return true
	}
	openMin := open.Hour()*60 + open.Minute()
	closeMin := cls.Hour()*60 + cls.Minute()
	nowMin := t.Hour()*60 + t.Minute()

	if openMin == closeMin {
		return true // degenerate window, treat as always open
	}
	if openMin < closeMin {
		return nowMin >= openMin && nowMin < closeMin
	}
	// Window crosses midnight.
	return nowMin >= openMin || nowMin < closeMin
}

// Facility is a single care location from the static catalog. Facilities
// are read-only to the fetch layer; a fetch cycle never mutates them.
type Facility struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Category       Category `json:"category" yaml:"category"`
	APIEndpoint    string   `json:"api_endpoint,omitempty" yaml:"api_endpoint"`
	Website        string   `json:"website,omitempty" yaml:"website"`
	SyntheticOnly  bool     `json:"synthetic_only,omitempty" yaml:"synthetic_only"`
	AvgWaitMinutes int      `json:"avg_wait_minutes,omitempty" yaml:"avg_wait_minutes"`
	Hours          *Hours   `json:"hours,omitempty" yaml:"hours"`
}
