// internal/models/entities.go
package models

import "strings"

type UrgencyLevel string

const (
	UrgencyEmergency UrgencyLevel = "emergency"
	UrgencyToday     UrgencyLevel = "today"
	UrgencyThisWeek  UrgencyLevel = "this_week"
	UrgencyFlexible  UrgencyLevel = "flexible"
)

// Timeline buckets for purchase decisions.
const (
	TimelineImmediate    = "immediate"
	TimelineThisWeek     = "this_week"
	TimelineThisMonth    = "this_month"
	TimelineWithinMonths = "within_3_months"
	TimelineResearching  = "researching"
)

// ValidTimeline reports whether t is one of the timeline buckets.
func ValidTimeline(t string) bool {
	switch t {
	case TimelineImmediate, TimelineThisWeek, TimelineThisMonth, TimelineWithinMonths, TimelineResearching:
		return true
	}
	return false
}

// Failure types recognised by emergency qualification.
const (
	FailureNoHeat           = "no_heat"
	FailureNoCooling        = "no_cooling"
	FailureGasLeak          = "gas_leak"
	FailureCarbonMonoxide   = "carbon_monoxide"
	FailureElectricalHazard = "electrical_hazard"
	FailureWaterLeak        = "water_leak"
	FailureNoise            = "noise"
	FailureGeneral          = "general"
)

type Identity struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

func (i *Identity) Empty() bool {
	return i == nil || (i.Name == "" && i.Phone == "" && i.Email == "")
}

type Location struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Complete   bool   `json:"complete"`
}

// String renders the address in a single line.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if l.Street != "" {
		parts = append(parts, l.Street)
	}
	if l.City != "" {
		parts = append(parts, l.City)
	}
	tail := strings.TrimSpace(l.State + " " + l.PostalCode)
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

type PropertyDetails struct {
	Type       string `json:"type,omitempty"`
	SquareFeet *int   `json:"squareFeet,omitempty"`
	AgeYears   *int   `json:"ageYears,omitempty"`
}

// EntityBag holds every entity kind the extractor knows. Absent entities stay
// nil or empty.
type EntityBag struct {
	Identity           *Identity        `json:"identity,omitempty"`
	Location           *Location        `json:"location,omitempty"`
	ProblemDescription string           `json:"problemDescription,omitempty"`
	FailureType        string           `json:"failureType,omitempty"`
	Urgency            UrgencyLevel     `json:"urgency,omitempty"`
	EmergencyReason    string           `json:"emergencyReason,omitempty"`
	IndoorTemperatureF *int             `json:"indoorTemperatureF,omitempty"`
	Timeline           string           `json:"timeline,omitempty"`
	SystemType         string           `json:"systemType,omitempty"`
	SystemAgeYears     *int             `json:"systemAgeYears,omitempty"`
	Property           *PropertyDetails `json:"property,omitempty"`
	BudgetUSD          *int             `json:"budgetUsd,omitempty"`
	Financing          bool             `json:"financing,omitempty"`
	AppointmentID      string           `json:"appointmentId,omitempty"`
	PreferredDate      string           `json:"preferredDate,omitempty"`
	InvoiceNumber      string           `json:"invoiceNumber,omitempty"`
	CustomerTier       string           `json:"customerTier,omitempty"`
	Role               string           `json:"role,omitempty"`
	EmployeeID         string           `json:"employeeId,omitempty"`
}

// Name returns the identity name or "".
func (b EntityBag) Name() string {
	if b.Identity == nil {
		return ""
	}
	return b.Identity.Name
}

// Phone returns the canonical phone or "".
func (b EntityBag) Phone() string {
	if b.Identity == nil {
		return ""
	}
	return b.Identity.Phone
}

// Email returns the identity email or "".
func (b EntityBag) Email() string {
	if b.Identity == nil {
		return ""
	}
	return b.Identity.Email
}

// SquareFeet returns the property size when known.
func (b EntityBag) SquareFeet() (int, bool) {
	if b.Property == nil || b.Property.SquareFeet == nil {
		return 0, false
	}
	return *b.Property.SquareFeet, true
}

// AddressComplete reports whether a usable address was captured.
func (b EntityBag) AddressComplete() bool {
	return b.Location != nil && b.Location.Complete
}
