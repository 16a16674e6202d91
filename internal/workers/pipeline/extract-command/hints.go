// internal/workers/pipeline/extract-command/hints.go
package extractcommand

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"command-pipeline/internal/models"
)

// applyHints overwrites text-derived entities with structured hints after
// normalising them the same way. Hints that fail normalisation are ignored.
func applyHints(bag *models.EntityBag, h *models.Hints) {
	if h == nil {
		return
	}

	if name := strings.TrimSpace(h.Name); name != "" {
		identity(bag).Name = cases.Title(language.English).String(cleanText(name))
	}
	if phone := NormalizePhone(h.Phone); phone != "" {
		identity(bag).Phone = phone
	}
	if email := strings.ToLower(strings.TrimSpace(h.Email)); emailPattern.MatchString(email) {
		identity(bag).Email = email
	}
	if strings.TrimSpace(h.Address) != "" {
		bag.Location = parseAddressHint(h.Address)
	}

	if h.PropertyType != "" || h.SquareFeet != nil || h.PropertyAgeYears != nil {
		if bag.Property == nil {
			bag.Property = &models.PropertyDetails{}
		}
		if h.PropertyType != "" {
			bag.Property.Type = strings.ToLower(strings.TrimSpace(h.PropertyType))
		}
		if h.SquareFeet != nil && *h.SquareFeet > 0 {
			v := *h.SquareFeet
			bag.Property.SquareFeet = &v
		}
		if h.PropertyAgeYears != nil && *h.PropertyAgeYears >= 0 {
			v := *h.PropertyAgeYears
			bag.Property.AgeYears = &v
		}
	}

	if t := strings.ToLower(strings.TrimSpace(h.Timeline)); models.ValidTimeline(t) {
		bag.Timeline = t
	} else if t != "" {
		if v := firstPhrase(timelineRules, t); v != "" {
			bag.Timeline = v
		}
	}
	if st := strings.ToLower(strings.TrimSpace(h.SystemType)); st != "" {
		if v := firstPhrase(systemTypeRules, strings.ReplaceAll(st, "_", " ")); v != "" {
			bag.SystemType = v
		} else {
			bag.SystemType = st
		}
	}
	if h.BudgetUSD != nil && *h.BudgetUSD > 0 {
		v := *h.BudgetUSD
		bag.BudgetUSD = &v
	}
	if h.AppointmentID != "" {
		bag.AppointmentID = strings.ToUpper(strings.TrimSpace(h.AppointmentID))
	}
	if h.InvoiceNumber != "" {
		bag.InvoiceNumber = strings.ToUpper(strings.TrimSpace(h.InvoiceNumber))
	}
	if h.EmployeeID != "" {
		bag.EmployeeID = strings.ToUpper(strings.TrimSpace(h.EmployeeID))
	}
	if h.PreferredDate != "" {
		bag.PreferredDate = strings.ToLower(cleanText(h.PreferredDate))
	}
	if h.Role != "" {
		bag.Role = strings.ToLower(strings.TrimSpace(h.Role))
	}
	if h.CustomerTier != "" {
		bag.CustomerTier = strings.ToLower(strings.TrimSpace(h.CustomerTier))
	}
	if h.IndoorTemperatureF != nil {
		v := *h.IndoorTemperatureF
		bag.IndoorTemperatureF = &v
	}
}

// applyCallerIdentity fills identity fields neither the text nor the hints
// supplied.
func applyCallerIdentity(bag *models.EntityBag, caller *models.Identity) {
	if caller.Empty() {
		return
	}
	id := identity(bag)
	if id.Name == "" && strings.TrimSpace(caller.Name) != "" {
		id.Name = cases.Title(language.English).String(cleanText(caller.Name))
	}
	if id.Phone == "" {
		id.Phone = NormalizePhone(caller.Phone)
	}
	if id.Email == "" {
		if email := strings.ToLower(strings.TrimSpace(caller.Email)); emailPattern.MatchString(email) {
			id.Email = email
		}
	}
	if id.Empty() {
		bag.Identity = nil
	}
}

func identity(bag *models.EntityBag) *models.Identity {
	if bag.Identity == nil {
		bag.Identity = &models.Identity{}
	}
	return bag.Identity
}
