// internal/workers/brains/brain.go
package brains

import (
	"strings"

	"command-pipeline/internal/models"
)

// Brain applies one business area's fixed rules to a Command.
type Brain interface {
	ID() models.BrainID
	Handle(cmd models.Command) models.Decision
}

// Finalizer is implemented by brains whose answer depends on what a
// read-only effect returned.
type Finalizer interface {
	Finalize(decision models.Decision, results models.EffectResults) models.BrainOutcome
}

// Missing field names reported to callers.
const (
	FieldName          = "name"
	FieldPhone         = "phone"
	FieldAddress       = "address"
	FieldPreferredDate = "preferred_date"
	FieldAppointmentID = "appointment_id"
	FieldTimeline      = "timeline"
	FieldPropertySize  = "property_size"
	FieldSystemType    = "system_type"
	FieldInvoiceNumber = "invoice_number"
	FieldEmployeeID    = "employee_id"
)

var fieldPrompts = map[string]string{
	FieldName:          "your name",
	FieldPhone:         "a callback phone number",
	FieldAddress:       "the full service address with street, city and ZIP code",
	FieldPreferredDate: "a preferred date",
	FieldAppointmentID: "your appointment number",
	FieldTimeline:      "when you're hoping to have the work done",
	FieldPropertySize:  "the home's approximate square footage",
	FieldSystemType:    "which kind of system you're interested in",
	FieldInvoiceNumber: "the invoice number",
	FieldEmployeeID:    "your employee ID",
}

// AskFor renders a request for the missing fields in the order given.
func AskFor(missing []string) string {
	prompts := make([]string, 0, len(missing))
	for _, f := range missing {
		if p, ok := fieldPrompts[f]; ok {
			prompts = append(prompts, p)
		} else {
			prompts = append(prompts, strings.ReplaceAll(f, "_", " "))
		}
	}
	switch len(prompts) {
	case 0:
		return ""
	case 1:
		return "I still need " + prompts[0] + "."
	default:
		return "I still need " + strings.Join(prompts[:len(prompts)-1], ", ") + " and " + prompts[len(prompts)-1] + "."
	}
}

// NeedMore is the standard missing-information decision. It never carries
// effects.
func NeedMore(lead string, data map[string]interface{}, missing ...string) models.Decision {
	msg := AskFor(missing)
	if lead != "" {
		msg = lead + " " + msg
	}
	return models.Decision{Outcome: models.NeedsHuman(msg, data, missing...)}
}

// EscalateEmergency is returned by brains that cannot act on an emergency
// themselves so the caller reaches a person immediately.
func EscalateEmergency(brain models.BrainID, cmd models.Command, priority string) models.Decision {
	data := map[string]interface{}{
		"emergency": true,
		"priority":  priority,
		"brain":     string(brain),
	}
	if cmd.Entities.FailureType != "" {
		data["failureType"] = cmd.Entities.FailureType
	}
	if cmd.Entities.EmergencyReason != "" {
		data["emergencyReason"] = cmd.Entities.EmergencyReason
	}
	return models.Decision{Outcome: models.NeedsHuman(
		"This sounds like an emergency. I'm connecting you with our on-call team right now. If you smell gas or see smoke, leave the building and call 911.",
		data,
	)}
}

// ResolveIdentity returns the find-or-create effect for the command's
// identity, or nil when none was captured.
func ResolveIdentity(bag models.EntityBag) *models.Effect {
	if bag.Identity.Empty() {
		return nil
	}
	spec := &models.IdentitySpec{Identity: *bag.Identity}
	if bag.Location != nil {
		spec.Address = bag.Location.String()
	}
	return &models.Effect{Kind: models.EffectResolveIdentity, Identity: spec}
}

// Effects drops nil entries.
func Effects(effects ...*models.Effect) []models.Effect {
	out := make([]models.Effect, 0, len(effects))
	for _, e := range effects {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}
