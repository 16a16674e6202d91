// internal/workers/brains/operations/brain.go
package operations

import (
	"fmt"

	"command-pipeline/internal/common/policy"
	"command-pipeline/internal/models"
	"command-pipeline/internal/workers/brains"
)

// Brain handles service calls and appointment changes: emergency dispatch,
// catalog matching, zone and technician assignment.
type Brain struct {
	policy *policy.Policy
}

func New(p *policy.Policy) *Brain {
	return &Brain{policy: p}
}

func (b *Brain) ID() models.BrainID { return models.BrainOperations }

func (b *Brain) Handle(cmd models.Command) models.Decision {
	if cmd.Emergency() {
		return b.dispatch(cmd, models.RecordKindServiceCall)
	}
	switch cmd.Intent {
	case models.IntentServiceRequest:
		return b.dispatch(cmd, models.RecordKindServiceCall)
	case models.IntentScheduleAppointment:
		return b.dispatch(cmd, models.RecordKindMaintenance)
	case models.IntentRescheduleAppointment:
		return b.reschedule(cmd)
	case models.IntentCancelAppointment:
		return b.cancel(cmd)
	}
	return models.Decision{Outcome: models.NeedsHuman("I'll have someone from our service team follow up on that.", nil)}
}

// dispatch creates a service call or maintenance visit. Emergencies go out
// on the address alone; everything else needs a name and phone as well.
func (b *Brain) dispatch(cmd models.Command, kind string) models.Decision {
	bag := cmd.Entities
	emergency := cmd.Emergency()
	priority := b.policy.PriorityFor(bag.Urgency)

	var missing []string
	if !emergency {
		if bag.Name() == "" {
			missing = append(missing, brains.FieldName)
		}
		if bag.Phone() == "" {
			missing = append(missing, brains.FieldPhone)
		}
	}
	if !bag.AddressComplete() {
		missing = append(missing, brains.FieldAddress)
	}
	if kind == models.RecordKindMaintenance && !emergency && bag.PreferredDate == "" {
		missing = append(missing, brains.FieldPreferredDate)
	}
	if len(missing) > 0 {
		lead := "I can get a technician scheduled."
		if emergency {
			lead = "This sounds like an emergency and I want to get someone to you right away."
		}
		return brains.NeedMore(lead, map[string]interface{}{
			"emergency": emergency,
			"priority":  priority,
		}, missing...)
	}

	matchKey := bag.FailureType
	if matchKey == "" {
		matchKey = models.FailureGeneral
		if kind == models.RecordKindMaintenance {
			matchKey = "maintenance"
		}
	}
	service := b.policy.Catalog.MatchService(matchKey, bag.SystemType)

	zone, ok := b.policy.ZoneFor(bag.Location)
	if !ok {
		return models.Decision{Outcome: models.NeedsHuman(
			"That address is outside the area our technicians normally cover, so I'm passing this to a dispatcher who can confirm what we can do.",
			map[string]interface{}{
				"reason":     "outside_service_area",
				"postalCode": bag.Location.PostalCode,
				"emergency":  emergency,
				"priority":   priority,
			},
		)}
	}

	tech, ok := zone.AssignTechnician(service.SkillLevel, emergency)
	if !ok {
		return models.Decision{Outcome: models.NeedsHuman(
			"I couldn't find an available technician with the right certification for this job, so a dispatcher will call you to arrange it.",
			map[string]interface{}{
				"reason":      "no_qualified_technician",
				"zone":        zone.ID,
				"serviceCode": service.Code,
				"skillLevel":  service.SkillLevel,
				"emergency":   emergency,
				"priority":    priority,
			},
		)}
	}

	status := models.RecordStatusScheduled
	if emergency {
		status = models.RecordStatusDispatched
	}
	address := bag.Location.String()
	record := &models.ServiceRecord{
		Kind:            kind,
		Status:          status,
		Priority:        priority,
		ServiceCode:     service.Code,
		DurationMinutes: service.DurationMinutes,
		SkillLevel:      service.SkillLevel,
		TechnicianID:    tech.ID,
		TechnicianName:  tech.Name,
		Zone:            zone.ID,
		Urgency:         bag.Urgency,
		Problem:         bag.ProblemDescription,
		Address:         address,
		PreferredDate:   bag.PreferredDate,
		Emergency:       emergency,
	}

	effects := brains.Effects(
		brains.ResolveIdentity(bag),
		&models.Effect{Kind: models.EffectUpsertServiceRecord, ServiceRecord: record},
	)
	if b.policy.Notifications.ConfirmBySMS && bag.Phone() != "" {
		effects = append(effects, models.Effect{Kind: models.EffectNotify, Notification: &models.Notification{
			Recipient: bag.Phone(),
			Channel:   models.NotifySMS,
			Message:   confirmationText(service.Name, tech.Name, address, emergency),
			Context:   map[string]string{"serviceCode": service.Code, "priority": priority},
		}})
	}
	if emergency && b.policy.Notifications.PageOnCallTechnician && tech.Phone != "" {
		effects = append(effects, models.Effect{Kind: models.EffectNotify, Notification: &models.Notification{
			Recipient: tech.Phone,
			Channel:   models.NotifySMS,
			Message:   fmt.Sprintf("%s EMERGENCY %s at %s: %s", priority, service.Name, address, bag.EmergencyReason),
			Context:   map[string]string{"technicianId": tech.ID, "zone": zone.ID},
		}})
	}

	data := map[string]interface{}{
		"technician": map[string]interface{}{
			"id":   tech.ID,
			"name": tech.Name,
		},
		"priority":        priority,
		"serviceCode":     service.Code,
		"durationMinutes": service.DurationMinutes,
		"skillLevel":      service.SkillLevel,
		"zone":            zone.ID,
		"emergency":       emergency,
	}
	if bag.EmergencyReason != "" {
		data["emergencyReason"] = bag.EmergencyReason
	}

	var msg string
	if emergency {
		msg = fmt.Sprintf("I've dispatched %s on an emergency call to %s. They'll phone you when they're on the way. If you smell gas or see smoke, leave the building and call 911.", tech.Name, address)
	} else {
		msg = fmt.Sprintf("You're booked for %s at %s", service.Name, address)
		if bag.PreferredDate != "" {
			msg += " for " + bag.PreferredDate
		}
		msg += fmt.Sprintf(". %s will be your technician and the visit takes about %d minutes.", tech.Name, service.DurationMinutes)
	}

	return models.Decision{Outcome: models.Completed(msg, data), Effects: effects}
}

func (b *Brain) reschedule(cmd models.Command) models.Decision {
	bag := cmd.Entities
	var missing []string
	if bag.AppointmentID == "" {
		missing = append(missing, brains.FieldAppointmentID)
	}
	if bag.PreferredDate == "" {
		missing = append(missing, brains.FieldPreferredDate)
	}
	if len(missing) > 0 {
		return brains.NeedMore("I can move that appointment.", nil, missing...)
	}

	record := &models.ServiceRecord{
		ID:            bag.AppointmentID,
		Kind:          models.RecordKindAppointment,
		Status:        models.RecordStatusRescheduleRequested,
		PreferredDate: bag.PreferredDate,
	}
	return models.Decision{
		Outcome: models.Completed(
			fmt.Sprintf("I've requested to move appointment %s to %s. You'll get a text once the new time is confirmed.", bag.AppointmentID, bag.PreferredDate),
			map[string]interface{}{"appointmentId": bag.AppointmentID, "preferredDate": bag.PreferredDate},
		),
		Effects: []models.Effect{{Kind: models.EffectUpsertServiceRecord, ServiceRecord: record}},
	}
}

func (b *Brain) cancel(cmd models.Command) models.Decision {
	bag := cmd.Entities
	if bag.AppointmentID == "" {
		return brains.NeedMore("I can cancel that for you.", nil, brains.FieldAppointmentID)
	}

	record := &models.ServiceRecord{
		ID:     bag.AppointmentID,
		Kind:   models.RecordKindAppointment,
		Status: models.RecordStatusCancelled,
	}
	return models.Decision{
		Outcome: models.Completed(
			fmt.Sprintf("Appointment %s is cancelled.", bag.AppointmentID),
			map[string]interface{}{"appointmentId": bag.AppointmentID},
		),
		Effects: []models.Effect{{Kind: models.EffectUpsertServiceRecord, ServiceRecord: record}},
	}
}

func confirmationText(service, tech, address string, emergency bool) string {
	if emergency {
		return fmt.Sprintf("%s is on the way to %s for an emergency %s. Reply STOP to opt out.", tech, address, service)
	}
	return fmt.Sprintf("Your %s at %s is booked with %s. Reply STOP to opt out.", service, address, tech)
}
