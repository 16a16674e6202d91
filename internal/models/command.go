// internal/models/command.go
package models

// IntentKind is the closed set of intents the extractor can emit.
type IntentKind string

const (
	IntentServiceRequest        IntentKind = "service_request"
	IntentScheduleAppointment   IntentKind = "schedule_appointment"
	IntentRescheduleAppointment IntentKind = "reschedule_appointment"
	IntentCancelAppointment     IntentKind = "cancel_appointment"
	IntentQuoteRequest          IntentKind = "quote_request"
	IntentBillingInquiry        IntentKind = "billing_inquiry"
	IntentPaymentTermsInquiry   IntentKind = "payment_terms_inquiry"
	IntentHiringInquiry         IntentKind = "hiring_inquiry"
	IntentOnboardingInquiry     IntentKind = "onboarding_inquiry"
	IntentPayrollInquiry        IntentKind = "payroll_inquiry"
	IntentUnknown               IntentKind = "unknown"
)

// AllIntents lists every IntentKind, Unknown last.
func AllIntents() []IntentKind {
	return []IntentKind{
		IntentServiceRequest,
		IntentScheduleAppointment,
		IntentRescheduleAppointment,
		IntentCancelAppointment,
		IntentQuoteRequest,
		IntentBillingInquiry,
		IntentPaymentTermsInquiry,
		IntentHiringInquiry,
		IntentOnboardingInquiry,
		IntentPayrollInquiry,
		IntentUnknown,
	}
}

func (k IntentKind) Valid() bool {
	for _, known := range AllIntents() {
		if k == known {
			return true
		}
	}
	return false
}

// Channel tags the transport a request arrived on.
type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelChat  Channel = "chat"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelAPI   Channel = "api"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelVoice, ChannelChat, ChannelSMS, ChannelEmail, ChannelAPI:
		return true
	}
	return false
}

// ConversationContext carries caller-side state for multi-turn conversations.
type ConversationContext struct {
	ConversationID string     `json:"conversationId,omitempty"`
	CallID         string     `json:"callId,omitempty"`
	ActiveIntent   IntentKind `json:"activeIntent,omitempty"`
	Turn           int        `json:"turn,omitempty"`
}

// Hints are structured values the channel collected outside the utterance.
// Every field is optional; unknown keys are rejected at the boundary.
type Hints struct {
	Name               string `json:"name,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Email              string `json:"email,omitempty"`
	Address            string `json:"address,omitempty"`
	PropertyType       string `json:"propertyType,omitempty"`
	SquareFeet         *int   `json:"squareFeet,omitempty"`
	PropertyAgeYears   *int   `json:"propertyAgeYears,omitempty"`
	Timeline           string `json:"timeline,omitempty"`
	SystemType         string `json:"systemType,omitempty"`
	BudgetUSD          *int   `json:"budgetUsd,omitempty"`
	AppointmentID      string `json:"appointmentId,omitempty"`
	InvoiceNumber      string `json:"invoiceNumber,omitempty"`
	PreferredDate      string `json:"preferredDate,omitempty"`
	Role               string `json:"role,omitempty"`
	EmployeeID         string `json:"employeeId,omitempty"`
	CustomerTier       string `json:"customerTier,omitempty"`
	IndoorTemperatureF *int   `json:"indoorTemperatureF,omitempty"`
}

// CommandRequest is the inbound submission from a channel.
type CommandRequest struct {
	RequestID          string               `json:"requestId,omitempty"`
	CallID             string               `json:"callId,omitempty"`
	ToolCallID         string               `json:"toolCallId,omitempty"`
	Scope              string               `json:"scope,omitempty"`
	RawText            string               `json:"rawText"`
	Channel            Channel              `json:"channel"`
	Context            *ConversationContext `json:"conversationContext,omitempty"`
	CallerIdentityHint *Identity            `json:"callerIdentityHint,omitempty"`
	Hints              *Hints               `json:"hints,omitempty"`
}

// Command is the typed result of extraction. Treat as immutable.
type Command struct {
	Intent   IntentKind `json:"intent"`
	Entities EntityBag  `json:"entities"`
	Channel  Channel    `json:"channel"`
	RawText  string     `json:"rawText"`
}

// Emergency reports whether extraction elevated the command to the top urgency tier.
func (c Command) Emergency() bool {
	return c.Entities.Urgency == UrgencyEmergency
}
