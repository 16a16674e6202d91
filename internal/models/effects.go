// internal/models/effects.go
package models

// EffectKind is the closed set of external effects a brain may declare.
type EffectKind string

const (
	EffectResolveIdentity     EffectKind = "resolve_identity"
	EffectUpsertServiceRecord EffectKind = "upsert_service_record"
	EffectCreateLead          EffectKind = "create_lead"
	EffectCreateQuote         EffectKind = "create_quote"
	EffectReadInvoiceStatus   EffectKind = "read_invoice_status"
	EffectNotify              EffectKind = "notify"
)

// Effect is a declarative request for one external call. Exactly one payload
// pointer matching Kind is set.
type Effect struct {
	Kind          EffectKind     `json:"kind"`
	Identity      *IdentitySpec  `json:"identity,omitempty"`
	ServiceRecord *ServiceRecord `json:"serviceRecord,omitempty"`
	Lead          *Lead          `json:"lead,omitempty"`
	Quote         *Quote         `json:"quote,omitempty"`
	Invoice       *InvoiceQuery  `json:"invoice,omitempty"`
	Notification  *Notification  `json:"notification,omitempty"`
}

type IdentitySpec struct {
	Identity Identity `json:"identity"`
	Address  string   `json:"address,omitempty"`
}

type ServiceRecord struct {
	ID              string       `json:"id,omitempty"`
	CustomerID      string       `json:"customerId,omitempty"`
	Kind            string       `json:"kind"`
	Status          string       `json:"status"`
	Priority        string       `json:"priority,omitempty"`
	ServiceCode     string       `json:"serviceCode,omitempty"`
	DurationMinutes int          `json:"durationMinutes,omitempty"`
	SkillLevel      int          `json:"skillLevel,omitempty"`
	TechnicianID    string       `json:"technicianId,omitempty"`
	TechnicianName  string       `json:"technicianName,omitempty"`
	Zone            string       `json:"zone,omitempty"`
	Urgency         UrgencyLevel `json:"urgency,omitempty"`
	Problem         string       `json:"problem,omitempty"`
	Address         string       `json:"address,omitempty"`
	PreferredDate   string       `json:"preferredDate,omitempty"`
	Emergency       bool         `json:"emergency,omitempty"`
}

// Service record kinds and statuses.
const (
	RecordKindServiceCall = "service_call"
	RecordKindMaintenance = "maintenance"
	RecordKindAppointment = "appointment"

	RecordStatusScheduled           = "scheduled"
	RecordStatusDispatched          = "dispatched"
	RecordStatusRescheduleRequested = "reschedule_requested"
	RecordStatusCancelled           = "cancelled"
)

type Lead struct {
	CustomerID string `json:"customerId,omitempty"`
	Kind       string `json:"kind"`
	Tier       string `json:"tier,omitempty"`
	Source     string `json:"source,omitempty"`
	Timeline   string `json:"timeline,omitempty"`
	BudgetUSD  *int   `json:"budgetUsd,omitempty"`
	Role       string `json:"role,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

const (
	LeadKindSales     = "sales"
	LeadKindApplicant = "applicant"
)

type Quote struct {
	CustomerID      string  `json:"customerId,omitempty"`
	LeadID          string  `json:"leadId,omitempty"`
	SystemType      string  `json:"systemType"`
	SquareFeet      int     `json:"squareFeet"`
	Tonnage         float64 `json:"tonnage"`
	EstimateLowUSD  int     `json:"estimateLowUsd"`
	EstimateHighUSD int     `json:"estimateHighUsd"`
}

type InvoiceQuery struct {
	InvoiceNumber string `json:"invoiceNumber"`
}

type InvoiceStatus struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	Status        string  `json:"status"`
	Total         float64 `json:"total"`
	BalanceDue    float64 `json:"balanceDue"`
	DueDate       string  `json:"dueDate,omitempty"`
}

type NotificationChannel string

const (
	NotifySMS   NotificationChannel = "sms"
	NotifyEmail NotificationChannel = "email"
)

type Notification struct {
	Recipient string              `json:"recipient"`
	Channel   NotificationChannel `json:"channel"`
	Subject   string              `json:"subject,omitempty"`
	Message   string              `json:"message"`
	Context   map[string]string   `json:"context,omitempty"`
}

// Effect step statuses.
const (
	StepSucceeded = "succeeded"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
)

type EffectStep struct {
	Kind     EffectKind `json:"kind"`
	Status   string     `json:"status"`
	RecordID string     `json:"recordId,omitempty"`
	Attempts int        `json:"attempts,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// EffectResults is what the gateway learned while executing a decision. On
// partial failure it still lists every step attempted.
type EffectResults struct {
	CustomerID       string         `json:"customerId,omitempty"`
	IdentityCreated  bool           `json:"identityCreated,omitempty"`
	IdentityConflict bool           `json:"identityConflict,omitempty"`
	ServiceRecordID  string         `json:"serviceRecordId,omitempty"`
	LeadID           string         `json:"leadId,omitempty"`
	QuoteID          string         `json:"quoteId,omitempty"`
	Invoice          *InvoiceStatus `json:"invoice,omitempty"`
	Steps            []EffectStep   `json:"steps,omitempty"`
}

// CustomerIdentity is a customer record owned by the ERP.
type CustomerIdentity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// IdentityQuery selects exactly one lookup key.
type IdentityQuery struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}
