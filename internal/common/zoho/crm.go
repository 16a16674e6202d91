package zoho

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "command-pipeline/internal/common/errors"
	httpclient "command-pipeline/internal/common/http"
	"command-pipeline/internal/models"
)

// Zoho CRM module names.
const (
	moduleContacts       = "Contacts"
	moduleServiceRecords = "Service_Calls"
	moduleLeads          = "Leads"
	moduleQuotes         = "Quotes"
	moduleInvoices       = "Invoices"
)

// CRMClient is the Zoho CRM implementation of the ERP contract.
type CRMClient struct {
	baseURL string
	http    *httpclient.Client
}

type contact struct {
	ID             string `json:"id,omitempty"`
	FullName       string `json:"Full_Name,omitempty"`
	FirstName      string `json:"First_Name,omitempty"`
	LastName       string `json:"Last_Name"`
	Email          string `json:"Email,omitempty"`
	Phone          string `json:"Phone,omitempty"`
	MailingAddress string `json:"Mailing_Street,omitempty"`
	Source         string `json:"Lead_Source,omitempty"`
}

type serviceCall struct {
	Subject         string `json:"Subject,omitempty"`
	Contact         *ref   `json:"Contact_Name,omitempty"`
	Kind            string `json:"Call_Type,omitempty"`
	Status          string `json:"Status"`
	Priority        string `json:"Priority,omitempty"`
	ServiceCode     string `json:"Service_Code,omitempty"`
	DurationMinutes int    `json:"Duration_Minutes,omitempty"`
	SkillLevel      int    `json:"Skill_Level,omitempty"`
	TechnicianID    string `json:"Technician_ID,omitempty"`
	TechnicianName  string `json:"Technician,omitempty"`
	Zone            string `json:"Zone,omitempty"`
	Problem         string `json:"Description,omitempty"`
	Address         string `json:"Service_Address,omitempty"`
	PreferredDate   string `json:"Preferred_Date,omitempty"`
	Emergency       bool   `json:"Emergency,omitempty"`
}

type lead struct {
	LastName    string `json:"Last_Name"`
	Contact     *ref   `json:"Contact_Name,omitempty"`
	Source      string `json:"Lead_Source,omitempty"`
	Rating      string `json:"Rating,omitempty"`
	Timeline    string `json:"Purchase_Timeline,omitempty"`
	BudgetUSD   *int   `json:"Budget,omitempty"`
	Role        string `json:"Applied_Role,omitempty"`
	Description string `json:"Description,omitempty"`
	Type        string `json:"Lead_Type,omitempty"`
}

type quote struct {
	Subject      string  `json:"Subject"`
	Contact      *ref    `json:"Contact_Name,omitempty"`
	Lead         *ref    `json:"Lead_Name,omitempty"`
	SystemType   string  `json:"System_Type"`
	SquareFeet   int     `json:"Square_Feet"`
	Tonnage      float64 `json:"Tonnage"`
	EstimateLow  int     `json:"Estimate_Low"`
	EstimateHigh int     `json:"Estimate_High"`
}

type invoice struct {
	ID            string  `json:"id"`
	InvoiceNumber string  `json:"Invoice_Number"`
	Status        string  `json:"Status"`
	GrandTotal    float64 `json:"Grand_Total"`
	Balance       float64 `json:"Balance"`
	DueDate       string  `json:"Due_Date"`
}

type ref struct {
	ID string `json:"id"`
}

type writeResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewCRMClient(baseURL, oauthToken string, timeout time.Duration) *CRMClient {
	if baseURL == "" {
		baseURL = "https://www.zohoapis.com/crm/v3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CRMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.NewClient(timeout).WithHeader("Authorization", "Zoho-oauthtoken "+oauthToken),
	}
}

// FindIdentities searches contacts by the single key set on q. No match is
// an empty slice, not an error.
func (c *CRMClient) FindIdentities(ctx context.Context, q models.IdentityQuery) ([]models.CustomerIdentity, error) {
	params := url.Values{}
	switch {
	case q.Phone != "":
		params.Set("phone", q.Phone)
	case q.Email != "":
		params.Set("email", q.Email)
	case q.Address != "":
		params.Set("criteria", fmt.Sprintf("(Mailing_Street:equals:%s)", escapeCriteria(q.Address)))
	default:
		return nil, fmt.Errorf("identity query needs phone, email or address")
	}

	var result struct {
		Data []contact `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/%s/search?%s", c.baseURL, moduleContacts, params.Encode())
	if err := c.call(ctx, "find_identities", http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}

	out := make([]models.CustomerIdentity, 0, len(result.Data))
	for _, ct := range result.Data {
		name := ct.FullName
		if name == "" {
			name = strings.TrimSpace(ct.FirstName + " " + ct.LastName)
		}
		out = append(out, models.CustomerIdentity{
			ID:      ct.ID,
			Name:    name,
			Phone:   ct.Phone,
			Email:   ct.Email,
			Address: ct.MailingAddress,
		})
	}
	return out, nil
}

func (c *CRMClient) CreateIdentity(ctx context.Context, identity models.CustomerIdentity) (string, error) {
	first, last := splitName(identity.Name)
	return c.create(ctx, "create_identity", moduleContacts, contact{
		FirstName:      first,
		LastName:       last,
		Email:          identity.Email,
		Phone:          identity.Phone,
		MailingAddress: identity.Address,
		Source:         "Command Pipeline",
	})
}

// UpsertServiceRecord updates the record when it carries an id and creates
// one otherwise. It returns the record id.
func (c *CRMClient) UpsertServiceRecord(ctx context.Context, rec models.ServiceRecord) (string, error) {
	body := serviceCall{
		Subject:         serviceSubject(rec),
		Kind:            rec.Kind,
		Status:          rec.Status,
		Priority:        rec.Priority,
		ServiceCode:     rec.ServiceCode,
		DurationMinutes: rec.DurationMinutes,
		SkillLevel:      rec.SkillLevel,
		TechnicianID:    rec.TechnicianID,
		TechnicianName:  rec.TechnicianName,
		Zone:            rec.Zone,
		Problem:         rec.Problem,
		Address:         rec.Address,
		PreferredDate:   rec.PreferredDate,
		Emergency:       rec.Emergency,
	}
	if rec.CustomerID != "" {
		body.Contact = &ref{ID: rec.CustomerID}
	}

	if rec.ID == "" {
		return c.create(ctx, "upsert_service_record", moduleServiceRecords, body)
	}

	var resp writeResponse
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, moduleServiceRecords, url.PathEscape(rec.ID))
	if err := c.call(ctx, "upsert_service_record", http.MethodPut, endpoint, envelope(body), &resp); err != nil {
		return "", err
	}
	if _, err := firstID("upsert_service_record", resp); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (c *CRMClient) CreateLead(ctx context.Context, l models.Lead) (string, error) {
	body := lead{
		LastName:    "Lead",
		Source:      l.Source,
		Rating:      l.Tier,
		Timeline:    l.Timeline,
		BudgetUSD:   l.BudgetUSD,
		Role:        l.Role,
		Description: l.Notes,
		Type:        l.Kind,
	}
	if l.CustomerID != "" {
		body.Contact = &ref{ID: l.CustomerID}
	}
	return c.create(ctx, "create_lead", moduleLeads, body)
}

func (c *CRMClient) CreateQuote(ctx context.Context, q models.Quote) (string, error) {
	body := quote{
		Subject:      fmt.Sprintf("%s replacement, %.1f ton", strings.ReplaceAll(q.SystemType, "_", " "), q.Tonnage),
		SystemType:   q.SystemType,
		SquareFeet:   q.SquareFeet,
		Tonnage:      q.Tonnage,
		EstimateLow:  q.EstimateLowUSD,
		EstimateHigh: q.EstimateHighUSD,
	}
	if q.CustomerID != "" {
		body.Contact = &ref{ID: q.CustomerID}
	}
	if q.LeadID != "" {
		body.Lead = &ref{ID: q.LeadID}
	}
	return c.create(ctx, "create_quote", moduleQuotes, body)
}

// InvoiceStatus reads one invoice by number. A missing invoice is (nil, nil).
func (c *CRMClient) InvoiceStatus(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	params := url.Values{}
	params.Set("criteria", fmt.Sprintf("(Invoice_Number:equals:%s)", escapeCriteria(invoiceNumber)))

	var result struct {
		Data []invoice `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/%s/search?%s", c.baseURL, moduleInvoices, params.Encode())
	if err := c.call(ctx, "invoice_status", http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, nil
	}

	inv := result.Data[0]
	return &models.InvoiceStatus{
		InvoiceNumber: inv.InvoiceNumber,
		Status:        inv.Status,
		Total:         inv.GrandTotal,
		BalanceDue:    inv.Balance,
		DueDate:       inv.DueDate,
	}, nil
}

func (c *CRMClient) create(ctx context.Context, op, module string, record interface{}) (string, error) {
	var resp writeResponse
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, module)
	if err := c.call(ctx, op, http.MethodPost, endpoint, envelope(record), &resp); err != nil {
		return "", err
	}
	return firstID(op, resp)
}

// call maps transport and status failures onto the error taxonomy so the
// gateway can decide what to retry.
func (c *CRMClient) call(ctx context.Context, op, method, endpoint string, in, out interface{}) error {
	status, err := c.http.DoJSON(ctx, method, endpoint, in, out)
	if err == nil {
		return nil
	}

	var se *httpclient.StatusError
	if stderrors.As(err, &se) {
		return apperrors.NewERPAPIError(op, se.StatusCode, se.Body)
	}
	if ctx.Err() != nil || isTimeout(err) {
		return apperrors.NewTimeoutError("zoho_crm", err)
	}
	if status != 0 {
		// decoded a 2xx body we could not parse
		return apperrors.NewERPAPIError(op, status, err.Error())
	}
	return apperrors.NewExternalServiceError("zoho_crm", err)
}

func envelope(record interface{}) map[string]interface{} {
	return map[string]interface{}{"data": []interface{}{record}}
}

func firstID(op string, resp writeResponse) (string, error) {
	if len(resp.Data) == 0 {
		return "", apperrors.NewERPAPIError(op, http.StatusOK, "no data in response")
	}
	if !strings.EqualFold(resp.Data[0].Status, "success") {
		return "", apperrors.NewERPAPIError(op, http.StatusOK, resp.Data[0].Message)
	}
	return resp.Data[0].Details.ID, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return stderrors.As(err, &te) && te.Timeout()
}

// Zoho criteria syntax reserves parentheses and commas.
func escapeCriteria(v string) string {
	r := strings.NewReplacer(`(`, `\(`, `)`, `\)`, `,`, `\,`)
	return r.Replace(v)
}

func splitName(name string) (first, last string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", "Unknown"
	case 1:
		return "", fields[0]
	}
	return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
}

func serviceSubject(rec models.ServiceRecord) string {
	switch {
	case rec.Emergency:
		return fmt.Sprintf("%s EMERGENCY %s", rec.Priority, rec.ServiceCode)
	case rec.ServiceCode != "":
		return fmt.Sprintf("%s %s", rec.Priority, rec.ServiceCode)
	}
	return fmt.Sprintf("Appointment %s: %s", rec.ID, rec.Status)
}
