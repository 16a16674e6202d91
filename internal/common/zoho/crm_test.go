package zoho

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "command-pipeline/internal/common/errors"
	"command-pipeline/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestClient(t *testing.T, handler http.HandlerFunc) *CRMClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCRMClient(srv.URL, "tok-123", time.Second)
}

func writeCreated(w http.ResponseWriter, id string) {
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"data":[{"code":"SUCCESS","details":{"id":"` + id + `"},"message":"record added","status":"success"}]}`))
}

// ==========================
// Contacts
// ==========================

func TestFindIdentities_ByPhone(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Contacts/search", r.URL.Path)
		assert.Equal(t, "+12145550111", r.URL.Query().Get("phone"))
		assert.Equal(t, "Zoho-oauthtoken tok-123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"id":"C-1","Full_Name":"Pat Jones","Last_Name":"Jones","Phone":"+12145550111","Email":"pat@example.com"}]}`))
	})

	got, err := client.FindIdentities(context.Background(), models.IdentityQuery{Phone: "+12145550111"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "C-1", got[0].ID)
	assert.Equal(t, "Pat Jones", got[0].Name)
	assert.Equal(t, "pat@example.com", got[0].Email)
}

func TestFindIdentities_NoContentIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	got, err := client.FindIdentities(context.Background(), models.IdentityQuery{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindIdentities_RequiresKey(t *testing.T) {
	client := NewCRMClient("http://unused", "tok", time.Second)
	_, err := client.FindIdentities(context.Background(), models.IdentityQuery{})
	assert.Error(t, err)
}

func TestCreateIdentity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Contacts", r.URL.Path)

		var body struct {
			Data []contact `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Data, 1)
		assert.Equal(t, "Mary Ann", body.Data[0].FirstName)
		assert.Equal(t, "Smith", body.Data[0].LastName)
		assert.Equal(t, "9 Elm St, Lancaster, TX 75134", body.Data[0].MailingAddress)
		writeCreated(w, "C-77")
	})

	id, err := client.CreateIdentity(context.Background(), models.CustomerIdentity{
		Name:    "Mary Ann Smith",
		Phone:   "+12145550101",
		Address: "9 Elm St, Lancaster, TX 75134",
	})
	require.NoError(t, err)
	assert.Equal(t, "C-77", id)
}

// ==========================
// Records
// ==========================

func TestUpsertServiceRecord_CreateAndUpdate(t *testing.T) {
	var methods []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			_, _ = w.Write([]byte(`{"data":[{"code":"SUCCESS","details":{"id":"APT-1"},"status":"success"}]}`))
			return
		}
		writeCreated(w, "SC-9")
	})

	id, err := client.UpsertServiceRecord(context.Background(), models.ServiceRecord{
		CustomerID: "C-1", Kind: models.RecordKindServiceCall, Status: models.RecordStatusDispatched, Priority: "P1", ServiceCode: "heating-repair", Emergency: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "SC-9", id)

	id, err = client.UpsertServiceRecord(context.Background(), models.ServiceRecord{
		ID: "APT-1", Kind: models.RecordKindAppointment, Status: models.RecordStatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, "APT-1", id)

	assert.Equal(t, []string{"POST /Service_Calls", "PUT /Service_Calls/APT-1"}, methods)
}

func TestCreateLeadAndQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Leads":
			writeCreated(w, "L-5")
		case "/Quotes":
			var body struct {
				Data []quote `json:"data"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "L-5", body.Data[0].Lead.ID)
			assert.Equal(t, 6570, body.Data[0].EstimateLow)
			writeCreated(w, "Q-3")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	leadID, err := client.CreateLead(context.Background(), models.Lead{Kind: models.LeadKindSales, Tier: "hot", Source: "chat"})
	require.NoError(t, err)
	assert.Equal(t, "L-5", leadID)

	quoteID, err := client.CreateQuote(context.Background(), models.Quote{LeadID: leadID, SystemType: "air_conditioner", SquareFeet: 2000, Tonnage: 4, EstimateLowUSD: 6570, EstimateHighUSD: 8395})
	require.NoError(t, err)
	assert.Equal(t, "Q-3", quoteID)
}

func TestInvoiceStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "(Invoice_Number:equals:INV-20455)", r.URL.Query().Get("criteria"))
		_, _ = w.Write([]byte(`{"data":[{"id":"9","Invoice_Number":"INV-20455","Status":"Overdue","Grand_Total":480.5,"Balance":180.5,"Due_Date":"2026-01-15"}]}`))
	})

	inv, err := client.InvoiceStatus(context.Background(), "INV-20455")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, 180.5, inv.BalanceDue)
	assert.Equal(t, "2026-01-15", inv.DueDate)
}

// ==========================
// Error Mapping
// ==========================

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"code":"ERR"}`))
			})

			_, err := client.CreateLead(context.Background(), models.Lead{Kind: models.LeadKindSales})
			require.Error(t, err)
			stdErr, ok := apperrors.AsStandard(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeERPAPIError, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}

func TestErrorMapping_WriteRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"code":"INVALID_DATA","message":"invalid phone","status":"error"}]}`))
	})

	_, err := client.CreateIdentity(context.Background(), models.CustomerIdentity{Name: "A B"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeERPAPIError))
}

func TestErrorMapping_Unreachable(t *testing.T) {
	client := NewCRMClient("http://127.0.0.1:1", "tok", 200*time.Millisecond)

	_, err := client.InvoiceStatus(context.Background(), "INV-1")
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandard(err)
	require.True(t, ok)
	assert.True(t, stdErr.Retryable)
}
