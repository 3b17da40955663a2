package vapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateCall_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/call/phone" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", r.Header.Get("Authorization"))
		}

		var req CreateCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.PhoneNumberID != "phone-1" || req.Customer.Number != "+15550100" {
			t.Errorf("unexpected request body %+v", req)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Call{ID: "call-1", Status: StatusQueued})
	}))
	defer server.Close()

	c := NewClient("test-key", server.URL)
	call, err := c.CreateCall(context.Background(), CreateCallRequest{
		PhoneNumberID: "phone-1",
		Customer:      CallCustomer{Number: "+15550100"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.ID != "call-1" || call.Status != StatusQueued {
		t.Errorf("unexpected call %+v", call)
	}
}

func TestCreateCall_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"message": []string{"customer.number must be a valid phone number"},
			"error":   "Bad Request",
		})
	}))
	defer server.Close()

	c := NewClient("test-key", server.URL)
	_, err := c.CreateCall(context.Background(), CreateCallRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "valid phone number") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call/call-9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"call-9","status":"ended","endedReason":"customer-ended-call","transcript":"AI: hi\nUser: bye","analysis":{"summary":"short call"}}`))
	}))
	defer server.Close()

	call, err := NewClient("k", server.URL).GetCall(context.Background(), "call-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !call.Status.Terminal() {
		t.Errorf("expected terminal status, got %q", call.Status)
	}
	if call.CallSummary() != "short call" {
		t.Errorf("expected analysis summary, got %q", call.CallSummary())
	}
}

func TestListCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("expected limit=1, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`[{"id":"latest","status":"in-progress"}]`))
	}))
	defer server.Close()

	calls, err := NewClient("k", server.URL).ListCalls(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 || calls[0].ID != "latest" {
		t.Errorf("unexpected calls %+v", calls)
	}
	if calls[0].Status.Terminal() {
		t.Error("in-progress should not be terminal")
	}
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient("k", "")
	if c.baseURL != DefaultBaseURL {
		t.Errorf("expected default base url, got %q", c.baseURL)
	}
}
