package ticketing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestClientCreateTicketRequest(t *testing.T) {
	const expectedURL = "http://tickets.test/crm/v3/objects/tickets"
	respBody := `{"id":"901"}`

	var capturedURL string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload struct {
			Properties map[string]string `json:"properties"`
		}
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload.Properties["subject"] != "RMA escalation" {
			t.Fatalf("unexpected subject %q", payload.Properties["subject"])
		}
		if payload.Properties["rma_case_id"] != "case-1" {
			t.Fatalf("unexpected case id %q", payload.Properties["rma_case_id"])
		}

		return &http.Response{
			StatusCode: http.StatusCreated,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	httpClient := &http.Client{Transport: rt}
	client, err := NewClient("test-key", WithBaseURL("http://tickets.test"), WithHTTPClient(httpClient))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ticket, err := client.CreateTicket(context.Background(), CreateTicketRequest{
		Subject:       "RMA escalation",
		Content:       "unit failed bench test twice",
		CaseID:        "case-1",
		Priority:      "HIGH",
		CustomerEmail: "customer@example.com",
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("Authorization") != "Bearer test-key" {
		t.Fatalf("auth header missing")
	}
	if ticket.ID != "901" {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
}

func TestClientCreateTicketFailureStatus(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(strings.NewReader(`upstream unavailable`)),
			Header:     http.Header{},
		}, nil
	})

	httpClient := &http.Client{Transport: rt}
	client, err := NewClient("test-key", WithBaseURL("http://tickets.test"), WithHTTPClient(httpClient))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateTicket(context.Background(), CreateTicketRequest{Subject: "RMA escalation"})
	if err == nil {
		t.Fatalf("expected error")
	}
	cause := errors.Unwrap(err)
	if cause == nil || !strings.Contains(cause.Error(), "status 502") {
		t.Fatalf("unexpected cause %v", cause)
	}
}

func TestClientCreateTicketRequiresSubject(t *testing.T) {
	client, err := NewClient("test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateTicket(context.Background(), CreateTicketRequest{})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected error for blank api key")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
