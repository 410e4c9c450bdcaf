package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OFFIS-RIT/outreach/pkg/dispatch"
)

func TestClientSendItem(t *testing.T) {
	var got sendRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	}))
	defer srv.Close()

	c, err := NewClient(NewClientParams{APIKey: "re_test", BaseURL: srv.URL, From: "outreach@example.com"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	id, err := c.SendItem(context.Background(), dispatch.Item{
		Recipient: "lead@example.com",
		Subject:   "Hello",
		Payload:   "Book a demo",
	})
	if err != nil {
		t.Fatalf("SendItem: %v", err)
	}

	if id != "49a3999c-0ce1-4ea6-ab68-afcd6dc2e794" {
		t.Fatalf("unexpected id %q", id)
	}
	if auth != "Bearer re_test" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if path != "/emails" {
		t.Fatalf("unexpected path %q", path)
	}
	if got.From != "outreach@example.com" || len(got.To) != 1 || got.To[0] != "lead@example.com" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Subject != "Hello" || got.Text != "Book a demo" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestClientSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid to field"}`))
	}))
	defer srv.Close()

	c, err := NewClient(NewClientParams{APIKey: "re_test", BaseURL: srv.URL, From: "a@example.com"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.Send(context.Background(), Message{To: "broken", Subject: "s", Text: "t"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Name != "validation_error" || apiErr.Message != "Invalid to field" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientSendPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(NewClientParams{APIKey: "k", BaseURL: srv.URL, From: "a@example.com"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.Send(context.Background(), Message{To: "b@example.com"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "upstream unavailable" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name   string
		params NewClientParams
	}{
		{"MissingKey", NewClientParams{From: "a@example.com"}},
		{"MissingFrom", NewClientParams{APIKey: "k"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewClient(tc.params); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestClientSendEmptyRecipient(t *testing.T) {
	c, err := NewClient(NewClientParams{APIKey: "k", From: "a@example.com", RatePerSecond: 2})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Send(context.Background(), Message{}); err == nil {
		t.Fatalf("expected error for empty recipient")
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{StatusCode: 401, Message: "missing key"}
	if err.Error() != "resend: status 401: missing key" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
