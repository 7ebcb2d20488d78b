package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/pkg/config"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
)

func TestSendPostsMessage(t *testing.T) {
	var gotAuth string
	var gotMsg Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotMsg); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(config.PushConfig{
		Endpoint:  server.URL,
		ServerKey: "secret-key",
		Timeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	msg := Message{
		UserID: uuid.New(),
		Title:  "Order update",
		Body:   "Your order is on the way.",
		Link:   "/orders/abc",
	}
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAuth != "key=secret-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotMsg.UserID != msg.UserID || gotMsg.Title != msg.Title {
		t.Fatalf("unexpected payload %+v", gotMsg)
	}
}

func TestSendRejectsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(config.PushConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = client.Send(context.Background(), Message{UserID: uuid.New(), Title: "t"})
	if err == nil {
		t.Fatal("expected error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestSendValidation(t *testing.T) {
	client, err := NewClient(config.PushConfig{Endpoint: "http://localhost:9"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Send(context.Background(), Message{Title: "t"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
	if err := client.Send(context.Background(), Message{UserID: uuid.New()}); err == nil {
		t.Fatal("expected error for missing title")
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(config.PushConfig{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
