package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/internal/reconcile"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
)

const testSecret = "whsec_test"

type fakeReconcileService struct {
	input  reconcile.Input
	result reconcile.Result
	err    error
	calls  int
}

func (f *fakeReconcileService) Reconcile(ctx context.Context, input reconcile.Input) (reconcile.Result, error) {
	f.calls++
	f.input = input
	return f.result, f.err
}

type fakeGuard struct {
	seen      map[string]bool
	checkErr  error
	deleted   []string
	lastSeen  string
	markCalls int
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{seen: map[string]bool{}}
}

func (f *fakeGuard) CheckAndMark(ctx context.Context, deliveryID string) (bool, error) {
	f.markCalls++
	f.lastSeen = deliveryID
	if f.checkErr != nil {
		return false, f.checkErr
	}
	if f.seen[deliveryID] {
		return true, nil
	}
	f.seen[deliveryID] = true
	return false, nil
}

func (f *fakeGuard) Delete(ctx context.Context, deliveryID string) error {
	f.deleted = append(f.deleted, deliveryID)
	delete(f.seen, deliveryID)
	return nil
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(t *testing.T, body string, signature string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Payment-Signature", signature)
	}
	return req
}

func webhookLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestPaymentWebhookAppliesConfirmation(t *testing.T) {
	orderID := uuid.New()
	svc := &fakeReconcileService{
		result: reconcile.Result{
			Applied:        true,
			OrderID:        orderID,
			PreviousStatus: enums.OrderStatusPending,
			NewStatus:      enums.OrderStatusInQueue,
		},
	}
	guard := newFakeGuard()

	body := `{"delivery_id":"dlv_1","event_type":"payment.succeeded","payment_reference":"pay_abc","order_id":"` + orderID.String() + `"}`
	req := webhookRequest(t, body, sign([]byte(body)))
	resp := httptest.NewRecorder()

	PaymentWebhook(svc, testSecret, guard, webhookLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.input.PaymentReference != "pay_abc" {
		t.Fatalf("unexpected reference %q", svc.input.PaymentReference)
	}
	if svc.input.OrderID == nil || *svc.input.OrderID != orderID {
		t.Fatalf("expected order id %s, got %v", orderID, svc.input.OrderID)
	}
	if guard.lastSeen != "dlv_1" {
		t.Fatalf("expected guard keyed on delivery id, got %q", guard.lastSeen)
	}
	var envelope struct {
		Data reconcile.Result `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Applied {
		t.Fatal("expected applied result")
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeReconcileService{}
	guard := newFakeGuard()

	body := `{"payment_reference":"pay_abc"}`
	req := webhookRequest(t, body, "deadbeef")
	resp := httptest.NewRecorder()

	PaymentWebhook(svc, testSecret, guard, webhookLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("reconcile must not run on a bad signature")
	}
	if guard.markCalls != 0 {
		t.Fatal("guard must not be touched on a bad signature")
	}
}

func TestPaymentWebhookRejectsMissingSignature(t *testing.T) {
	body := `{"payment_reference":"pay_abc"}`
	req := webhookRequest(t, body, "")
	resp := httptest.NewRecorder()

	PaymentWebhook(&fakeReconcileService{}, testSecret, newFakeGuard(), webhookLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestPaymentWebhookSkipsDuplicateDelivery(t *testing.T) {
	svc := &fakeReconcileService{result: reconcile.Result{Applied: true}}
	guard := newFakeGuard()

	body := `{"delivery_id":"dlv_1","payment_reference":"pay_abc"}`
	first := httptest.NewRecorder()
	PaymentWebhook(svc, testSecret, guard, webhookLogger())(first, webhookRequest(t, body, sign([]byte(body))))
	second := httptest.NewRecorder()
	PaymentWebhook(svc, testSecret, guard, webhookLogger())(second, webhookRequest(t, body, sign([]byte(body))))

	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", second.Code)
	}
	if svc.calls != 1 {
		t.Fatalf("expected exactly one reconcile call, got %d", svc.calls)
	}
	var envelope struct {
		Data reconcile.Result `json:"data"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Skipped {
		t.Fatal("replay must be reported as skipped")
	}
}

func TestPaymentWebhookClearsGuardOnFailure(t *testing.T) {
	svc := &fakeReconcileService{err: errors.New("db gone")}
	guard := newFakeGuard()

	body := `{"delivery_id":"dlv_1","payment_reference":"pay_abc"}`
	resp := httptest.NewRecorder()
	PaymentWebhook(svc, testSecret, guard, webhookLogger())(resp, webhookRequest(t, body, sign([]byte(body))))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "dlv_1" {
		t.Fatalf("expected guard marker cleared, got %v", guard.deleted)
	}
}

func TestPaymentWebhookProceedsWhenGuardDown(t *testing.T) {
	svc := &fakeReconcileService{result: reconcile.Result{Applied: true}}
	guard := newFakeGuard()
	guard.checkErr = errors.New("redis down")

	body := `{"delivery_id":"dlv_1","payment_reference":"pay_abc"}`
	resp := httptest.NewRecorder()
	PaymentWebhook(svc, testSecret, guard, webhookLogger())(resp, webhookRequest(t, body, sign([]byte(body))))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("reconcile must still run when the guard is down, got %d calls", svc.calls)
	}
}

func TestPaymentWebhookRequiresReference(t *testing.T) {
	body := `{"delivery_id":"dlv_1"}`
	resp := httptest.NewRecorder()
	PaymentWebhook(&fakeReconcileService{}, testSecret, newFakeGuard(), webhookLogger())(resp, webhookRequest(t, body, sign([]byte(body))))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
