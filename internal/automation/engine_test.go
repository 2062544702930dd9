package automation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/businessgohq/bridge/internal/config"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordedHook struct {
	path  string
	token string
	req   Request
}

func newHookServer(t *testing.T, status int, respond Result) (*httptest.Server, *recordedHook) {
	t.Helper()
	rec := &recordedHook{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.token = r.Header.Get("x-business-token")
		if err := json.NewDecoder(r.Body).Decode(&rec.req); err != nil {
			t.Errorf("decode hook request: %v", err)
		}
		w.WriteHeader(status)
		if status >= 200 && status < 300 {
			_ = json.NewEncoder(w).Encode(respond)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestNewEngineDisabledIsNop(t *testing.T) {
	t.Parallel()

	engine := NewEngine(testLogger(t), config.AutomationConfig{Enabled: false, BaseURL: "http://wf:8080"})
	if _, ok := engine.(NopEngine); !ok {
		t.Fatalf("expected nop engine, got %T", engine)
	}

	engine = NewEngine(testLogger(t), config.AutomationConfig{Enabled: true})
	if _, ok := engine.(NopEngine); !ok {
		t.Fatalf("expected nop engine without base url, got %T", engine)
	}
}

func TestHTTPEngineRoutesCustomerHook(t *testing.T) {
	t.Parallel()

	srv, rec := newHookServer(t, http.StatusOK, Result{Reply: "gracias, en seguida le atendemos"})
	engine := NewHTTPEngine(testLogger(t), config.AutomationConfig{Enabled: true, BaseURL: srv.URL})

	res, err := engine.HandleCustomer(context.Background(), Request{
		TenantID: 10,
		Phone:    "51987654321",
		Text:     "hola",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.path != "/hooks/customer" {
		t.Fatalf("unexpected path: %s", rec.path)
	}
	if rec.token != "" {
		t.Fatalf("customer traffic must not carry a token, got %q", rec.token)
	}
	if rec.req.TenantID != 10 || rec.req.Text != "hola" {
		t.Fatalf("unexpected forwarded request: %+v", rec.req)
	}
	if res.Reply != "gracias, en seguida le atendemos" {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
}

func TestHTTPEngineOperatorCarriesToken(t *testing.T) {
	t.Parallel()

	srv, rec := newHookServer(t, http.StatusOK, Result{WorkflowID: "wf-42"})
	engine := NewHTTPEngine(testLogger(t), config.AutomationConfig{Enabled: true, BaseURL: srv.URL})

	res, err := engine.HandleOperator(context.Background(), Request{
		TenantID:      20,
		Phone:         "51911222333",
		Text:          "ventas de hoy",
		BusinessToken: "tok-opaque",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.path != "/hooks/operator" {
		t.Fatalf("unexpected path: %s", rec.path)
	}
	if rec.token != "tok-opaque" {
		t.Fatalf("expected token header, got %q", rec.token)
	}
	if res.WorkflowID != "wf-42" {
		t.Fatalf("unexpected workflow id: %q", res.WorkflowID)
	}
}

func TestHTTPEngineRejectedStatusIsError(t *testing.T) {
	t.Parallel()

	srv, _ := newHookServer(t, http.StatusBadGateway, Result{})
	engine := NewHTTPEngine(testLogger(t), config.AutomationConfig{Enabled: true, BaseURL: srv.URL})

	if _, err := engine.HandleCustomer(context.Background(), Request{TenantID: 1, Text: "hola"}); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}
