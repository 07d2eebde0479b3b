package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/store/memory"
)

func seedSettled(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	for _, u := range []domain.User{
		{ID: "c1", Name: "c", Email: "c@example.com", Role: domain.RoleCustomer},
		{ID: "w1", Name: "w", Email: "w@example.com", Role: domain.RoleWorker},
		{ID: "a1", Name: "a", Email: "a@example.com", Role: domain.RoleAdmin},
	} {
		if err := st.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	o := domain.Order{ID: "o1", CustomerID: "c1", Title: "paint", Price: 20000, Status: domain.OrderPending, CreatedAt: now}
	if err := st.CreateOrder(ctx, o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	steps := []domain.Transition{
		{OrderID: "o1", From: domain.OrderPending, To: domain.OrderAccepted, WorkerID: "w1", At: now},
		{OrderID: "o1", From: domain.OrderAccepted, To: domain.OrderInProgress, At: now},
		{OrderID: "o1", From: domain.OrderInProgress, To: domain.OrderCompleted, At: now,
			Settlement: &domain.Settlement{WorkerID: "w1", Payout: 18000, Commission: 2000}},
	}
	for _, tr := range steps {
		if _, err := st.TransitionOrder(ctx, tr); err != nil {
			t.Fatalf("transition to %s: %v", tr.To, err)
		}
	}
}

func TestBalanceAndTransactions(t *testing.T) {
	st := memory.New()
	seedSettled(t, st)
	svc := NewService(st, st)
	ctx := context.Background()

	bal, err := svc.Balance(ctx, "w1")
	if err != nil || bal.Balance != 18000 {
		t.Fatalf("expected balance 18000, got %+v (%v)", bal, err)
	}

	worker, err := svc.Transactions(ctx, "w1")
	if err != nil || len(worker.Entries) != 1 || worker.Entries[0].Kind != domain.LedgerSettlementCredit {
		t.Fatalf("unexpected worker ledger %+v (%v)", worker, err)
	}
	platform, err := svc.Transactions(ctx, domain.PlatformAccount)
	if err != nil || platform.Total != 2000 {
		t.Fatalf("expected 2000 commission, got %+v (%v)", platform, err)
	}
	if worker.Total+platform.Total != 20000 {
		t.Fatalf("settlement must add up to the price")
	}
}

func TestTransactionsHandlerGuardsOtherUsers(t *testing.T) {
	st := memory.New()
	seedSettled(t, st)
	h := NewHandler(NewService(st, st))

	e := echo.New()
	e.HTTPErrorHandler = httpx.HTTPErrorHandler

	call := func(actorID, query string) *httptest.ResponseRecorder {
		actor, err := st.GetUser(context.Background(), actorID)
		if err != nil {
			t.Fatalf("get actor: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/wallet/transactions"+query, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set("user", actor)
		if err := h.Transactions(c); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec
	}

	if rec := call("c1", "?userId=w1"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec := call("a1", "?userId=w1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
	var res LedgerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil || res.Total != 18000 {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}
}
