package wallet

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/middleware"
	"github.com/sudo-init-do/mardikor/internal/store"
)

// Service reads balances and the settlement ledger. Balances only change
// through order completion, so there are no write operations here.
type Service struct {
	users  store.UserStore
	ledger store.LedgerStore
}

func NewService(users store.UserStore, ledger store.LedgerStore) *Service {
	return &Service{users: users, ledger: ledger}
}

func (s *Service) Balance(ctx context.Context, userID string) (BalanceResponse, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return BalanceResponse{}, fmt.Errorf("load wallet owner: %w", err)
	}
	return BalanceResponse{UserID: u.ID, Balance: u.Balance}, nil
}

// Transactions returns the ledger of userID, newest first. The platform
// account holds withheld commission.
func (s *Service) Transactions(ctx context.Context, userID string) (LedgerResponse, error) {
	entries, err := s.ledger.ListLedger(ctx, userID)
	if err != nil {
		return LedgerResponse{}, fmt.Errorf("list ledger: %w", err)
	}
	res := LedgerResponse{UserID: userID, Entries: entries}
	for _, e := range entries {
		res.Total += e.Amount
	}
	return res, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Balance returns the authenticated user's wallet balance
func (h *Handler) Balance(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Balance(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Transactions - GET /wallet/transactions?userId=
func (h *Handler) Transactions(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	userID := c.QueryParam("userId")
	if userID == "" {
		userID = actor.ID
	}
	if !actor.CanManage(userID) {
		return fmt.Errorf("cannot read another user's ledger: %w", domain.ErrForbidden)
	}
	res, err := h.svc.Transactions(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
