package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
)

// AdminUserTransactions returns the ledger of any account, including the
// platform's commission account.
// GET /admin/ledger/:id
func (h *Handler) AdminUserTransactions(c echo.Context) error {
	res, err := h.svc.Transactions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// AdminCommission is a shortcut for the platform account.
// GET /admin/ledger
func (h *Handler) AdminCommission(c echo.Context) error {
	res, err := h.svc.Transactions(c.Request().Context(), domain.PlatformAccount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
