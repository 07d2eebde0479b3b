package wallet

import "github.com/sudo-init-do/mardikor/internal/domain"

// BalanceResponse is the body of GET /wallet/balance.
type BalanceResponse struct {
	UserID  string `json:"userId"`
	Balance int64  `json:"balance"`
}

// LedgerResponse lists entries with their net sum.
type LedgerResponse struct {
	UserID  string               `json:"userId"`
	Total   int64                `json:"total"`
	Entries []domain.LedgerEntry `json:"entries"`
}
