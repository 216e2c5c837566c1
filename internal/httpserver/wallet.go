package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/Skotchmaster/fulfillment/internal/service"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
	"github.com/labstack/echo/v4"
)

type WalletHTTP struct {
	Ledger *service.Ledger
}

func (h *WalletHTTP) GetWallet(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wallet.get_wallet")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "get_wallet", err)
	}
	page, size, err := paging(c)
	if err != nil {
		return fail(l, "get_wallet", err)
	}

	resp, err := h.Ledger.Statement(ctx, actor.UserID, page, size)
	if err != nil {
		return fail(l, "get_wallet", err)
	}

	l.Info("get_wallet_success", "balance", resp.Balance)
	return c.JSON(http.StatusOK, resp)
}

// Adjust is the admin credit/debit endpoint.
func (h *WalletHTTP) Adjust(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wallet.adjust")

	userID, err := pathID(c, "userId")
	if err != nil {
		return fail(l, "adjust_wallet", err)
	}
	var req transport.WalletAdjustRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "adjust_wallet", err)
	}

	entry := service.Entry{UserID: userID, Amount: req.Amount, Reason: req.Reason}
	var tx *models.WalletTransaction
	if models.WalletEntryType(req.Type) == models.WalletDebit {
		tx, err = h.Ledger.Debit(ctx, entry)
	} else {
		tx, err = h.Ledger.Credit(ctx, entry)
	}
	if err != nil {
		return fail(l, "adjust_wallet", err)
	}

	l.Info("adjust_wallet_success", "user_id", userID, "type", tx.Type, "amount", tx.Amount)
	return c.JSON(http.StatusCreated, tx)
}
