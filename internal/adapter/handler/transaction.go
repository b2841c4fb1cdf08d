package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/wattlebank/wattle/internal/core/domain"
	"github.com/wattlebank/wattle/internal/core/engine"
)

type TransactionHandler struct {
	Engine *engine.Engine
	Store  engine.Store
}

type CreateTransactionRequest struct {
	Type            string `json:"type" validate:"required,oneof=transfer bill_pay payid"`
	FromAccountID   string `json:"from_account_id" validate:"required,uuid"`
	ToAccountNumber string `json:"to_account_number,omitempty"`
	PayID           string `json:"pay_id,omitempty"`
	BillerCode      string `json:"biller_code,omitempty"`
	Amount          string `json:"amount" validate:"required"`
	Description     string `json:"description,omitempty"`
}

// Create inserts a pending transaction awaiting admin approval. Destinations
// resolve per type: transfer by account number, payid via the alias registry,
// bill_pay by biller code (external, so no destination account).
func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	var req CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("invalid transaction body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return fail(c, err)
	}

	fromID, _ := uuid.Parse(req.FromAccountID)
	params := engine.CreateParams{
		Type:          domain.TxType(req.Type),
		FromAccountID: &fromID,
		Amount:        amount,
		Description:   req.Description,
	}

	switch params.Type {
	case domain.TxTransfer:
		if req.ToAccountNumber == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "to_account_number is required for transfers"})
		}
		to, err := h.Store.GetAccountByNumber(c.Context(), req.ToAccountNumber)
		if err != nil {
			return fail(c, err)
		}
		params.ToAccountID = &to.ID

	case domain.TxPayID:
		if req.PayID == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "pay_id is required for payid payments"})
		}
		// An unknown alias still produces a valid transaction: the payment
		// leaves the sender with no destination account on record.
		alias, err := h.Store.ResolvePayID(c.Context(), req.PayID)
		if err == nil {
			params.ToAccountID = &alias.AccountID
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fail(c, err)
		}
		params.Reference = req.PayID

	case domain.TxBillPay:
		if req.BillerCode == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "biller_code is required for bill payments"})
		}
		params.Reference = req.BillerCode
	}

	tx, err := h.Engine.Create(c.Context(), params)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction": tx,
		"message":     "Transaction created and awaiting approval",
	})
}

// GetHistory lists the account's most recent transactions.
func (h *TransactionHandler) GetHistory(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}

	history, err := h.Store.AccountTransactions(c.Context(), accountID, 20)
	if err != nil {
		slog.Error("could not fetch history", "error", err, "account", accountID)
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"transactions": history})
}
