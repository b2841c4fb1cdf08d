package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/wattlebank/wattle/internal/core/domain"
	"github.com/wattlebank/wattle/internal/core/engine"
	"github.com/wattlebank/wattle/internal/core/notifications"
	"github.com/wattlebank/wattle/internal/core/security"
)

type AdminHandler struct {
	Engine    *engine.Engine
	Store     engine.Store
	JWTSecret []byte
	Notifier  *notifications.Notifier
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges admin credentials for a bearer token.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	admin, err := h.Store.GetAdminByEmail(c.Context(), req.Email)
	if err != nil || !security.CheckPassword(admin.PasswordHash, req.Password) {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	token, err := security.GenerateJWT(h.JWTSecret, admin.ID.String())
	if err != nil {
		slog.Error("token generation failed", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not issue token"})
	}

	slog.Info("admin logged in", "admin", admin.ID)
	return c.JSON(fiber.Map{"token": token})
}

// adminID pulls the authenticated admin out of the request context.
func adminID(c *fiber.Ctx) (uuid.UUID, error) {
	id, _ := c.Locals("admin_id").(string)
	return uuid.Parse(id)
}

// Approve mints the four verification codes and returns them — the single
// plaintext exposure.
func (h *AdminHandler) Approve(c *fiber.Ctx) error {
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction ID"})
	}
	admin, err := adminID(c)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	tx, codes, err := h.Engine.Approve(c.Context(), txID, admin)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"transaction": tx,
		"codes":       codes,
		"warning":     "These verification codes are shown once only.",
	})
}

// Decline terminates a pending transaction.
func (h *AdminHandler) Decline(c *fiber.Ctx) error {
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction ID"})
	}

	tx, err := h.Engine.Decline(c.Context(), txID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"transaction": tx, "message": "Transaction declined"})
}

type VerifyCodeRequest struct {
	CodeNumber int    `json:"code_number" validate:"required,min=1,max=4"`
	Code       string `json:"code" validate:"required"`
}

// VerifyCode submits one verification code. Slot 2 debits the sender, slot 4
// credits the recipient and completes the transaction.
func (h *AdminHandler) VerifyCode(c *fiber.Ctx) error {
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction ID"})
	}

	var req VerifyCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := h.Engine.VerifyCode(c.Context(), txID, req.CodeNumber, req.Code)
	if err != nil {
		return fail(c, err)
	}

	if result.Transaction.Status == domain.StatusCompleted && !result.NoOp && h.Notifier != nil {
		h.Notifier.TransactionCompleted(result.Transaction)
	}

	return c.JSON(fiber.Map{
		"transaction": result.Transaction,
		"message":     result.Message,
	})
}

// ListTransactions shows recent transactions, optionally filtered by status.
func (h *AdminHandler) ListTransactions(c *fiber.Ctx) error {
	status := domain.TxStatus(c.Query("status"))
	txs, err := h.Store.ListTransactions(c.Context(), status, 50)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

type AdjustmentRequest struct {
	Amount          string `json:"amount" validate:"required"`
	AvailableInDays int    `json:"available_in_days,omitempty" validate:"omitempty,min=1,max=365"`
}

// Fund credits an account directly, bypassing the code workflow. With
// available_in_days set, the credit stays pending until the settlement sweep
// releases it.
func (h *AdminHandler) Fund(c *fiber.Ctx) error {
	accID, admin, req, ok := h.parseAdjustment(c)
	if !ok {
		return nil
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return fail(c, err)
	}

	var tx *domain.Transaction
	if req.AvailableInDays > 0 {
		availableAt := time.Now().AddDate(0, 0, req.AvailableInDays)
		tx, err = h.Engine.AdminCreditScheduled(c.Context(), accID, amount, admin, availableAt)
	} else {
		tx, err = h.Engine.AdminCreditInstant(c.Context(), accID, amount, admin)
	}
	if err != nil {
		return fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"transaction": tx})
}

// Debit withdraws from an account directly.
func (h *AdminHandler) Debit(c *fiber.Ctx) error {
	accID, admin, req, ok := h.parseAdjustment(c)
	if !ok {
		return nil
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return fail(c, err)
	}

	tx, err := h.Engine.AdminDebitInstant(c.Context(), accID, amount, admin)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"transaction": tx})
}

// parseAdjustment writes the error response itself when it returns ok=false.
func (h *AdminHandler) parseAdjustment(c *fiber.Ctx) (uuid.UUID, uuid.UUID, *AdjustmentRequest, bool) {
	accID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		_ = c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
		return uuid.Nil, uuid.Nil, nil, false
	}
	admin, err := adminID(c)
	if err != nil {
		_ = c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		return uuid.Nil, uuid.Nil, nil, false
	}
	var req AdjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		_ = c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		return uuid.Nil, uuid.Nil, nil, false
	}
	if err := validate.Struct(req); err != nil {
		_ = c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		return uuid.Nil, uuid.Nil, nil, false
	}
	return accID, admin, &req, true
}
