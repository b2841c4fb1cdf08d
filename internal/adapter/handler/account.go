package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/wattlebank/wattle/internal/core/domain"
	"github.com/wattlebank/wattle/internal/core/engine"
	"github.com/wattlebank/wattle/internal/core/security"
)

var validate = validator.New()

type AccountHandler struct {
	Store engine.Store
	Rand  security.RandomSource
}

type OpenAccountRequest struct {
	OwnerName string `json:"owner_name" validate:"required"`
	Region    string `json:"region" validate:"required,oneof=AU US NZ"`
}

// OpenAccount creates a pending-activation account and returns its one-time
// access code. The code is shown here and never again.
func (h *AccountHandler) OpenAccount(c *fiber.Ctx) error {
	var req OpenAccountRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("invalid account body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	region := domain.Region(req.Region)
	currency, _ := domain.CurrencyFor(region)

	number, err := h.Rand.Digits(10)
	if err != nil {
		return fail(c, err)
	}
	accessCode, codeHash, err := security.NewAccessCode(h.Rand)
	if err != nil {
		return fail(c, err)
	}

	acc := &domain.Account{
		ID:             uuid.New(),
		OwnerID:        uuid.New(),
		OwnerName:      req.OwnerName,
		Number:         number,
		Region:         region,
		Currency:       currency,
		Status:         domain.AccountPendingActivation,
		AccessCodeHash: codeHash,
		CreatedAt:      time.Now(),
	}
	if err := h.fillRoutingIDs(acc); err != nil {
		return fail(c, err)
	}

	if err := h.Store.CreateAccount(c.Context(), acc); err != nil {
		slog.Error("failed to create account", "error", err, "owner", req.OwnerName)
		return fail(c, err)
	}

	slog.Info("account opened", "id", acc.ID, "region", acc.Region, "number", acc.Number)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"account":     acc,
		"access_code": accessCode,
		"warning":     "Save this access code now. It is required to activate the account and will not be shown again.",
	})
}

// fillRoutingIDs assigns the region's routing identifiers.
func (h *AccountHandler) fillRoutingIDs(acc *domain.Account) error {
	switch acc.Region {
	case domain.RegionAU:
		branch, err := h.Rand.Digits(4)
		if err != nil {
			return err
		}
		acc.BSB = "06" + branch
		acc.SwiftCode = "WTLBAU2S"
	case domain.RegionUS:
		suffix, err := h.Rand.Digits(5)
		if err != nil {
			return err
		}
		acc.RoutingNumber = "0260" + suffix
		acc.SwiftCode = "WTLBUS33"
	case domain.RegionNZ:
		acc.BankPrefix = "02"
		acc.SwiftCode = "WTLBNZ22"
	}
	return nil
}

type ActivateRequest struct {
	AccessCode string `json:"access_code" validate:"required,len=12,numeric"`
}

// Activate checks the one-time access code and flips the account to active.
func (h *AccountHandler) Activate(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}

	var req ActivateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	acc, err := h.Store.GetAccount(c.Context(), accountID)
	if err != nil {
		return fail(c, err)
	}
	if security.HashCode(req.AccessCode) != acc.AccessCodeHash {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Access code does not match"})
	}

	activated, err := h.Store.ActivateAccount(c.Context(), accountID)
	if err != nil {
		return fail(c, err)
	}

	slog.Info("account activated", "id", accountID)
	return c.JSON(activated)
}

// GetAccount returns the account snapshot.
func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}
	acc, err := h.Store.GetAccount(c.Context(), accountID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(acc)
}

// IssueCard mints a Luhn-valid Visa against the account.
func (h *AccountHandler) IssueCard(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}
	if _, err := h.Store.GetAccount(c.Context(), accountID); err != nil {
		return fail(c, err)
	}

	body, err := h.Rand.Digits(14)
	if err != nil {
		return fail(c, err)
	}
	number := domain.CompleteCardNumber("4" + body)

	expiry := time.Now().AddDate(4, 0, 0)
	card := &domain.Card{
		ID:          uuid.New(),
		AccountID:   accountID,
		Number:      number,
		Brand:       domain.Visa,
		ExpiryMonth: int(expiry.Month()),
		ExpiryYear:  expiry.Year(),
		CreatedAt:   time.Now(),
	}
	if err := h.Store.CreateCard(c.Context(), card); err != nil {
		return fail(c, err)
	}

	slog.Info("card issued", "account", accountID, "brand", card.Brand)
	return c.Status(http.StatusCreated).JSON(card)
}

type RegisterPayIDRequest struct {
	Alias     string `json:"alias" validate:"required"`
	Kind      string `json:"kind" validate:"required,oneof=email phone"`
	AccountID string `json:"account_id" validate:"required,uuid"`
}

// RegisterPayID links an email/phone alias to an account.
func (h *AccountHandler) RegisterPayID(c *fiber.Ctx) error {
	var req RegisterPayIDRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	accountID, _ := uuid.Parse(req.AccountID)
	if _, err := h.Store.GetAccount(c.Context(), accountID); err != nil {
		return fail(c, err)
	}

	p := &domain.PayID{
		ID:        uuid.New(),
		Alias:     req.Alias,
		Kind:      req.Kind,
		AccountID: accountID,
		CreatedAt: time.Now(),
	}
	if err := h.Store.CreatePayID(c.Context(), p); err != nil {
		return fail(c, err)
	}

	slog.Info("payid registered", "alias", req.Alias, "account", accountID)
	return c.Status(http.StatusCreated).JSON(p)
}
