// Package gateway is the thin boundary between the transport/auth layer
// and the engine. It assumes requests are already authenticated and only
// translates: JSON payloads into typed operation requests on the way in,
// engine results and error kinds into responses on the way out.
package gateway

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/fincore/ledger-engine/internal/accounts"
	"github.com/fincore/ledger-engine/internal/engine"
	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/ledger"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/money"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	engine   *engine.Engine
	accounts *accounts.Service
	ledger   *ledger.Service
	validate *validator.Validate
	log      *zap.Logger
}

func NewHandler(eng *engine.Engine, accts *accounts.Service, led *ledger.Service, log *zap.Logger) *Handler {
	return &Handler{
		engine:   eng,
		accounts: accts,
		ledger:   led,
		validate: validator.New(),
		log:      log,
	}
}

func (h *Handler) Register(app *fiber.App) {
	v1 := app.Group("/v1")
	v1.Post("/operations", h.ExecuteOperation)
	v1.Post("/accounts", h.CreateAccount)
	v1.Get("/accounts", h.ListAccounts)
	v1.Get("/accounts/:id", h.GetAccount)
	v1.Delete("/accounts/:id", h.DeactivateAccount)
	v1.Get("/accounts/:id/entries", h.ListEntries)
	v1.Get("/entries", h.ListOwnerEntries)
	v1.Post("/entries/:id/reverse", h.ReverseEntry)
}

type feePayload struct {
	Kind string `json:"kind" validate:"required,oneof=none flat percent"`
	Flat string `json:"flat,omitempty"`
	Rate string `json:"rate,omitempty"`
}

type operationPayload struct {
	Operation     string      `json:"operation" validate:"required,oneof=deposit withdraw transfer advanced_transfer"`
	ActorID       string      `json:"actor_id" validate:"required"`
	ActorAdmin    bool        `json:"actor_admin"`
	AccountID     string      `json:"account_id"`
	SourceID      string      `json:"source_id"`
	DestID        string      `json:"dest_id"`
	Amount        string      `json:"amount" validate:"required"`
	FeePolicy     *feePayload `json:"fee_policy,omitempty"`
	ScheduledTime string      `json:"scheduled_time,omitempty"`
	Description   string      `json:"description,omitempty"`
}

func (h *Handler) ExecuteOperation(c *fiber.Ctx) error {
	var payload operationPayload
	if err := c.BodyParser(&payload); err != nil {
		return h.fail(c, errs.Wrap(errs.KindValidation, err, "invalid request body"))
	}
	if err := h.validate.Struct(payload); err != nil {
		return h.fail(c, errs.Wrap(errs.KindValidation, err, "invalid operation payload"))
	}

	req, err := h.toRequest(payload)
	if err != nil {
		return h.fail(c, err)
	}

	result, err := h.engine.Execute(c.Context(), req)
	if err != nil {
		h.log.Warn("operation failed",
			zap.String("operation", payload.Operation),
			zap.String("error_kind", string(errs.KindOf(err))),
			zap.Error(err))
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

func (h *Handler) toRequest(p operationPayload) (models.OperationRequest, error) {
	amount, err := money.FromMajorUnits(p.Amount)
	if err != nil {
		return models.OperationRequest{}, err
	}

	req := models.OperationRequest{
		Operation:   models.Operation(p.Operation),
		ActorID:     p.ActorID,
		ActorAdmin:  p.ActorAdmin,
		AccountID:   p.AccountID,
		SourceID:    p.SourceID,
		DestID:      p.DestID,
		Amount:      amount,
		Description: p.Description,
	}

	if p.FeePolicy != nil {
		fee := &models.FeePolicy{Kind: models.FeeKind(p.FeePolicy.Kind)}
		if p.FeePolicy.Flat != "" {
			if fee.Flat, err = money.FromMajorUnits(p.FeePolicy.Flat); err != nil {
				return models.OperationRequest{}, err
			}
		}
		if p.FeePolicy.Rate != "" {
			rate, err := decimal.NewFromString(p.FeePolicy.Rate)
			if err != nil {
				return models.OperationRequest{}, errs.Wrap(errs.KindValidation, err, "malformed fee rate %q", p.FeePolicy.Rate)
			}
			fee.Rate = rate
		}
		req.Fee = fee
	}

	if p.ScheduledTime != "" {
		at, err := time.Parse(time.RFC3339, p.ScheduledTime)
		if err != nil {
			return models.OperationRequest{}, errs.Wrap(errs.KindValidation, err, "malformed scheduled_time %q", p.ScheduledTime)
		}
		req.ScheduledAt = &at
	}
	return req, nil
}

type createAccountPayload struct {
	ActorID string `json:"actor_id" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=checking savings"`
	Name    string `json:"name,omitempty"`
}

func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	var payload createAccountPayload
	if err := c.BodyParser(&payload); err != nil {
		return h.fail(c, errs.Wrap(errs.KindValidation, err, "invalid request body"))
	}
	if err := h.validate.Struct(payload); err != nil {
		return h.fail(c, errs.Wrap(errs.KindValidation, err, "invalid account payload"))
	}

	account, err := h.accounts.Create(c.Context(), payload.ActorID, models.AccountType(payload.Type), payload.Name)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(account)
}

func (h *Handler) ListAccounts(c *fiber.Ctx) error {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		return h.fail(c, errs.New(errs.KindValidation, "owner_id is required"))
	}
	list, err := h.accounts.ListForOwner(c.Context(), ownerID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"accounts": list})
}

func (h *Handler) GetAccount(c *fiber.Ctx) error {
	account, err := h.accounts.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(account)
}

func (h *Handler) DeactivateAccount(c *fiber.Ctx) error {
	actorID := c.Query("actor_id")
	if actorID == "" {
		return h.fail(c, errs.New(errs.KindValidation, "actor_id is required"))
	}
	err := h.engine.DeactivateAccount(c.Context(), c.Params("id"), actorID, c.QueryBool("actor_admin"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *Handler) ListEntries(c *fiber.Ctx) error {
	filter, err := entryFilterFromQuery(c)
	if err != nil {
		return h.fail(c, err)
	}

	entries, err := h.ledger.ListForAccount(c.Context(), c.Params("id"), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// ListOwnerEntries is the combined history across every account the owner
// holds, merged and ordered by timestamp.
func (h *Handler) ListOwnerEntries(c *fiber.Ctx) error {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		return h.fail(c, errs.New(errs.KindValidation, "owner_id is required"))
	}
	filter, err := entryFilterFromQuery(c)
	if err != nil {
		return h.fail(c, err)
	}

	ownerAccounts, err := h.accounts.ListForOwner(c.Context(), ownerID)
	if err != nil {
		return h.fail(c, err)
	}

	// limit/offset apply to the merged sequence, so the per-account scans
	// run unbounded and the window is cut after the merge
	perAccount := models.EntryFilter{Types: filter.Types, From: filter.From, To: filter.To}
	var entries []models.Entry
	for _, account := range ownerAccounts {
		list, err := h.ledger.ListForAccount(c.Context(), account.ID, perAccount)
		if err != nil {
			return h.fail(c, err)
		}
		entries = append(entries, list...)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(entries) {
			entries = nil
		} else {
			entries = entries[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func entryFilterFromQuery(c *fiber.Ctx) (models.EntryFilter, error) {
	filter := models.EntryFilter{
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
	}
	if t := c.Query("type"); t != "" {
		filter.Types = []models.EntryType{models.EntryType(t)}
	}
	if from := c.Query("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return models.EntryFilter{}, errs.Wrap(errs.KindValidation, err, "malformed from %q", from)
		}
		filter.From = &parsed
	}
	if to := c.Query("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return models.EntryFilter{}, errs.Wrap(errs.KindValidation, err, "malformed to %q", to)
		}
		filter.To = &parsed
	}
	return filter, nil
}

type reversePayload struct {
	ActorID    string `json:"actor_id" validate:"required"`
	ActorAdmin bool   `json:"actor_admin"`
	Reason     string `json:"reason" validate:"required"`
}

func (h *Handler) ReverseEntry(c *fiber.Ctx) error {
	var payload reversePayload
	if err := c.BodyParser(&payload); err != nil {
		return h.fail(c, errs.Wrap(errs.KindValidation, err, "invalid request body"))
	}
	if err := h.validate.Struct(payload); err != nil {
		return h.fail(c, errs.Wrap(errs.KindValidation, err, "invalid reverse payload"))
	}

	entry, err := h.engine.Reverse(c.Context(), c.Params("id"), payload.Reason, payload.ActorID, payload.ActorAdmin)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(entry)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	kind := errs.KindOf(err)
	msg := err.Error()
	var e *errs.Error
	if errors.As(err, &e) {
		msg = e.Msg
	}
	return c.Status(statusFor(kind)).JSON(fiber.Map{
		"status":     "failed",
		"error_kind": kind,
		"message":    msg,
		"retryable":  errs.Retryable(err),
	})
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation, errs.KindOverflow:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindInsufficientFunds, errs.KindNonZeroBalance:
		return http.StatusUnprocessableEntity
	case errs.KindConcurrentModification, errs.KindLockTimeout:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
