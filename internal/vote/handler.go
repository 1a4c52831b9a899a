package vote

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/stancevote/stancevote/internal/token"
)

// Handler exposes the credential-path vote endpoints.
type Handler struct {
	ledger *Ledger
}

// NewHandler constructs a vote handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

type castRequest struct {
	Credential string `json:"credential"`
	Value      *bool  `json:"value"`
}

// Cast consumes a credential and records the stance.
func (h *Handler) Cast(c *fiber.Ctx) error {
	var req castRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Value == nil {
		return fiber.NewError(http.StatusBadRequest, "value is required")
	}

	err := h.ledger.Cast(c.UserContext(), req.Credential, *req.Value)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrExpiredToken):
			return fiber.NewError(http.StatusUnauthorized, "invalid or expired credential")
		case errors.Is(err, ErrAlreadyVoted):
			return fiber.NewError(http.StatusConflict, "already voted")
		default:
			return fiber.NewError(http.StatusInternalServerError, "could not record vote")
		}
	}

	return c.SendStatus(http.StatusOK)
}

// Tally returns the public yes/no counts.
func (h *Handler) Tally(c *fiber.Ctx) error {
	tally, err := h.ledger.Tally(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not load tally")
	}
	return c.JSON(fiber.Map{"yes": tally.Yes, "no": tally.No})
}
