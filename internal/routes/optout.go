package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/stancevote/stancevote/internal/phone"
	"github.com/stancevote/stancevote/internal/suppress"
)

// RegisterOptOutRoute wires the permanent opt-out endpoint. The phone is
// fingerprinted in-process and only the fingerprint is stored; repeat calls
// are a no-op.
func RegisterOptOutRoute(r fiber.Router, registry *suppress.Registry, hasher *phone.Hasher) {
	r.Post("/optout", func(c *fiber.Ctx) error {
		var req struct {
			Phone    string `json:"phone"`
			DialCode string `json:"dial_code"`
			Scope    string `json:"scope"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		e164, err := phone.Normalize(req.Phone, req.DialCode)
		if err != nil {
			if errors.Is(err, phone.ErrInvalidNumber) {
				return fiber.NewError(http.StatusBadRequest, "invalid phone number")
			}
			return fiber.NewError(http.StatusInternalServerError, "could not process opt-out")
		}

		if err := registry.Suppress(c.UserContext(), hasher.Fingerprint(e164), req.Scope, "user opt-out"); err != nil {
			return fiber.NewError(http.StatusInternalServerError, "could not process opt-out")
		}

		return c.SendStatus(http.StatusOK)
	})
}
