package ballot

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/stancevote/stancevote/internal/deviceslot"
	"github.com/stancevote/stancevote/internal/phone"
	"github.com/stancevote/stancevote/internal/ratelimit"
	"github.com/stancevote/stancevote/internal/vote"
)

// Handler exposes the ballot link endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a ballot handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sendRequest struct {
	Phone    string `json:"phone"`
	DialCode string `json:"dial_code"`
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
}

// Send creates and texts a ballot link.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	err := h.service.Send(c.UserContext(), SendInput{
		Phone:    req.Phone,
		DialCode: req.DialCode,
		DeviceID: req.DeviceID,
		Role:     req.Role,
		RemoteIP: c.IP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, phone.ErrInvalidNumber):
			return fiber.NewError(http.StatusBadRequest, "invalid phone number")
		case errors.Is(err, vote.ErrAlreadyVoted):
			return fiber.NewError(http.StatusConflict, "already voted")
		case errors.Is(err, ratelimit.ErrRateLimited):
			return fiber.NewError(http.StatusTooManyRequests, "too many link requests, try again later")
		case errors.Is(err, ErrNonMobileNumber):
			return fiber.NewError(http.StatusUnprocessableEntity, "only mobile numbers can receive ballot links")
		case errors.Is(err, deviceslot.ErrTooManyPending):
			return fiber.NewError(http.StatusTooManyRequests, "too many pending links for this device")
		case errors.Is(err, ErrSuppressed):
			return c.SendStatus(http.StatusAccepted)
		default:
			return fiber.NewError(http.StatusInternalServerError, "could not send ballot link")
		}
	}

	return c.SendStatus(http.StatusAccepted)
}

// Check reports the link status to the landing page.
func (h *Handler) Check(c *fiber.Ctx) error {
	status, err := h.service.Check(c.UserContext(), c.Params("token"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not check ballot link")
	}
	return c.JSON(fiber.Map{"status": status})
}

type redeemRequest struct {
	Value *bool `json:"value"`
}

// Redeem consumes the link and casts the vote. Terminal statuses map to
// distinct HTTP codes so the landing page never tells the user to retry
// something unretryable.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Value == nil {
		return fiber.NewError(http.StatusBadRequest, "value is required")
	}

	status, err := h.service.Redeem(c.UserContext(), c.Params("token"), *req.Value)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not redeem ballot link")
	}

	switch status {
	case StatusRedeemed:
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": status})
	case StatusNotFound:
		return fiber.NewError(http.StatusNotFound, "ballot link not found")
	case StatusUsed:
		return fiber.NewError(http.StatusConflict, "ballot link already used")
	case StatusExpired:
		return fiber.NewError(http.StatusGone, "ballot link expired")
	case StatusAlreadyVoted:
		return fiber.NewError(http.StatusConflict, "already voted")
	default:
		return fiber.NewError(http.StatusInternalServerError, "unexpected link state")
	}
}
