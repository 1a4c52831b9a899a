package verify

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stancevote/stancevote/internal/phone"
	"github.com/stancevote/stancevote/internal/ratelimit"
	"github.com/stancevote/stancevote/internal/screening"
)

// Handler exposes the code request/confirm endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a verification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type requestCodeRequest struct {
	Phone        string `json:"phone"`
	DialCode     string `json:"dial_code"`
	CaptchaToken string `json:"captcha_token"`
}

// RequestCode issues a one-time SMS code.
func (h *Handler) RequestCode(c *fiber.Ctx) error {
	var req requestCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	err := h.service.RequestCode(c.UserContext(), RequestInput{
		Phone:        req.Phone,
		DialCode:     req.DialCode,
		CaptchaToken: req.CaptchaToken,
		RemoteIP:     c.IP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, phone.ErrInvalidNumber):
			return fiber.NewError(http.StatusBadRequest, "invalid phone number")
		case errors.Is(err, screening.ErrCaptchaFailed):
			return fiber.NewError(http.StatusForbidden, "captcha verification failed")
		case errors.Is(err, ratelimit.ErrRateLimited):
			return fiber.NewError(http.StatusTooManyRequests, "too many code requests, try again later")
		case errors.Is(err, ErrSuppressed):
			// Indistinguishable from success on purpose: a suppressed
			// number is simply never texted.
			return c.SendStatus(http.StatusAccepted)
		default:
			return fiber.NewError(http.StatusInternalServerError, "could not send code")
		}
	}

	return c.SendStatus(http.StatusAccepted)
}

type confirmCodeRequest struct {
	Phone    string `json:"phone"`
	DialCode string `json:"dial_code"`
	Code     string `json:"code"`
}

// ConfirmCode checks a code and returns an anonymous voting credential.
func (h *Handler) ConfirmCode(c *fiber.Ctx) error {
	var req confirmCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	cred, err := h.service.ConfirmCode(c.UserContext(), req.Phone, req.DialCode, req.Code)
	if err != nil {
		var mismatch *CodeMismatchError
		switch {
		case errors.Is(err, phone.ErrInvalidNumber):
			return fiber.NewError(http.StatusBadRequest, "invalid phone number")
		case errors.Is(err, ratelimit.ErrRateLimited):
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
		case errors.Is(err, ErrNoActiveChallenge):
			return fiber.NewError(http.StatusNotFound, "no active code, request a new one")
		case errors.Is(err, ErrTooManyAttempts):
			return fiber.NewError(http.StatusGone, "code locked, request a new one")
		case errors.As(err, &mismatch):
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"error":              "wrong code",
				"attempts_remaining": mismatch.Remaining,
			})
		default:
			return fiber.NewError(http.StatusInternalServerError, "could not confirm code")
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"credential": cred.Token,
		"expires_at": cred.ExpiresAt.Format(time.RFC3339),
	})
}
