package candidate

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/stancevote/stancevote/internal/ballot"
)

// Handler exposes candidate directory endpoints. Claims and registrations
// prove "same phone as the vote" with a redeemed ballot link token, so the
// phone never crosses the wire a second time.
type Handler struct {
	service *Service
	links   *ballot.Service
}

// NewHandler constructs a candidate handler.
func NewHandler(service *Service, links *ballot.Service) *Handler {
	return &Handler{service: service, links: links}
}

type claimRequest struct {
	BallotToken  string `json:"ballot_token"`
	ContactPhone string `json:"contact_phone"`
}

// Claim binds the claimant's voted identity to an unclaimed directory entry.
func (h *Handler) Claim(c *fiber.Ctx) error {
	var req claimRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	fp, err := h.links.FingerprintForRedeemedLink(c.UserContext(), req.BallotToken)
	if err != nil {
		if errors.Is(err, ballot.ErrLinkNotFound) {
			return fiber.NewError(http.StatusForbidden, "a redeemed ballot link is required")
		}
		return fiber.NewError(http.StatusInternalServerError, "could not verify ballot link")
	}

	claimed, err := h.service.Claim(c.UserContext(), c.Params("id"), fp, req.ContactPhone)
	if err != nil {
		return translateError(err)
	}

	return c.Status(http.StatusOK).JSON(publicView(claimed))
}

type registerRequest struct {
	BallotToken  string `json:"ballot_token"`
	Name         string `json:"name"`
	Area         string `json:"area"`
	Stance       *bool  `json:"stance"`
	ContactPhone string `json:"contact_phone"`
}

// Register creates a self-declared candidate entry.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Stance == nil {
		return fiber.NewError(http.StatusBadRequest, "stance is required")
	}

	fp, err := h.links.FingerprintForRedeemedLink(c.UserContext(), req.BallotToken)
	if err != nil {
		if errors.Is(err, ballot.ErrLinkNotFound) {
			return fiber.NewError(http.StatusForbidden, "a redeemed ballot link is required")
		}
		return fiber.NewError(http.StatusInternalServerError, "could not verify ballot link")
	}

	created, err := h.service.Register(c.UserContext(), RegisterInput{
		Name:         req.Name,
		Area:         req.Area,
		Stance:       *req.Stance,
		ContactPhone: req.ContactPhone,
	}, fp)
	if err != nil {
		return translateError(err)
	}

	return c.Status(http.StatusCreated).JSON(publicView(created))
}

// List returns the public directory.
func (h *Handler) List(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not load candidates")
	}

	out := make([]fiber.Map, 0, len(list))
	for _, cand := range list {
		out = append(out, publicView(cand))
	}
	return c.JSON(fiber.Map{"candidates": out})
}

func translateError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return fiber.NewError(http.StatusBadRequest, "name is required")
	case errors.Is(err, ErrNotYetVoted):
		return fiber.NewError(http.StatusForbidden, "cast a vote before claiming a candidacy")
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "candidate not found")
	case errors.Is(err, ErrAlreadyClaimed):
		return fiber.NewError(http.StatusConflict, "candidate already claimed")
	case errors.Is(err, ErrAlreadyRegistered):
		return fiber.NewError(http.StatusConflict, "already registered as a candidate")
	case errors.Is(err, ErrSuppressed):
		return fiber.NewError(http.StatusForbidden, "this number has opted out")
	default:
		return fiber.NewError(http.StatusInternalServerError, "could not update candidate")
	}
}

// publicView strips the fingerprint and contact phone from responses.
func publicView(c Candidate) fiber.Map {
	return fiber.Map{
		"id":     c.ID,
		"name":   c.Name,
		"area":   c.Area,
		"stance": c.Stance,
		"status": c.Status,
	}
}
