package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-enrichment/internal/api/dto"
	"github.com/spec-kit/ticket-enrichment/internal/auth"
	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/i18n"
	"github.com/spec-kit/ticket-enrichment/internal/service"
	apperrors "github.com/spec-kit/ticket-enrichment/pkg/util/errorutil"
)

// TicketsHandler manages end-user ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	history *service.HistoryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, historyService *service.HistoryService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, history: historyService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required").WithKey("auth.unauthenticated")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), principal.User.ID, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.TicketCreatedResponse{
		Message: i18n.Message(c, "tickets.created"),
		Ticket:  dto.NewTicketSummary(ticket),
	})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required").WithKey("auth.unauthenticated")
	}
	page := parseInt(c.Query("page"), 1)
	perPage := parseInt(c.Query("per_page"), service.DefaultPerPage)

	result, err := h.service.ListUserTickets(c.UserContext(), principal.User.ID, page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketListResponse(result))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required").WithKey("auth.unauthenticated")
	}
	ticket, err := h.service.GetTicketForUser(c.UserContext(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketDetail(ticket))
}

// UpdateTicket PUT /tickets/:id. Only the lifecycle status is writable.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required").WithKey("auth.unauthenticated")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	var (
		ticket *domain.Ticket
		err    error
	)
	if req.Status == nil {
		ticket, err = h.service.GetTicketForUser(c.UserContext(), principal.User.ID, c.Params("id"))
	} else {
		ticket, err = h.service.UpdateStatus(c.UserContext(), principal.User.ID, c.Params("id"), domain.TicketStatus(*req.Status))
	}
	if err != nil {
		return err
	}
	return c.JSON(dto.TicketUpdatedResponse{
		Message: i18n.Message(c, "tickets.updated"),
		Ticket:  dto.NewTicketDetail(ticket),
	})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required").WithKey("auth.unauthenticated")
	}
	entries, err := h.history.ListForUser(c.UserContext(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
