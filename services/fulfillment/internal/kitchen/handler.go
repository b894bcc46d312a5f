package kitchen

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/enums/kitchenstatus"
	"github.com/appetiteclub/appetite/pkg/enums/station"
	"github.com/appetiteclub/appetite/pkg/tenant"
	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	repo      TicketRepository
	lifecycle *TicketLifecycle
	board     *TicketStateCache
	logger    apt.Logger
	tlm       *telemetry.HTTP
}

func NewHandler(repo TicketRepository, lifecycle *TicketLifecycle, board *TicketStateCache, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		repo:      repo,
		lifecycle: lifecycle,
		board:     board,
		logger:    logger,
		tlm:       telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", h.ListTickets)
		r.Get("/{id}", h.GetTicket)
		r.Patch("/{id}/status", h.UpdateTicketStatus)
		r.Patch("/{id}/priority", h.UpdateTicketPriority)
	})

	r.Get("/stations/{station}/tickets", h.StationBoard)
}

type TicketStatusRequest struct {
	Status string `json:"status"`
}

type TicketPriorityRequest struct {
	Priority *bool `json:"priority"`
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListTickets")
	defer finish()
	log := h.log(r)

	tenantID, ok := h.requireTenant(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := TicketFilter{TenantID: tenantID}

	if s := q.Get("station"); s != "" {
		if station.ByName(s) == nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid station")
			return
		}
		filter.Station = s
	}

	if s := q.Get("status"); s != "" {
		if kitchenstatus.ByName(s) == nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = s
	}

	if s := q.Get("order_id"); s != "" {
		orderID, err := uuid.Parse(s)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
			return
		}
		filter.OrderID = &orderID
	}

	if filter.Limit, ok = queryInt(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, q.Get("offset"), "offset"); !ok {
		return
	}

	tickets, err := h.repo.List(r.Context(), filter)
	if err != nil {
		log.Error("cannot list tickets", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list tickets")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
	}, nil)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetTicket")
	defer finish()
	log := h.log(r)

	tenantID, ok := h.requireTenant(w, r)
	if !ok {
		return
	}

	id, ok := parseTicketID(w, r)
	if !ok {
		return
	}

	ticket, err := h.repo.FindByID(r.Context(), id)
	if err != nil && !errors.Is(err, pkg.ErrNotFound) {
		log.Error("cannot find ticket", "ticket_id", id.String(), "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not load ticket")
		return
	}
	if ticket == nil || ticket.TenantID != tenantID {
		apt.RespondError(w, http.StatusNotFound, "Ticket not found")
		return
	}

	apt.Respond(w, http.StatusOK, ticket, nil)
}

func (h *Handler) UpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateTicketStatus")
	defer finish()
	log := h.log(r)

	tenantID, ok := h.requireTenant(w, r)
	if !ok {
		return
	}

	id, ok := parseTicketID(w, r)
	if !ok {
		return
	}

	var req TicketStatusRequest
	if !decodePayload(w, r, log, &req) {
		return
	}
	if kitchenstatus.ByName(req.Status) == nil {
		apt.RespondError(w, http.StatusBadRequest, "Unknown ticket status")
		return
	}

	ticket, err := h.lifecycle.Advance(r.Context(), tenantID, id, req.Status)
	if err != nil {
		h.respondLifecycleError(w, log, id, err)
		return
	}

	apt.Respond(w, http.StatusOK, ticket, nil)
}

func (h *Handler) UpdateTicketPriority(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateTicketPriority")
	defer finish()
	log := h.log(r)

	tenantID, ok := h.requireTenant(w, r)
	if !ok {
		return
	}

	id, ok := parseTicketID(w, r)
	if !ok {
		return
	}

	var req TicketPriorityRequest
	if !decodePayload(w, r, log, &req) {
		return
	}
	if req.Priority == nil {
		apt.RespondError(w, http.StatusBadRequest, "priority is required")
		return
	}

	ticket, err := h.lifecycle.SetPriority(r.Context(), tenantID, id, *req.Priority)
	if err != nil {
		h.respondLifecycleError(w, log, id, err)
		return
	}

	apt.Respond(w, http.StatusOK, ticket, nil)
}

func (h *Handler) StationBoard(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.StationBoard")
	defer finish()

	tenantID, ok := h.requireTenant(w, r)
	if !ok {
		return
	}

	code := chi.URLParam(r, "station")
	if station.ByName(code) == nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid station")
		return
	}

	tickets := []Ticket{}
	if h.board != nil {
		tickets = h.board.ByStation(tenantID, code)
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"station": code,
		"tickets": tickets,
	}, nil)
}

func (h *Handler) respondLifecycleError(w http.ResponseWriter, log apt.Logger, id TicketID, err error) {
	switch {
	case errors.Is(err, pkg.ErrNotFound):
		apt.RespondError(w, http.StatusNotFound, "Ticket not found")
	case errors.Is(err, ErrInvalidTicketTransition), errors.Is(err, ErrTicketClosed):
		log.Info("ticket change rejected", "ticket_id", id.String(), "error", err)
		apt.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pkg.ErrVersionConflict):
		apt.RespondError(w, http.StatusConflict, "Ticket was modified concurrently, retry")
	default:
		log.Error("cannot update ticket", "ticket_id", id.String(), "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not update ticket")
	}
}

func (h *Handler) requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID, err := tenant.Require(r.Context())
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Unknown tenant")
		return "", false
	}
	return tenantID, true
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

func parseTicketID(w http.ResponseWriter, r *http.Request) (TicketID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid ticket ID")
		return uuid.Nil, false
	}
	return id, true
}

func decodePayload(w http.ResponseWriter, r *http.Request, log apt.Logger, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}

	return true
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		apt.RespondError(w, http.StatusBadRequest, "Invalid "+name+" parameter")
		return 0, false
	}
	return n, true
}
