package order

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/enums/orderstatus"
	"github.com/appetiteclub/appetite/pkg/tenant"
	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	logger        apt.Logger
	tlm           *telemetry.HTTP
	orderRepo     OrderRepo
	orderItemRepo OrderItemRepo
	lifecycle     *Lifecycle
}

type HandlerDeps struct {
	OrderRepo     OrderRepo
	OrderItemRepo OrderItemRepo
	Lifecycle     *Lifecycle
}

func NewHandler(hd HandlerDeps, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return &Handler{
		logger:        logger,
		tlm:           telemetry.NewHTTP(),
		orderRepo:     hd.OrderRepo,
		orderItemRepo: hd.OrderItemRepo,
		lifecycle:     hd.Lifecycle,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Put("/{id}/status", h.UpdateOrderStatus)
		r.Get("/{id}/items", h.ListOrderItems)
	})
}

type OrderCreateRequest struct {
	LocationID string                   `json:"location_id"`
	Items      []OrderItemCreateRequest `json:"items"`
}

type OrderItemCreateRequest struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	CategoryID uuid.UUID `json:"category_id"`
	Quantity   int       `json:"quantity"`
	Options    []string  `json:"options,omitempty"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := h.requireTenant(w, r, log)
	if !ok {
		return
	}

	var req OrderCreateRequest
	if !decodePayload(w, r, log, &req) {
		return
	}
	if len(req.Items) == 0 {
		apt.RespondError(w, http.StatusBadRequest, "At least one item is required")
		return
	}

	order := NewOrder(tenantID, req.LocationID)
	items := make([]*OrderItem, 0, len(req.Items))
	for i, itemReq := range req.Items {
		item := NewOrderItem(order.ID)
		item.MenuItemID = itemReq.MenuItemID
		item.Name = itemReq.Name
		item.CategoryID = itemReq.CategoryID
		item.Options = itemReq.Options
		item.Position = i
		if itemReq.Quantity > 0 {
			item.Quantity = itemReq.Quantity
		}
		items = append(items, item)
	}

	// Items go first: an order is only visible once all of its lines are.
	if err := h.orderItemRepo.CreateMany(ctx, items); err != nil {
		log.Error("cannot create order items", "order_id", order.ID.String(), "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create order items")
		return
	}

	if err := h.orderRepo.Create(ctx, order); err != nil {
		log.Error("cannot create order", "error", err)
		if delErr := h.orderItemRepo.DeleteByOrder(context.WithoutCancel(ctx), order.ID); delErr != nil {
			log.Error("cannot remove items of unsaved order", "order_id", order.ID.String(), "error", delErr)
		}
		apt.RespondError(w, http.StatusInternalServerError, "Could not create order")
		return
	}

	respondCreated(w, order, apt.RESTfulLinksFor(order)...)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	log := h.log(r)

	order, ok := h.loadOrder(w, r, log)
	if !ok {
		return
	}

	links := apt.RESTfulLinksFor(order)
	apt.RespondSuccess(w, order, links...)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	log := h.log(r)

	tenantID, ok := h.requireTenant(w, r, log)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !orderstatus.IsValid(status) {
		apt.RespondError(w, http.StatusBadRequest, "Invalid status parameter")
		return
	}

	orders, err := h.orderRepo.ListByTenant(r.Context(), tenantID, status)
	if err != nil {
		log.Error("error retrieving orders", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve orders")
		return
	}

	apt.RespondCollection(w, orders, "order")
}

func (h *Handler) ListOrderItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrderItems")
	defer finish()

	log := h.log(r)

	order, ok := h.loadOrder(w, r, log)
	if !ok {
		return
	}

	items, err := h.orderItemRepo.ListByOrder(r.Context(), order.ID)
	if err != nil {
		log.Error("error retrieving order items", "order_id", order.ID.String(), "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve order items")
		return
	}

	apt.RespondCollection(w, items, "order-item")
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateOrderStatus")
	defer finish()

	log := h.log(r)

	tenantID, ok := h.requireTenant(w, r, log)
	if !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req OrderStatusRequest
	if !decodePayload(w, r, log, &req) {
		return
	}
	if !orderstatus.IsValid(req.Status) {
		apt.RespondError(w, http.StatusBadRequest, "Unknown order status")
		return
	}

	order, err := h.lifecycle.Transition(r.Context(), tenantID, id, req.Status)
	switch {
	case err == nil:
		links := apt.RESTfulLinksFor(order)
		apt.RespondSuccess(w, order, links...)
	case errors.Is(err, pkg.ErrNotFound):
		apt.RespondError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, ErrInvalidTransition):
		log.Info("order transition rejected", "order_id", id.String(), "error", err)
		apt.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pkg.ErrVersionConflict):
		log.Info("order changed concurrently", "order_id", id.String())
		apt.RespondError(w, http.StatusConflict, "Order was modified concurrently, retry")
	default:
		log.Error("cannot update order status", "order_id", id.String(), "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not update order")
	}
}

func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request, log apt.Logger) (*Order, bool) {
	tenantID, ok := h.requireTenant(w, r, log)
	if !ok {
		return nil, false
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return nil, false
	}

	order, err := h.orderRepo.Get(r.Context(), id)
	if err != nil && !errors.Is(err, pkg.ErrNotFound) {
		log.Error("error loading order", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not load order")
		return nil, false
	}
	if order == nil || order.TenantID != tenantID {
		apt.RespondError(w, http.StatusNotFound, "Order not found")
		return nil, false
	}

	return order, true
}

func (h *Handler) requireTenant(w http.ResponseWriter, r *http.Request, log apt.Logger) (string, bool) {
	tenantID, err := tenant.Require(r.Context())
	if err != nil {
		log.Debug("request without tenant")
		apt.RespondError(w, http.StatusBadRequest, "Unknown tenant")
		return "", false
	}
	return tenantID, true
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request, log apt.Logger) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		log.Debug("missing id parameter")
		apt.RespondError(w, http.StatusBadRequest, "Missing id parameter")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Debug("invalid id parameter", "id", idStr)
		apt.RespondError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}

	return id, true
}

func respondCreated(w http.ResponseWriter, data interface{}, links ...apt.Link) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(apt.SuccessResponse{Data: data, Links: links})
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

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}
