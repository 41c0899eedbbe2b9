package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/dispute"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/escrow"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/inventory"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/payment"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/saga"
)

const (
	headerIdempotencyKey = "Idempotency-Key"

	defaultRequestTimeout = 30 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
)

// Handler — HTTP-фасад чекаут-пайплайна.
type Handler struct {
	machine     *saga.Machine
	disputes    *dispute.Manager
	payments    *payment.Coordinator
	stock       *inventory.Manager
	holds       *escrow.Ledger
	idempotency domain.IdempotencyRepository

	validate       *validatorv10.Validate
	logger         *log.Entry
	idempotencyTTL time.Duration
}

// HandlerOption настраивает Handler.
type HandlerOption func(*Handler)

// WithLogger задаёт logger для HTTP-слоя.
func WithLogger(logger *log.Entry) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithIdempotencyTTL задаёт срок жизни записей idempotency-key.
func WithIdempotencyTTL(ttl time.Duration) HandlerOption {
	return func(h *Handler) {
		h.idempotencyTTL = ttl
	}
}

// NewHandler создаёт HTTP-handler поверх сервисов пайплайна.
// idempotency может быть nil: тогда чекаут обрабатывается без дедупликации.
func NewHandler(
	machine *saga.Machine,
	disputes *dispute.Manager,
	payments *payment.Coordinator,
	stock *inventory.Manager,
	holds *escrow.Ledger,
	idempotency domain.IdempotencyRepository,
	options ...HandlerOption,
) *Handler {
	h := &Handler{
		machine:        machine,
		disputes:       disputes,
		payments:       payments,
		stock:          stock,
		holds:          holds,
		idempotency:    idempotency,
		validate:       newValidator(),
		idempotencyTTL: defaultIdempotencyTTL,
	}
	for _, option := range options {
		option(h)
	}
	if h.logger == nil {
		h.logger = log.WithField("component", "http-api")
	}
	return h
}

// Register вешает маршруты API на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)

	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/", h.getOrder)
		r.Get("/history", h.getHistory)
		r.Get("/payment", h.getPayment)
		r.Get("/escrow", h.getEscrowHold)
		r.Post("/advance", h.advance)
		r.Post("/confirm", h.confirmSatisfaction)
		r.Post("/retry-payment", h.retryPayment)
	})

	r.Route("/disputes", func(r chi.Router) {
		r.Post("/", h.openDispute)
		r.Get("/{id}", h.getDispute)
		r.Post("/{id}/review", h.reviewDispute)
		r.Post("/{id}/resolve", h.resolveDispute)
	})

	r.Route("/inventory", func(r chi.Router) {
		r.Post("/", h.registerStock)
		r.Get("/{productID}", h.getStock)
		r.Post("/{productID}/adjust", h.adjustStock)
	})
}

// checkout проводит заказ через резерв, оплату и финансирование эскроу.
// Заголовок Idempotency-Key делает запрос идемпотентным: повтор ключа с тем
// же телом возвращает сохранённый ответ, с другим телом — 409.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	var req checkoutRequest
	if err := json.NewDecoder(io.TeeReader(r.Body, &buf)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request_body", Message: err.Error()})
		return
	}
	if err := h.validateStruct(w, &req); err != nil {
		return
	}

	key := r.Header.Get(headerIdempotencyKey)
	if key == "" || h.idempotency == nil {
		status, body := h.processCheckout(r.Context(), req)
		writeRaw(w, status, body)
		return
	}

	requestHash := hashBody(buf.Bytes())
	if _, err := h.idempotency.CreateProcessing(key, requestHash, time.Now().UTC().Add(h.idempotencyTTL)); err != nil {
		if !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
			writeError(w, err)
			return
		}
		h.replayStored(w, key, requestHash)
		return
	}

	status, body := h.processCheckout(r.Context(), req)
	if status >= 200 && status < 300 {
		if err := h.idempotency.MarkDone(key, body, status); err != nil {
			h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
		}
	} else {
		if err := h.idempotency.MarkFailed(key, body, status); err != nil {
			h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
		}
	}
	writeRaw(w, status, body)
}

// replayStored возвращает сохранённый ответ по уже известному ключу.
func (h *Handler) replayStored(w http.ResponseWriter, key, requestHash string) {
	record, err := h.idempotency.Get(key)
	if err != nil {
		writeError(w, err)
		return
	}
	if record.RequestHash != requestHash {
		writeError(w, domain.ErrIdempotencyHashMismatch)
		return
	}
	if record.Status == domain.IdempotencyStatusProcessing {
		writeJSON(w, http.StatusConflict, errorBody{
			Error:   "request_in_progress",
			Message: "original request with this idempotency key is still being processed",
		})
		return
	}
	writeRaw(w, record.HTTPStatus, record.ResponseBody)
}

// processCheckout выполняет чекаут и сериализует результат в (status, body).
// Тело сериализуется заранее, чтобы одно и то же представление ушло и клиенту,
// и в хранилище idempotency.
func (h *Handler) processCheckout(ctx context.Context, req checkoutRequest) (int, []byte) {
	ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	order, err := h.machine.Checkout(ctx, saga.CheckoutRequest{
		BuyerID:        req.BuyerID,
		SellerID:       req.SellerID,
		Currency:       req.Currency,
		DeliveryMethod: req.DeliveryMethod,
		Items:          req.toDomain(),
	})
	if err != nil {
		if order.ID == "" {
			return marshalBody(statusForError(err), errorBody{Error: errorCode(err), Message: err.Error()})
		}
		// Заказ создан, но пайплайн остановился (нет стока, платёж не прошёл):
		// клиент получает фактическое состояние заказа вместе с ошибкой.
		return marshalBody(statusForError(err), checkoutFailureBody{
			Error:   errorCode(err),
			Message: err.Error(),
			Order:   toOrderResponse(order),
		})
	}
	return marshalBody(http.StatusCreated, toOrderResponse(order))
}

type checkoutFailureBody struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Order   orderResponse `json:"order"`
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.machine.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if _, err := h.machine.Get(orderID); err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.machine.History(orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponse(entries))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	order, err := h.machine.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if order.PaymentID == "" {
		writeError(w, domain.ErrPaymentNotFound)
		return
	}
	pay, err := h.payments.Get(order.PaymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	attempts, err := h.payments.Attempts(order.PaymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(pay, attempts))
}

func (h *Handler) getEscrowHold(w http.ResponseWriter, r *http.Request) {
	hold, err := h.holds.GetByOrder(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEscrowHoldResponse(hold))
}

// advance выполняет ручной переход статуса (продавец собирает, отгружает и т.д.).
func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}
	target := domain.OrderStatus(req.To)
	if !target.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: domain.ErrStatusUnknown.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	order, err := h.machine.Advance(ctx, chi.URLParam(r, "id"), target, req.actor(), req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) confirmSatisfaction(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	order, err := h.machine.ConfirmSatisfaction(ctx, chi.URLParam(r, "id"), req.actor(domain.ActorBuyer))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) retryPayment(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	order, err := h.machine.RetryPayment(ctx, chi.URLParam(r, "id"), req.actor(domain.ActorBuyer))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) openDispute(w http.ResponseWriter, r *http.Request) {
	var req openDisputeRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	opened, err := h.disputes.Open(ctx, dispute.OpenRequest{
		OrderID:             req.OrderID,
		OpenedBy:            req.OpenedBy,
		Reason:              req.Reason,
		Description:         req.Description,
		EvidenceRefs:        req.EvidenceRefs,
		RequestedResolution: domain.Disposition(req.RequestedResolution),
		Urgency:             domain.DisputeUrgency(req.Urgency),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisputeResponse(opened))
}

func (h *Handler) getDispute(w http.ResponseWriter, r *http.Request) {
	found, err := h.disputes.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(found))
}

func (h *Handler) reviewDispute(w http.ResponseWriter, r *http.Request) {
	reviewed, err := h.disputes.StartReview(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(reviewed))
}

func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveDisputeRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	actor := domain.Actor{ID: req.ActorID, Kind: domain.ActorAdmin}
	resolved, err := h.disputes.Resolve(ctx, chi.URLParam(r, "id"), domain.Disposition(req.Outcome), actor, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(resolved))
}

func (h *Handler) registerStock(w http.ResponseWriter, r *http.Request) {
	var req registerStockRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}

	record := domain.InventoryRecord{
		ProductID:           req.ProductID,
		CurrentStock:        req.CurrentStock,
		LowStockThreshold:   req.LowStockThreshold,
		OutOfStockThreshold: req.OutOfStockThreshold,
		OverstockThreshold:  req.OverstockThreshold,
		CreatedAt:           time.Now().UTC(),
	}
	if err := h.stock.Register(record); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.stock.Get(req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInventoryResponse(created))
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	record, err := h.stock.Get(chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResponse(record))
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return
	}

	record, err := h.stock.Adjust(chi.URLParam(r, "productID"), req.Delta, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResponse(record))
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func marshalBody(status int, v any) (int, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		return http.StatusInternalServerError, []byte(`{"error":"internal_error"}`)
	}
	return status, body
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
