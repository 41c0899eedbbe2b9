package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type validationErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// orderItemResponse — позиция заказа в API-ответе.
type orderItemResponse struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	Qty            int32  `json:"qty"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

// orderResponse — представление заказа в API-ответе.
type orderResponse struct {
	ID                 string              `json:"id"`
	BuyerID            string              `json:"buyer_id"`
	SellerID           string              `json:"seller_id"`
	Status             string              `json:"status"`
	Currency           string              `json:"currency"`
	AmountMinor        int64               `json:"amount_minor"`
	Items              []orderItemResponse `json:"items"`
	DeliveryMethod     string              `json:"delivery_method,omitempty"`
	EscrowHoldID       string              `json:"escrow_hold_id,omitempty"`
	PaymentID          string              `json:"payment_id,omitempty"`
	DisputeID          string              `json:"dispute_id,omitempty"`
	SatisfactionStatus bool                `json:"satisfaction_status"`
	Version            int64               `json:"version"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

type historyEntryResponse struct {
	Status    string    `json:"status"`
	ActorID   string    `json:"actor_id"`
	ActorKind string    `json:"actor_kind"`
	Note      string    `json:"note,omitempty"`
	Occurred  time.Time `json:"occurred_at"`
}

type paymentResponse struct {
	ID            string                  `json:"id"`
	OrderID       string                  `json:"order_id"`
	AmountMinor   int64                   `json:"amount_minor"`
	Currency      string                  `json:"currency"`
	Outcome       string                  `json:"outcome"`
	Attempts      int32                   `json:"attempts"`
	LastErrorKind string                  `json:"last_error_kind,omitempty"`
	History       []paymentAttemptResponse `json:"history"`
}

type paymentAttemptResponse struct {
	Seq        int32     `json:"seq"`
	GatewayRef string    `json:"gateway_ref"`
	TxnID      string    `json:"txn_id,omitempty"`
	Outcome    string    `json:"outcome"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type escrowHoldResponse struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	PayeeID     string    `json:"payee_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	DisposedAt  time.Time `json:"disposed_at,omitempty"`
}

type disputeResponse struct {
	ID                  string    `json:"id"`
	OrderID             string    `json:"order_id"`
	OpenedBy            string    `json:"opened_by"`
	Reason              string    `json:"reason"`
	Description         string    `json:"description,omitempty"`
	EvidenceRefs        []string  `json:"evidence_refs,omitempty"`
	RequestedResolution string    `json:"requested_resolution,omitempty"`
	Urgency             string    `json:"urgency"`
	Status              string    `json:"status"`
	Outcome             string    `json:"outcome,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	ResolvedAt          time.Time `json:"resolved_at,omitempty"`
}

type inventoryResponse struct {
	ProductID     string   `json:"product_id"`
	CurrentStock  int64    `json:"current_stock"`
	ReservedStock int64    `json:"reserved_stock"`
	Available     int64    `json:"available"`
	Status        string   `json:"status"`
	Alerts        []string `json:"alerts,omitempty"`
	Version       int64    `json:"version"`
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
		}
	}
	return orderResponse{
		ID:                 order.ID,
		BuyerID:            order.BuyerID,
		SellerID:           order.SellerID,
		Status:             string(order.Status),
		Currency:           order.Currency,
		AmountMinor:        order.AmountMinor,
		Items:              items,
		DeliveryMethod:     order.DeliveryMethod,
		EscrowHoldID:       order.EscrowHoldID,
		PaymentID:          order.PaymentID,
		DisputeID:          order.DisputeID,
		SatisfactionStatus: order.SatisfactionStatus,
		Version:            order.Version,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
}

func toHistoryResponse(entries []domain.StatusHistoryEntry) []historyEntryResponse {
	out := make([]historyEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = historyEntryResponse{
			Status:    string(entry.Status),
			ActorID:   entry.Actor.ID,
			ActorKind: string(entry.Actor.Kind),
			Note:      entry.Note,
			Occurred:  entry.Occurred,
		}
	}
	return out
}

func toPaymentResponse(payment domain.Payment, attempts []domain.PaymentAttempt) paymentResponse {
	history := make([]paymentAttemptResponse, len(attempts))
	for i, attempt := range attempts {
		history[i] = paymentAttemptResponse{
			Seq:        attempt.Seq,
			GatewayRef: attempt.GatewayRef,
			TxnID:      attempt.TxnID,
			Outcome:    string(attempt.Outcome),
			ErrorKind:  string(attempt.ErrorKind),
			CreatedAt:  attempt.CreatedAt,
		}
	}
	return paymentResponse{
		ID:            payment.ID,
		OrderID:       payment.OrderID,
		AmountMinor:   payment.AmountMinor,
		Currency:      payment.Currency,
		Outcome:       string(payment.Outcome),
		Attempts:      payment.Attempts,
		LastErrorKind: string(payment.LastErrorKind),
		History:       history,
	}
}

func toEscrowHoldResponse(hold domain.EscrowHold) escrowHoldResponse {
	return escrowHoldResponse{
		ID:          hold.ID,
		OrderID:     hold.OrderID,
		AmountMinor: hold.AmountMinor,
		Currency:    hold.Currency,
		Status:      string(hold.Status),
		PayeeID:     hold.PayeeID,
		CreatedAt:   hold.CreatedAt,
		DisposedAt:  hold.DisposedAt,
	}
}

func toDisputeResponse(dispute domain.Dispute) disputeResponse {
	return disputeResponse{
		ID:                  dispute.ID,
		OrderID:             dispute.OrderID,
		OpenedBy:            dispute.OpenedBy,
		Reason:              dispute.Reason,
		Description:         dispute.Description,
		EvidenceRefs:        dispute.EvidenceRefs,
		RequestedResolution: string(dispute.RequestedResolution),
		Urgency:             string(dispute.Urgency),
		Status:              string(dispute.Status),
		Outcome:             string(dispute.Outcome),
		CreatedAt:           dispute.CreatedAt,
		ResolvedAt:          dispute.ResolvedAt,
	}
}

func toInventoryResponse(record domain.InventoryRecord) inventoryResponse {
	alerts := make([]string, len(record.Alerts))
	for i, alert := range record.Alerts {
		alerts[i] = string(alert)
	}
	return inventoryResponse{
		ProductID:     record.ProductID,
		CurrentStock:  record.CurrentStock,
		ReservedStock: record.ReservedStock,
		Available:     record.Available(),
		Status:        string(record.Status),
		Alerts:        alerts,
		Version:       record.Version,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит доменную ошибку в HTTP-статус и тело ответа.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), errorBody{Error: errorCode(err), Message: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrDisputeNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrHoldNotFound),
		errors.Is(err, domain.ErrInventoryNotFound),
		errors.Is(err, domain.ErrIdempotencyKeyNotFound):
		return http.StatusNotFound
	case domain.IsTransitionError(err),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrStockInvariant),
		errors.Is(err, domain.ErrEscrowAlreadyFunded),
		errors.Is(err, domain.ErrInvalidHoldState),
		errors.Is(err, domain.ErrDisputeClosed),
		errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDisputeReasonRequired),
		errors.Is(err, domain.ErrDisputeResolutionInvalid),
		errors.Is(err, domain.ErrBuyerRequired),
		errors.Is(err, domain.ErrSellerRequired),
		errors.Is(err, domain.ErrCurrencyRequired),
		errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrAmountMismatch),
		errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest
	default:
		var paymentErr *domain.PaymentError
		if errors.As(err, &paymentErr) {
			return http.StatusPaymentRequired
		}
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case statusForError(err) == http.StatusNotFound:
		return "not_found"
	case domain.IsTransitionError(err):
		return "illegal_transition"
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return "idempotency_key_reused"
	case statusForError(err) == http.StatusConflict:
		return "conflict"
	case statusForError(err) == http.StatusBadRequest:
		return "invalid_request"
	case statusForError(err) == http.StatusPaymentRequired:
		return "payment_failed"
	default:
		return "internal_error"
	}
}
