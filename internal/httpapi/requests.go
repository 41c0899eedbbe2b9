package httpapi

import (
	"encoding/json"
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// checkoutItemRequest — позиция заказа в теле чекаута.
type checkoutItemRequest struct {
	ProductID      string `json:"product_id" validate:"required"`
	Qty            int32  `json:"qty" validate:"required,gt=0"`
	UnitPriceMinor int64  `json:"unit_price_minor" validate:"gte=0"`
}

// checkoutRequest — тело POST /checkout.
type checkoutRequest struct {
	BuyerID        string                `json:"buyer_id" validate:"required"`
	SellerID       string                `json:"seller_id" validate:"required"`
	Currency       string                `json:"currency" validate:"required,len=3"`
	DeliveryMethod string                `json:"delivery_method"`
	Items          []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

// advanceRequest — тело ручного перехода статуса заказа.
type advanceRequest struct {
	To        string `json:"to" validate:"required"`
	ActorID   string `json:"actor_id" validate:"required"`
	ActorKind string `json:"actor_kind" validate:"required,oneof=buyer seller admin system"`
	Note      string `json:"note"`
}

// actorRequest — тело операций, где нужен только инициатор.
type actorRequest struct {
	ActorID   string `json:"actor_id" validate:"required"`
	ActorKind string `json:"actor_kind" validate:"omitempty,oneof=buyer seller admin system"`
}

// openDisputeRequest — тело POST /disputes.
type openDisputeRequest struct {
	OrderID             string   `json:"order_id" validate:"required"`
	OpenedBy            string   `json:"opened_by" validate:"required"`
	Reason              string   `json:"reason" validate:"required"`
	Description         string   `json:"description"`
	EvidenceRefs        []string `json:"evidence_refs"`
	RequestedResolution string   `json:"requested_resolution" validate:"omitempty,oneof=release refund"`
	Urgency             string   `json:"urgency" validate:"omitempty,oneof=low normal high"`
}

// resolveDisputeRequest — тело POST /disputes/{id}/resolve.
type resolveDisputeRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=release refund"`
	ActorID string `json:"actor_id" validate:"required"`
	Note    string `json:"note"`
}

// registerStockRequest — тело регистрации товара в инвентаре.
type registerStockRequest struct {
	ProductID           string `json:"product_id" validate:"required"`
	CurrentStock        int64  `json:"current_stock" validate:"gte=0"`
	LowStockThreshold   int64  `json:"low_stock_threshold" validate:"gte=0"`
	OutOfStockThreshold int64  `json:"out_of_stock_threshold" validate:"gte=0"`
	OverstockThreshold  int64  `json:"overstock_threshold" validate:"gte=0"`
}

// adjustStockRequest — тело ручной корректировки стока.
type adjustStockRequest struct {
	Delta  int64  `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// newValidator создаёт validator с дополнительной structure-level проверкой чекаута.
func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(checkoutStructValidation, checkoutRequest{})
	return v
}

// checkoutStructValidation отклоняет дубли product_id в позициях заказа:
// резерв стока ведётся по товару, повтор позиции маскирует реальный объём резерва.
func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(checkoutRequest)

	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		if _, ok := seen[item.ProductID]; ok {
			sl.ReportError(req.Items, "items", "Items", "unique_product", item.ProductID)
			return
		}
		seen[item.ProductID] = struct{}{}
	}
}

// decodeAndValidate разбирает JSON-тело в out и прогоняет validator.
// При ошибке пишет 400 и возвращает ошибку для раннего выхода из handler.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, out interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request_body", Message: err.Error()})
		return err
	}
	return h.validateStruct(w, out)
}

// validateStruct прогоняет validator по уже разобранной структуре.
func (h *Handler) validateStruct(w http.ResponseWriter, out interface{}) error {
	if err := h.validate.Struct(out); err != nil {
		writeJSON(w, http.StatusBadRequest, validationErrorBody{
			Error:  "validation_failed",
			Fields: validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Error()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}

func (r *checkoutRequest) toDomain() []domain.OrderItem {
	items := make([]domain.OrderItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = domain.OrderItem{
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
		}
	}
	return items
}

func (r *advanceRequest) actor() domain.Actor {
	return domain.Actor{ID: r.ActorID, Kind: domain.ActorKind(r.ActorKind)}
}

func (r *actorRequest) actor(fallback domain.ActorKind) domain.Actor {
	kind := domain.ActorKind(r.ActorKind)
	if r.ActorKind == "" {
		kind = fallback
	}
	return domain.Actor{ID: r.ActorID, Kind: kind}
}
