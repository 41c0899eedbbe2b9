package domain

import "time"

// DisputeStatus описывает жизненный цикл спора.
type DisputeStatus string

const (
	// DisputeStatusOpen — спор открыт, эскроу заморожен.
	DisputeStatusOpen DisputeStatus = "open"
	// DisputeStatusUnderReview — спор взят в работу администратором.
	DisputeStatusUnderReview DisputeStatus = "under_review"
	// DisputeStatusResolved — спор закрыт с зафиксированным исходом.
	DisputeStatusResolved DisputeStatus = "resolved"
)

// DisputeUrgency — приоритет рассмотрения спора.
type DisputeUrgency string

const (
	DisputeUrgencyLow    DisputeUrgency = "low"
	DisputeUrgencyNormal DisputeUrgency = "normal"
	DisputeUrgencyHigh   DisputeUrgency = "high"
)

// Dispute описывает спор по заказу. Единственный путь, которым
// замороженный холд получает терминальную диспозицию.
type Dispute struct {
	ID      string
	OrderID string
	// OpenedBy — кто открыл спор (покупатель или система).
	OpenedBy    string
	Reason      string
	Description string
	// EvidenceRefs — ссылки на приложенные материалы.
	EvidenceRefs []string
	// RequestedResolution — диспозиция, которую запрашивает инициатор.
	RequestedResolution Disposition
	Urgency             DisputeUrgency
	Status              DisputeStatus
	// Outcome заполняется только при Status=resolved.
	Outcome    Disposition
	CreatedAt  time.Time
	ResolvedAt time.Time
}

// Validate проверяет корректность ключевых полей спора.
func (d *Dispute) Validate() []error {
	var errs []error

	if d.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if d.Reason == "" {
		errs = append(errs, ErrDisputeReasonRequired)
	}
	if d.RequestedResolution != "" && !d.RequestedResolution.Valid() {
		errs = append(errs, ErrDisputeResolutionInvalid)
	}

	return errs
}
