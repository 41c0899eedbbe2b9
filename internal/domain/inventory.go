package domain

import "time"

// StockStatus — производный статус наличия товара.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

// StockAlert — тип алерта по записи инвентаря.
type StockAlert string

const (
	AlertLowStock   StockAlert = "low_stock"
	AlertOutOfStock StockAlert = "out_of_stock"
	AlertOverstock  StockAlert = "overstock"
)

// InventoryRecord ведёт счётчики стока по одному товару.
// Инварианты: available = current - reserved >= 0, reserved <= current.
type InventoryRecord struct {
	ProductID     string
	CurrentStock  int64
	ReservedStock int64
	// OutOfStockThreshold — порог «нет в наличии» по доступному стоку (обычно 0).
	OutOfStockThreshold int64
	// LowStockThreshold — порог «мало на складе».
	LowStockThreshold int64
	// OverstockThreshold — порог переизбытка по текущему стоку; 0 отключает алерт.
	OverstockThreshold int64
	Status             StockStatus
	// Alerts — активные алерты; каждый тип присутствует не более одного раза.
	Alerts    []StockAlert
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available возвращает доступный к резервированию сток.
func (r *InventoryRecord) Available() int64 {
	return r.CurrentStock - r.ReservedStock
}

// Recompute пересчитывает производный статус и набор алертов.
// Вызывается внутри атомарной секции репозитория после каждой мутации счётчиков.
func (r *InventoryRecord) Recompute() {
	available := r.Available()

	switch {
	case available <= r.OutOfStockThreshold:
		r.Status = StockStatusOutOfStock
	case available <= r.LowStockThreshold:
		r.Status = StockStatusLowStock
	default:
		r.Status = StockStatusInStock
	}

	r.setAlert(AlertOutOfStock, r.Status == StockStatusOutOfStock)
	r.setAlert(AlertLowStock, r.Status == StockStatusLowStock)
	r.setAlert(AlertOverstock, r.OverstockThreshold > 0 && r.CurrentStock > r.OverstockThreshold)
}

// HasAlert проверяет наличие алерта в активном наборе.
func (r *InventoryRecord) HasAlert(alert StockAlert) bool {
	for _, a := range r.Alerts {
		if a == alert {
			return true
		}
	}
	return false
}

func (r *InventoryRecord) setAlert(alert StockAlert, active bool) {
	has := r.HasAlert(alert)
	if active && !has {
		r.Alerts = append(r.Alerts, alert)
		return
	}
	if !active && has {
		filtered := r.Alerts[:0]
		for _, a := range r.Alerts {
			if a != alert {
				filtered = append(filtered, a)
			}
		}
		r.Alerts = filtered
	}
}

// CheckInvariants возвращает нарушенные инварианты счётчиков, если они есть.
func (r *InventoryRecord) CheckInvariants() []error {
	var errs []error

	if r.ReservedStock > r.CurrentStock {
		errs = append(errs, ErrStockInvariant)
	}
	if r.Available() < 0 {
		errs = append(errs, ErrStockInvariant)
	}
	if r.ReservedStock < 0 || r.CurrentStock < 0 {
		errs = append(errs, ErrStockInvariant)
	}

	return errs
}
