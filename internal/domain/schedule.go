package domain

import "time"

// ScheduleState — состояние отложенного перехода.
type ScheduleState string

const (
	// SchedulePending — запись ждёт срабатывания.
	SchedulePending ScheduleState = "pending"
	// ScheduleDone — переход применён.
	ScheduleDone ScheduleState = "done"
	// ScheduleSkipped — на момент срабатывания заказ ушёл из исходного статуса; no-op.
	ScheduleSkipped ScheduleState = "skipped"
)

// ScheduleEntry — долговечная запись авто-перехода: «если заказ всё ещё
// в FromStatus после DueAt, применить переход в ToStatus». Отмена — всегда
// через несовпадение исходного статуса при срабатывании, а не через таймеры.
type ScheduleEntry struct {
	ID         string
	OrderID    string
	FromStatus OrderStatus
	ToStatus   OrderStatus
	DueAt      time.Time
	State      ScheduleState
	// Note попадает в историю статусов при срабатывании.
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
