package domain

import "time"

// ActorKind классифицирует инициатора перехода для аудита.
type ActorKind string

const (
	ActorBuyer  ActorKind = "buyer"
	ActorSeller ActorKind = "seller"
	ActorAdmin  ActorKind = "admin"
	ActorSystem ActorKind = "system"
)

// Actor — инициатор перехода статуса.
type Actor struct {
	ID   string
	Kind ActorKind
}

// SystemActor возвращает актора для внутренних (авто) переходов.
func SystemActor() Actor {
	return Actor{ID: "system", Kind: ActorSystem}
}

// StatusHistoryEntry — запись append-only истории статусов заказа.
// Записи строго упорядочены порядком принятия переходов стейт-машиной.
type StatusHistoryEntry struct {
	OrderID  string
	Status   OrderStatus
	Actor    Actor
	Note     string
	Occurred time.Time
}
