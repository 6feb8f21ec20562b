package entity

import (
	"farmlink/pkg/errors"
)

// Edge is one allowed status change and the role allowed to perform it.
// Farmer edges additionally require the farmer to own the product,
// buyer edges require the buyer to own the order.
type Edge struct {
	From  OrderStatus
	To    OrderStatus
	Actor Role
}

var transitions = []Edge{
	{From: OrderPending, To: OrderConfirmed, Actor: RoleFarmer},
	{From: OrderPending, To: OrderCancelled, Actor: RoleFarmer},
	{From: OrderConfirmed, To: OrderShipped, Actor: RoleFarmer},
	{From: OrderShipped, To: OrderDelivered, Actor: RoleBuyer},
}

func Transitions() []Edge {
	out := make([]Edge, len(transitions))
	copy(out, transitions)
	return out
}

func IsTerminal(status OrderStatus) bool {
	return status == OrderDelivered || status == OrderCancelled
}

func LookupTransition(from, to OrderStatus) (Edge, bool) {
	for _, edge := range transitions {
		if edge.From == from && edge.To == to {
			return edge, true
		}
	}
	return Edge{}, false
}

// CheckTransition decides whether actor may move order to target.
// Terminal orders are rejected first, then unknown edges, then the actor.
func CheckTransition(order *Order, actor Actor, target OrderStatus) (Edge, error) {
	if IsTerminal(order.Status) {
		return Edge{}, errors.AlreadyTerminal(string(order.Status))
	}

	edge, ok := LookupTransition(order.Status, target)
	if !ok {
		return Edge{}, errors.InvalidTransition(string(order.Status), string(target))
	}

	if !actorMayPerform(order, actor, edge) {
		return Edge{}, errors.NotPermitted(notPermittedMessage(edge))
	}

	return edge, nil
}

func actorMayPerform(order *Order, actor Actor, edge Edge) bool {
	if actor.Role != edge.Actor {
		return false
	}
	switch edge.Actor {
	case RoleFarmer:
		return actor.UserID == order.FarmerID
	case RoleBuyer:
		return actor.UserID == order.BuyerID
	}
	return false
}

func notPermittedMessage(edge Edge) string {
	if edge.Actor == RoleBuyer {
		return "Only the buyer who placed this order can mark it " + string(edge.To)
	}
	return "Only the farmer selling this product can mark the order " + string(edge.To)
}
