package tool

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/alitalabs/alita/agent/contract"
)

var cancellableStatuses = map[string]struct{}{
	"Placed":  {},
	"Shipped": {},
}

const returnableStatus = "Delivered"

func defaultTicket(prefix string) string {
	return prefix + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// cancelOrder validates ownership and eligibility, records the request in
// the audit log, and returns a ticketed confirmation. The order record
// itself is never modified.
func (g *Gateway) cancelOrder(
	ctx context.Context,
	call contractx.ToolCall,
	customer contractx.CustomerContext,
) (contractx.ToolOutcome, error) {
	orderID := strings.ToUpper(strings.TrimSpace(call.Args.OrderID))

	order, err := g.store.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, contractx.ErrOrderNotFound) {
			return g.finishAction(call, customer, contractx.ActionCancelOrder, orderID, "",
				contractx.ResultRejected, "Order not found.", "")
		}
		return contractx.ToolOutcome{Call: call}, err
	}

	if !strings.EqualFold(order.CustomerID, customer.ID) {
		return g.denyAction(call, customer, contractx.ActionCancelOrder, orderID, "")
	}

	if _, ok := cancellableStatuses[order.Status]; !ok {
		return g.finishAction(call, customer, contractx.ActionCancelOrder, orderID, "",
			contractx.ResultRejected, "Order is not eligible for cancellation.", "")
	}

	ticket := g.newTicket("CAN")
	return g.finishAction(call, customer, contractx.ActionCancelOrder, orderID, "",
		contractx.ResultApproved, "Cancellation request submitted.", ticket)
}

// initiateReturn validates ownership, delivery status, and that the product
// is part of the order, then records the request.
func (g *Gateway) initiateReturn(
	ctx context.Context,
	call contractx.ToolCall,
	customer contractx.CustomerContext,
) (contractx.ToolOutcome, error) {
	orderID := strings.ToUpper(strings.TrimSpace(call.Args.OrderID))
	productID := strings.ToUpper(strings.TrimSpace(call.Args.ProductID))

	order, err := g.store.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, contractx.ErrOrderNotFound) {
			return g.finishAction(call, customer, contractx.ActionInitiateReturn, orderID, productID,
				contractx.ResultRejected, "Order not found.", "")
		}
		return contractx.ToolOutcome{Call: call}, err
	}

	if !strings.EqualFold(order.CustomerID, customer.ID) {
		return g.denyAction(call, customer, contractx.ActionInitiateReturn, orderID, productID)
	}

	if order.Status != returnableStatus {
		return g.finishAction(call, customer, contractx.ActionInitiateReturn, orderID, productID,
			contractx.ResultRejected, "Order is not eligible for return.", "")
	}

	found := false
	for _, p := range order.Products {
		if strings.EqualFold(p.ProductID, productID) {
			found = true
			break
		}
	}
	if !found {
		return g.finishAction(call, customer, contractx.ActionInitiateReturn, orderID, productID,
			contractx.ResultRejected, "Product not found in order.", "")
	}

	ticket := g.newTicket("RET")
	return g.finishAction(call, customer, contractx.ActionInitiateReturn, orderID, productID,
		contractx.ResultApproved, "Return request submitted.", ticket)
}

// denyAction converts a cross-customer attempt into a Denied result. The
// foreign record never reaches the caller; the attempt is logged as a
// security-relevant event.
func (g *Gateway) denyAction(
	call contractx.ToolCall,
	customer contractx.CustomerContext,
	action, orderID, productID string,
) (contractx.ToolOutcome, error) {
	log.Warn().
		Str("customer_id", customer.ID).
		Str("order_id", orderID).
		Str("action", action).
		Err(contractx.ErrGuardrail).
		Msg("cross-customer action denied")

	return g.finishAction(call, customer, action, orderID, productID,
		contractx.ResultDenied, "This order does not belong to your account.", "")
}

// finishAction appends the audit entry and, only after the entry is durably
// recorded, returns the user-facing result. An audit write failure fails
// this action alone.
func (g *Gateway) finishAction(
	call contractx.ToolCall,
	customer contractx.CustomerContext,
	action, orderID, productID, result, message, ticket string,
) (contractx.ToolOutcome, error) {
	entry := contractx.ActionLogEntry{
		TS:         g.now().UTC(),
		CustomerID: customer.ID,
		Action:     action,
		OrderID:    orderID,
		ProductID:  productID,
		Result:     result,
		Reason:     message,
		TicketID:   ticket,
	}
	if err := g.audit.Append(entry); err != nil {
		log.Error().Err(err).Str("action", action).Str("order_id", orderID).
			Msg("audit append failed")
		return contractx.ToolOutcome{
			Call:  call,
			Error: "The action could not be confirmed: audit record unavailable.",
		}, nil
	}

	return contractx.ToolOutcome{
		Call: call,
		Action: &contractx.ActionResult{
			Status:   result,
			Message:  message,
			TicketID: ticket,
		},
	}, nil
}
