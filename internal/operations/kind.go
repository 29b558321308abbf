package operations

import (
	"strings"

	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/stock"
)

// Kind identifies a stock document type.
type Kind string

const (
	KindReceipt    Kind = "receipt"
	KindDelivery   Kind = "delivery"
	KindTransfer   Kind = "transfer"
	KindAdjustment Kind = "adjustment"
)

type kindInfo struct {
	resource  string
	action    string
	direction stock.Direction
	view      policy.Permission
	create    policy.Permission
	validate  policy.Permission
	delete    policy.Permission
}

var kinds = map[Kind]kindInfo{
	KindReceipt: {
		resource: "receipts", action: "validate_receipt", direction: stock.Inbound,
		view: policy.ViewReceipts, create: policy.CreateReceipt, validate: policy.ValidateReceipt, delete: policy.DeleteReceipt,
	},
	KindDelivery: {
		resource: "deliveries", action: "validate_delivery", direction: stock.Outbound,
		view: policy.ViewDeliveries, create: policy.CreateDelivery, validate: policy.ValidateDelivery, delete: policy.DeleteDelivery,
	},
	// Transfers are checked on the source side only; the snapshot holds
	// product totals, not per-location balances.
	KindTransfer: {
		resource: "transfers", action: "validate_transfer", direction: stock.Outbound,
		view: policy.ViewTransfers, create: policy.CreateTransfer, validate: policy.ValidateTransfer, delete: policy.DeleteTransfer,
	},
	KindAdjustment: {
		resource: "adjustments", action: "validate_adjustment", direction: stock.AdjustDown,
		view: policy.ViewAdjustments, create: policy.CreateAdjustment, validate: policy.ValidateAdjustment, delete: policy.DeleteAdjustment,
	},
}

// Kinds lists every document kind in display order.
func Kinds() []Kind {
	return []Kind{KindReceipt, KindDelivery, KindTransfer, KindAdjustment}
}

// ParseKind accepts the singular or the resource name.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, info := range kinds {
		if string(k) == s || info.resource == s {
			return k, true
		}
	}
	return "", false
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Resource is the backend collection name.
func (k Kind) Resource() string { return kinds[k].resource }

// Direction is how the kind moves stock.
func (k Kind) Direction() stock.Direction { return kinds[k].direction }

// Permission returns the permission guarding action on k.
func (k Kind) Permission(a Action) (policy.Permission, bool) {
	info, ok := kinds[k]
	if !ok {
		return 0, false
	}
	switch a {
	case ActionView:
		return info.view, true
	case ActionCheck, ActionCreate:
		return info.create, true
	case ActionValidate:
		return info.validate, true
	case ActionDelete:
		return info.delete, true
	}
	return 0, false
}

// Action names a gateway operation for permissions, audit and metrics.
type Action string

const (
	ActionView     Action = "view"
	ActionCheck    Action = "check"
	ActionCreate   Action = "create"
	ActionValidate Action = "validate"
	ActionDelete   Action = "delete"
)

// mutates reports whether the action changes backend stock or documents.
func (a Action) mutates() bool {
	return a == ActionCreate || a == ActionValidate || a == ActionDelete
}
