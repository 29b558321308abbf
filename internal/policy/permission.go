package policy

import (
	"sort"
	"strings"
)

// Permission is a named capability gating one UI action or API call. The set
// is closed: values outside the table are never granted.
type Permission uint8

const (
	ViewDashboard Permission = iota + 1

	ViewProducts
	CreateProduct
	EditProduct
	DeleteProduct

	ViewCategories
	CreateCategory
	EditCategory
	DeleteCategory

	ViewUOMs
	CreateUOM
	EditUOM
	DeleteUOM

	ViewWarehouses
	CreateWarehouse
	EditWarehouse
	DeleteWarehouse
	CreateLocation
	EditLocation
	DeleteLocation

	ViewReceipts
	CreateReceipt
	EditReceipt
	DeleteReceipt
	ValidateReceipt

	ViewDeliveries
	CreateDelivery
	EditDelivery
	DeleteDelivery
	ValidateDelivery

	ViewTransfers
	CreateTransfer
	EditTransfer
	DeleteTransfer
	ValidateTransfer

	ViewAdjustments
	CreateAdjustment
	EditAdjustment
	DeleteAdjustment
	ValidateAdjustment

	ViewMoveHistory

	ViewUsers
	CreateUser
	EditUser
	DeleteUser
	ResetPassword

	ViewSettings
	EditSettings

	permissionCount
)

var (
	everyone   = rolesOf(RoleAdmin, RoleInventoryManager, RoleWarehouseStaff)
	managers   = rolesOf(RoleAdmin, RoleInventoryManager)
	adminsOnly = rolesOf(RoleAdmin)
)

type rule struct {
	name  string
	roles roleSet
}

var table = [permissionCount]rule{
	ViewDashboard: {"VIEW_DASHBOARD", everyone},

	ViewProducts:  {"VIEW_PRODUCTS", everyone},
	CreateProduct: {"CREATE_PRODUCT", managers},
	EditProduct:   {"EDIT_PRODUCT", managers},
	DeleteProduct: {"DELETE_PRODUCT", adminsOnly},

	ViewCategories: {"VIEW_CATEGORIES", everyone},
	CreateCategory: {"CREATE_CATEGORY", managers},
	EditCategory:   {"EDIT_CATEGORY", managers},
	DeleteCategory: {"DELETE_CATEGORY", adminsOnly},

	ViewUOMs:  {"VIEW_UOMS", everyone},
	CreateUOM: {"CREATE_UOM", managers},
	EditUOM:   {"EDIT_UOM", managers},
	DeleteUOM: {"DELETE_UOM", adminsOnly},

	ViewWarehouses:  {"VIEW_WAREHOUSES", everyone},
	CreateWarehouse: {"CREATE_WAREHOUSE", managers},
	EditWarehouse:   {"EDIT_WAREHOUSE", managers},
	DeleteWarehouse: {"DELETE_WAREHOUSE", adminsOnly},
	CreateLocation:  {"CREATE_LOCATION", managers},
	EditLocation:    {"EDIT_LOCATION", managers},
	DeleteLocation:  {"DELETE_LOCATION", adminsOnly},

	ViewReceipts:    {"VIEW_RECEIPTS", everyone},
	CreateReceipt:   {"CREATE_RECEIPT", everyone},
	EditReceipt:     {"EDIT_RECEIPT", everyone},
	DeleteReceipt:   {"DELETE_RECEIPT", managers},
	ValidateReceipt: {"VALIDATE_RECEIPT", managers},

	ViewDeliveries:   {"VIEW_DELIVERIES", everyone},
	CreateDelivery:   {"CREATE_DELIVERY", everyone},
	EditDelivery:     {"EDIT_DELIVERY", everyone},
	DeleteDelivery:   {"DELETE_DELIVERY", managers},
	ValidateDelivery: {"VALIDATE_DELIVERY", managers},

	ViewTransfers:    {"VIEW_TRANSFERS", everyone},
	CreateTransfer:   {"CREATE_TRANSFER", everyone},
	EditTransfer:     {"EDIT_TRANSFER", everyone},
	DeleteTransfer:   {"DELETE_TRANSFER", managers},
	ValidateTransfer: {"VALIDATE_TRANSFER", managers},

	ViewAdjustments:    {"VIEW_ADJUSTMENTS", everyone},
	CreateAdjustment:   {"CREATE_ADJUSTMENT", everyone},
	EditAdjustment:     {"EDIT_ADJUSTMENT", everyone},
	DeleteAdjustment:   {"DELETE_ADJUSTMENT", managers},
	ValidateAdjustment: {"VALIDATE_ADJUSTMENT", managers},

	ViewMoveHistory: {"VIEW_MOVE_HISTORY", everyone},

	ViewUsers:     {"VIEW_USERS", adminsOnly},
	CreateUser:    {"CREATE_USER", adminsOnly},
	EditUser:      {"EDIT_USER", adminsOnly},
	DeleteUser:    {"DELETE_USER", adminsOnly},
	ResetPassword: {"RESET_PASSWORD", adminsOnly},

	ViewSettings: {"VIEW_SETTINGS", everyone},
	EditSettings: {"EDIT_SETTINGS", adminsOnly},
}

var byName = func() map[string]Permission {
	m := make(map[string]Permission, permissionCount)
	for p := Permission(1); p < permissionCount; p++ {
		m[table[p].name] = p
	}
	return m
}()

// ParsePermission resolves a wire name such as "CREATE_RECEIPT".
func ParsePermission(name string) (Permission, bool) {
	p, ok := byName[strings.ToUpper(strings.TrimSpace(name))]
	return p, ok
}

// Valid reports whether p is part of the table.
func (p Permission) Valid() bool {
	return p > 0 && p < permissionCount
}

func (p Permission) String() string {
	if !p.Valid() {
		return ""
	}
	return table[p].name
}

// MarshalText encodes the permission by its wire name.
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Roles returns the roles allowed to exercise p.
func (p Permission) Roles() []Role {
	if !p.Valid() {
		return nil
	}
	return table[p].roles.members()
}

// Permissions lists every permission ordered by name.
func Permissions() []Permission {
	out := make([]Permission, 0, permissionCount-1)
	for p := Permission(1); p < permissionCount; p++ {
		out = append(out, p)
	}
	sortByName(out)
	return out
}

func sortByName(perms []Permission) {
	sort.Slice(perms, func(i, j int) bool {
		return perms[i].String() < perms[j].String()
	})
}
