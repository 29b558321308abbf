// Package masterdata proxies the inventory API's reference collections
// (products, categories, units, warehouses, locations, users) and its
// read-only ledgers, gating every route with the permission table.
package masterdata

import "github.com/odyssey-erp/stockgate/internal/policy"

// Collection is a backend resource and the permissions guarding it. A zero
// Create permission marks a read-only collection.
type Collection struct {
	Resource string
	View     policy.Permission
	Create   policy.Permission
	Edit     policy.Permission
	Delete   policy.Permission

	// AffectsStock marks collections whose writes change the stock snapshot.
	AffectsStock bool
}

// ReadOnly reports whether c only serves GET routes.
func (c Collection) ReadOnly() bool { return c.Create == 0 }

const usersResource = "users"

var collections = []Collection{
	{Resource: "products", View: policy.ViewProducts, Create: policy.CreateProduct, Edit: policy.EditProduct, Delete: policy.DeleteProduct, AffectsStock: true},
	{Resource: "categories", View: policy.ViewCategories, Create: policy.CreateCategory, Edit: policy.EditCategory, Delete: policy.DeleteCategory},
	{Resource: "units", View: policy.ViewUOMs, Create: policy.CreateUOM, Edit: policy.EditUOM, Delete: policy.DeleteUOM},
	{Resource: "warehouses", View: policy.ViewWarehouses, Create: policy.CreateWarehouse, Edit: policy.EditWarehouse, Delete: policy.DeleteWarehouse},
	{Resource: "locations", View: policy.ViewWarehouses, Create: policy.CreateLocation, Edit: policy.EditLocation, Delete: policy.DeleteLocation},
	{Resource: usersResource, View: policy.ViewUsers, Create: policy.CreateUser, Edit: policy.EditUser, Delete: policy.DeleteUser},
	{Resource: "stock-quants", View: policy.ViewWarehouses},
	{Resource: "movements", View: policy.ViewMoveHistory},
}

// Collections lists every proxied collection.
func Collections() []Collection {
	out := make([]Collection, len(collections))
	copy(out, collections)
	return out
}
