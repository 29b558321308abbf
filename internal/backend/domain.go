// Package backend talks to the inventory REST API that owns persistence and
// performs the authoritative validation of every stock movement.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/stock"
)

// User mirrors the backend user profile.
type User struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      policy.Role `json:"role"`
	Phone     string      `json:"phone,omitempty"`
	IsActive  bool        `json:"is_active"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Product is the stock-relevant subset of a product record.
type Product struct {
	ID              int64          `json:"id"`
	SKU             string         `json:"sku"`
	Name            string         `json:"name"`
	UOMAbbreviation string         `json:"uom_abbreviation"`
	TotalStock      stock.Quantity `json:"total_stock"`
	MinStockLevel   stock.Quantity `json:"min_stock_level"`
	IsActive        bool           `json:"is_active"`
}

// Movement is one row of the move history.
type Movement struct {
	ID                  int64          `json:"id"`
	MovementType        string         `json:"movement_type"`
	ProductSKU          string         `json:"product_sku"`
	ProductName         string         `json:"product_name"`
	Quantity            stock.Quantity `json:"quantity"`
	SourceLocation      *string        `json:"source_location"`
	DestinationLocation *string        `json:"destination_location"`
	DocumentReference   string         `json:"document_reference"`
	CreatedAt           string         `json:"created_at"`
	CreatedBy           string         `json:"created_by"`
}

// Errors returned by the client. Each wraps the matching httpx sentinel.
var (
	ErrUnauthorized = fmt.Errorf("backend: %w", httpx.ErrUnauthorized)
	ErrForbidden    = fmt.Errorf("backend: %w", httpx.ErrForbidden)
	ErrNotFound     = fmt.Errorf("backend: %w", httpx.ErrNotFound)
	ErrUnavailable  = fmt.Errorf("backend: %w", httpx.ErrUnavailable)
)

// RejectedError carries a 4xx rejection from the backend, usually its own
// stock or field validation failing.
type RejectedError struct {
	Status int
	Body   json.RawMessage
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend: request rejected with status %d", e.Status)
}

func (e *RejectedError) Unwrap() error {
	if e.Status == http.StatusConflict {
		return httpx.ErrConflict
	}
	return httpx.ErrValidation
}

// AsRejected extracts a RejectedError from err.
func AsRejected(err error) (*RejectedError, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
