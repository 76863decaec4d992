package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the invoice lifecycle states.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusInProcess Status = "In Process"
	StatusHold      Status = "Hold"
	StatusCancelled Status = "Cancelled"
	StatusCompleted Status = "Completed"
)

var statusOrder = []Status{StatusPending, StatusInProcess, StatusHold, StatusCompleted, StatusCancelled}

// Statuses returns every status in board display order.
func Statuses() []Status {
	out := make([]Status, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	for _, candidate := range statusOrder {
		if s == candidate {
			return true
		}
	}
	return false
}

// Slug returns a URL and CSS friendly token for the status.
func (s Status) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "-")
}

// ParseStatus accepts the display value or its slug, case-insensitively.
func ParseStatus(value string) (Status, error) {
	value = strings.TrimSpace(value)
	for _, candidate := range statusOrder {
		if strings.EqualFold(value, string(candidate)) || strings.EqualFold(value, candidate.Slug()) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invoice: unknown status %q", value)
}

// Item is a single invoice line.
type Item struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Color       string          `json:"color,omitempty"`
}

// Invoice is the persisted invoice entity. Totals are derived, see TotalAmount.
type Invoice struct {
	ID              string          `json:"id"`
	InvoiceNumber   string          `json:"invoiceNumber"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail,omitempty"`
	CustomerAddress string          `json:"customerAddress,omitempty"`
	InvoiceDate     Date            `json:"invoiceDate"`
	DueDate         Date            `json:"dueDate"`
	Items           []Item          `json:"items"`
	Notes           string          `json:"notes,omitempty"`
	PaidAmount      decimal.Decimal `json:"paidAmount"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate items freely.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.Items != nil {
		out.Items = make([]Item, len(inv.Items))
		copy(out.Items, inv.Items)
	}
	return out
}

// Input is a candidate invoice payload as submitted by forms or the API.
type Input struct {
	InvoiceNumber   string          `json:"invoiceNumber" validate:"required"`
	CustomerName    string          `json:"customerName" validate:"required"`
	CustomerEmail   string          `json:"customerEmail" validate:"omitempty,email"`
	CustomerAddress string          `json:"customerAddress"`
	InvoiceDate     string          `json:"invoiceDate" validate:"required,calendar_date"`
	DueDate         string          `json:"dueDate" validate:"required,calendar_date"`
	Items           []ItemInput     `json:"items" validate:"required,min=1,dive"`
	Notes           string          `json:"notes"`
	PaidAmount      decimal.Decimal `json:"paidAmount" validate:"decimal_gte=0"`
	Status          Status          `json:"status" validate:"required,invoice_status"`
}

// ItemInput is a candidate line item.
type ItemInput struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"decimal_gte=1"`
	Price       decimal.Decimal `json:"price" validate:"decimal_gte=0.01"`
	Color       string          `json:"color"`
}

// Patch carries a partial update; nil fields keep their current value.
type Patch struct {
	InvoiceNumber   *string          `json:"invoiceNumber"`
	CustomerName    *string          `json:"customerName"`
	CustomerEmail   *string          `json:"customerEmail"`
	CustomerAddress *string          `json:"customerAddress"`
	InvoiceDate     *string          `json:"invoiceDate"`
	DueDate         *string          `json:"dueDate"`
	Items           *[]ItemInput     `json:"items"`
	Notes           *string          `json:"notes"`
	PaidAmount      *decimal.Decimal `json:"paidAmount"`
	Status          *Status          `json:"status"`
}

// Filter narrows invoice listings.
type Filter struct {
	CustomerName string
	Status       Status
	DueFrom      Date
	DueTo        Date
}

// InputFromInvoice converts a stored invoice back into an editable payload.
func InputFromInvoice(inv Invoice) Input {
	items := make([]ItemInput, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, ItemInput(item))
	}
	return Input{
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerName:    inv.CustomerName,
		CustomerEmail:   inv.CustomerEmail,
		CustomerAddress: inv.CustomerAddress,
		InvoiceDate:     inv.InvoiceDate.String(),
		DueDate:         inv.DueDate.String(),
		Items:           items,
		Notes:           inv.Notes,
		PaidAmount:      inv.PaidAmount,
		Status:          inv.Status,
	}
}

// Apply overlays the patch onto an input.
func (p Patch) Apply(in Input) Input {
	if p.InvoiceNumber != nil {
		in.InvoiceNumber = *p.InvoiceNumber
	}
	if p.CustomerName != nil {
		in.CustomerName = *p.CustomerName
	}
	if p.CustomerEmail != nil {
		in.CustomerEmail = *p.CustomerEmail
	}
	if p.CustomerAddress != nil {
		in.CustomerAddress = *p.CustomerAddress
	}
	if p.InvoiceDate != nil {
		in.InvoiceDate = *p.InvoiceDate
	}
	if p.DueDate != nil {
		in.DueDate = *p.DueDate
	}
	if p.Items != nil {
		in.Items = *p.Items
	}
	if p.Notes != nil {
		in.Notes = *p.Notes
	}
	if p.PaidAmount != nil {
		in.PaidAmount = *p.PaidAmount
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	return in
}

// normalize trims the free-text fields so a blank value counts as missing.
func (in Input) normalize() Input {
	in.InvoiceNumber = strings.TrimSpace(in.InvoiceNumber)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.CustomerAddress = strings.TrimSpace(in.CustomerAddress)
	in.InvoiceDate = strings.TrimSpace(in.InvoiceDate)
	in.DueDate = strings.TrimSpace(in.DueDate)
	if in.Items != nil {
		items := make([]ItemInput, len(in.Items))
		for i, item := range in.Items {
			item.Description = strings.TrimSpace(item.Description)
			items[i] = item
		}
		in.Items = items
	}
	return in
}

// build converts a validated input into entity fields. Dates are assumed valid.
func (in Input) build() Invoice {
	invoiceDate, _ := ParseDate(in.InvoiceDate)
	dueDate, _ := ParseDate(in.DueDate)
	items := make([]Item, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, Item{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			Price:       item.Price,
			Color:       item.Color,
		})
	}
	return Invoice{
		InvoiceNumber:   strings.TrimSpace(in.InvoiceNumber),
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		CustomerAddress: strings.TrimSpace(in.CustomerAddress),
		InvoiceDate:     invoiceDate,
		DueDate:         dueDate,
		Items:           items,
		Notes:           in.Notes,
		PaidAmount:      in.PaidAmount,
		Status:          in.Status,
	}
}
