package models

import "time"

// Invoice type values
const (
	TypeIncoming = "Incoming"
	TypeOutgoing = "Outgoing"
)

// Invoice status values
const (
	StatusPaid    = "Paid"
	StatusUnpaid  = "Unpaid"
	StatusPartial = "Partial"
)

// Invoice is the full extraction/review/persistence record. The ID is the
// stored row id once the invoice has been persisted; zero means unsaved.
type Invoice struct {
	ID       int64         `json:"id,omitempty"`
	Invoice  InvoiceHeader `json:"invoice"`
	Supplier Party         `json:"supplier"`
	Customer Party         `json:"customer"`
	Items    []LineItem    `json:"items"`
}

// InvoiceHeader holds the scalar invoice fields. InvoiceNumber is the
// natural key used for de-duplication on save.
type InvoiceHeader struct {
	InvoiceNumber string  `json:"invoice_number"`
	Date          string  `json:"date"`
	DueDate       string  `json:"due_date,omitempty"`
	Type          string  `json:"type"`
	TotalAmount   float64 `json:"total_amount"`
	VATAmount     float64 `json:"vat_amount"`
	Status        string  `json:"status"`
	Notes         string  `json:"notes,omitempty"`
}

// Party is a supplier or customer. Name is the natural key, matched
// case-insensitively; every other field is optional.
type Party struct {
	ID            int64  `json:"id,omitempty"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	TaxID         string `json:"trn,omitempty"`
}

// LineItem is one row of an invoice's item list. It exists only as part of
// its invoice; ItemCode links it to a shared catalog item.
type LineItem struct {
	ID          int64   `json:"-"`
	ItemName    string  `json:"item_name"`
	ItemCode    string  `json:"item_code"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// CatalogItem is a shared catalog row, keyed by ItemCode. It is never
// duplicated: line items across invoices reference the same row.
type CatalogItem struct {
	ID                  int64     `json:"id"`
	ItemCode            string    `json:"item_code"`
	ItemName            string    `json:"item_name"`
	Description         string    `json:"description,omitempty"`
	CurrentSellingPrice float64   `json:"current_selling_price"`
	CreatedAt           time.Time `json:"created_at"`
}

// InvoiceSummary is a list-view row: header fields plus resolved party
// names, without line items.
type InvoiceSummary struct {
	ID            int64   `json:"id"`
	InvoiceNumber string  `json:"invoice_number"`
	Date          string  `json:"date"`
	Type          string  `json:"type"`
	TotalAmount   float64 `json:"total_amount"`
	VATAmount     float64 `json:"vat_amount"`
	Status        string  `json:"status"`
	SupplierName  string  `json:"supplier_name"`
	CustomerName  string  `json:"customer_name"`
}

// EmptyInvoice returns the degrade-to-empty skeleton used when extraction
// cannot produce a parseable result: all string fields "", numeric fields 0,
// and an empty (non-nil) item list, so the review UI always has a renderable
// shape.
func EmptyInvoice() *Invoice {
	return &Invoice{
		Items: []LineItem{},
	}
}
