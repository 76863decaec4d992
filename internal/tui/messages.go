package tui

import "github.com/ledgerlane/invoicer/internal/invoice"

// loadedMsg carries a board listing tagged with its request ticket.
type loadedMsg struct {
	ticket   uint64
	invoices []invoice.Invoice
	err      error
}

// movedMsg reports the outcome of one status move.
type movedMsg struct {
	id     string
	number string
	to     invoice.Status
	err    error
}
