// Package board groups invoices into status columns and applies optimistic
// status moves with rollback.
package board

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ledgerlane/invoicer/internal/invoice"
)

// Bucket is a board column. Every status is a bucket; Due Today is an extra
// overlay that is never persisted.
type Bucket string

// BucketDueToday collects invoices whose due date is today, whatever their status.
const BucketDueToday Bucket = "Due Today"

var bucketOrder = func() []Bucket {
	out := []Bucket{BucketDueToday}
	for _, s := range invoice.Statuses() {
		out = append(out, Bucket(s))
	}
	return out
}()

// Buckets returns every bucket in display order.
func Buckets() []Bucket {
	out := make([]Bucket, len(bucketOrder))
	copy(out, bucketOrder)
	return out
}

// ParseBucket accepts a bucket name or slug.
func ParseBucket(value string) (Bucket, error) {
	value = strings.TrimSpace(value)
	for _, b := range bucketOrder {
		if strings.EqualFold(value, string(b)) || strings.EqualFold(value, b.Slug()) {
			return b, nil
		}
	}
	return "", fmt.Errorf("board: unknown bucket %q", value)
}

// Status returns the persisted status behind the bucket. Due Today has none.
func (b Bucket) Status() (invoice.Status, bool) {
	s := invoice.Status(b)
	return s, s.Valid()
}

// Slug is used for CSS classes and form values.
func (b Bucket) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(b)), " ", "-")
}

// Droppable reports whether invoices may be moved into the bucket.
func (b Bucket) Droppable() bool {
	_, ok := b.Status()
	return ok
}

// BucketFor places inv: Due Today when it is due today, its status otherwise.
func BucketFor(inv invoice.Invoice, today invoice.Date) Bucket {
	if today.Valid() && inv.DueDate.Equal(today) {
		return BucketDueToday
	}
	return Bucket(inv.Status)
}

// Column is one bucket with its invoices in display order.
type Column struct {
	Bucket   Bucket            `json:"bucket"`
	Invoices []invoice.Invoice `json:"invoices"`
}

// Group assigns every invoice to exactly one bucket. All buckets are
// returned, empty ones included. Invoices are ordered by invoice date,
// newest first, with missing dates last.
func Group(invoices []invoice.Invoice, today invoice.Date) []Column {
	index := make(map[Bucket]int, len(bucketOrder))
	columns := make([]Column, len(bucketOrder))
	for i, b := range bucketOrder {
		index[b] = i
		columns[i] = Column{Bucket: b, Invoices: []invoice.Invoice{}}
	}
	for _, inv := range invoices {
		i, ok := index[BucketFor(inv, today)]
		if !ok {
			// Unknown stored status; keep it visible rather than drop it.
			i = index[Bucket(invoice.StatusPending)]
		}
		columns[i].Invoices = append(columns[i].Invoices, inv)
	}
	for i := range columns {
		sortNewestFirst(columns[i].Invoices)
	}
	return columns
}

func sortNewestFirst(invoices []invoice.Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		a, b := invoices[i], invoices[j]
		switch {
		case a.InvoiceDate.Valid() != b.InvoiceDate.Valid():
			return a.InvoiceDate.Valid()
		case !a.InvoiceDate.Equal(b.InvoiceDate):
			return b.InvoiceDate.Before(a.InvoiceDate)
		default:
			return a.InvoiceNumber < b.InvoiceNumber
		}
	})
}

// Today is the calendar day of now in loc.
func Today(now time.Time, loc *time.Location) invoice.Date {
	if loc == nil {
		loc = time.Local
	}
	return invoice.DateOf(now.In(loc))
}
