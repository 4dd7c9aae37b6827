package importer

import (
	"strings"
	"unicode"
)

// Column keys after header normalization
const (
	ColName       = "name"
	ColEmail      = "email"
	ColPhone      = "phone"
	ColOccupation = "occupation"
	ColAddress    = "address"
	ColCompany    = "company"
	ColPosition   = "position"
	ColTicketType = "ticket_type"
	ColIsPaid     = "is_paid"
)

// Row is one data row keyed by normalized header. Number is the spreadsheet
// row number: the header is row 1, the first data row is row 2.
type Row struct {
	Number int
	Values map[string]string
	// ReadErr is set when the source could not parse the line; the row is rejected with it
	ReadErr string
}

// Get returns the trimmed value of a column, "" when absent
func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

// optional maps blank to nil
func (r Row) optional(column string) *string {
	v := r.Get(column)
	if v == "" {
		return nil
	}
	return &v
}

// NormalizeHeader turns a heading such as " Ticket Type " or "Is-Paid" into ticket_type / is_paid
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff") // UTF-8 BOM on the first CSV cell
	h = strings.ToLower(strings.TrimSpace(h))

	var b strings.Builder
	pendingSep := false
	for _, r := range h {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

// ParsePaid is true iff the raw value is "yes" or "true" (any case) or exactly "1"
func ParsePaid(raw string) bool {
	if raw == "1" {
		return true
	}
	switch strings.ToLower(raw) {
	case "yes", "true":
		return true
	}
	return false
}
