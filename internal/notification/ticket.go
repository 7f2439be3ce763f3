package notification

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

// Ticket is what gets printed on an e-ticket
type Ticket struct {
	BookingID        int64
	BookingReference string
	EventTitle       string
	Venue            string
	StartDate        time.Time
	Category         domain.TicketCategory
	Quantity         int
	Total            decimal.Decimal
	ReceiptNumber    string
}

// NewTicket assembles a ticket; event may be nil when it could not be loaded
func NewTicket(event *domain.Event, b *domain.Booking, p *domain.Payment) *Ticket {
	t := &Ticket{
		BookingID:        b.ID,
		BookingReference: b.Reference(),
		Category:         b.Category,
		Quantity:         b.Quantity,
		Total:            b.TotalAmount,
	}
	if p != nil {
		t.ReceiptNumber = p.ReceiptNumber
	}
	if event != nil {
		t.EventTitle = event.Title
		t.Venue = event.Venue
		t.StartDate = event.StartDate
	}
	return t
}

// TicketRenderer renders one-page PDF e-tickets
type TicketRenderer struct {
	loc *time.Location
}

// NewTicketRenderer creates a renderer printing dates in loc
func NewTicketRenderer(loc *time.Location) *TicketRenderer {
	if loc == nil {
		loc = time.UTC
	}
	return &TicketRenderer{loc: loc}
}

// Render returns the PDF bytes of the ticket
func (r *TicketRenderer) Render(t *Ticket) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+t.BookingReference, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, orDash(t.EventTitle))
	pdf.Ln(10)

	date := "-"
	if !t.StartDate.IsZero() {
		date = t.StartDate.In(r.loc).Format("Mon 02 Jan 2006, 15:04")
	}

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range []string{
		"Date       : " + date,
		"Venue      : " + orDash(t.Venue),
		"Class      : " + string(t.Category),
		fmt.Sprintf("Quantity   : %d", t.Quantity),
		"Total      : KES " + t.Total.StringFixed(2),
		"Booking    : " + t.BookingReference,
		"Receipt    : " + orDash(t.ReceiptNumber),
	} {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Admits %d. Present this ticket at the entrance.", t.Quantity), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket %s: %w", t.BookingReference, err)
	}
	return buf.Bytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
