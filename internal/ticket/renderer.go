// Package ticket renders booking facts into the ticket artifact: a QR
// payload and a PDF embedding it. The renderer knows nothing about
// inventory or persistence; it is a pure function of the snapshot it is
// given plus a scratch directory that exists only for the duration of
// one Render call.
package ticket

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// Snapshot carries everything the renderer and the notification
// dispatcher need about a committed booking. It is captured at
// reservation time so issuance never re-reads mutable state.
type Snapshot struct {
	BookingID   uint64
	UserID      uint64
	UserName    string
	UserEmail   string
	ConcertID   uint64
	ConcertName string
	Venue       string
	StartsAt    time.Time
	Tickets     uint32
}

// Artifact is the rendered output. QRPNG is the standalone QR image;
// PDF is the printable ticket with the QR embedded.
type Artifact struct {
	QRPNG []byte
	PDF   []byte
}

const qrImageSize = 256 // pixels, also the size hint inside the PDF

// Payload builds the plain structured text encoded into the QR code.
// The format mirrors what venue staff expect to see on a scan: booking
// id, who booked, which concert and how many tickets.
func Payload(s Snapshot) string {
	return fmt.Sprintf("BookingID:%d\nUser:%s\nConcert:%s\nTickets:%d",
		s.BookingID, s.UserName, s.ConcertName, s.Tickets)
}

// Renderer produces ticket artifacts. A single Renderer is safe for
// concurrent use: each Render call works in its own scratch directory
// named after the booking plus a random suffix, so two issuance
// attempts for the same booking can never collide.
type Renderer struct{}

// NewRenderer returns a Renderer.
func NewRenderer() *Renderer { return &Renderer{} }

// Render produces the QR image and the ticket PDF for a snapshot. All
// scratch files are removed before Render returns, on success and on
// every error path.
func (r *Renderer) Render(s Snapshot) (*Artifact, error) {
	png, err := qrcode.Encode(Payload(s), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	dir, err := os.MkdirTemp("", fmt.Sprintf("ticket-%d-%s-", s.BookingID, uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	qrPath := filepath.Join(dir, "qr.png")
	if err := os.WriteFile(qrPath, png, 0o644); err != nil {
		return nil, fmt.Errorf("write qr image: %w", err)
	}

	pdf, err := buildPDF(s, qrPath)
	if err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return &Artifact{QRPNG: png, PDF: pdf}, nil
}

// buildPDF lays out the printable ticket: a centered title, the
// human-readable booking fields and the QR image beneath them.
func buildPDF(s Snapshot, qrPath string) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.CellFormat(0, 12, "Concert Ticket", "", 1, "C", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "", 12)
	line := func(label, value string) {
		doc.CellFormat(0, 8, fmt.Sprintf("%s: %s", label, value), "", 1, "L", false, 0, "")
	}
	line("Booking ID", fmt.Sprintf("%d", s.BookingID))
	line("Concert", s.ConcertName)
	line("Date & Time", s.StartsAt.UTC().Format("Mon, 02 Jan 2006 15:04 MST"))
	line("Venue", s.Venue)
	line("Booked By", s.UserName)
	line("Tickets", fmt.Sprintf("%d", s.Tickets))
	doc.Ln(6)

	doc.CellFormat(0, 8, "Scan this QR code at the entrance:", "", 1, "C", false, 0, "")
	pageW, _ := doc.GetPageSize()
	const qrMM = 60.0
	doc.ImageOptions(qrPath, (pageW-qrMM)/2, doc.GetY(), qrMM, qrMM, false,
		gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
