package ticket

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		BookingID:   41,
		UserID:      1,
		UserName:    "Ada",
		UserEmail:   "ada@example.com",
		ConcertID:   7,
		ConcertName: "Static Pulse Live",
		Venue:       "River Arena",
		StartsAt:    time.Date(2026, 11, 5, 20, 0, 0, 0, time.UTC),
		Tickets:     2,
	}
}

func TestPayload(t *testing.T) {
	t.Parallel()

	got := Payload(sampleSnapshot())
	want := "BookingID:41\nUser:Ada\nConcert:Static Pulse Live\nTickets:2"
	if got != want {
		t.Fatalf("payload mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestRenderer_Render(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	art, err := r.Render(sampleSnapshot())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	if !bytes.HasPrefix(art.QRPNG, pngMagic) {
		t.Fatalf("QR artifact is not a PNG")
	}
	if !bytes.HasPrefix(art.PDF, []byte("%PDF")) {
		t.Fatalf("ticket artifact is not a PDF")
	}

	// Regeneration from the same snapshot must stay possible and keep
	// producing valid artifacts: the download endpoint re-renders on
	// every request.
	again, err := r.Render(sampleSnapshot())
	if err != nil {
		t.Fatalf("re-render: %v", err)
	}
	if !bytes.Equal(art.QRPNG, again.QRPNG) {
		t.Fatalf("same snapshot produced different QR codes")
	}
}

func TestRenderer_CleansScratchFiles(t *testing.T) {
	snap := sampleSnapshot()
	prefix := fmt.Sprintf("ticket-%d-", snap.BookingID)

	if _, err := NewRenderer().Render(snap); err != nil {
		t.Fatalf("render: %v", err)
	}

	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			t.Fatalf("scratch directory left behind: %s", filepath.Join(os.TempDir(), e.Name()))
		}
	}
}
