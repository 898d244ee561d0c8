package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/rutaviva/booking-backend/internal/models"
)

// VoucherService renders a printable PDF voucher for a confirmed
// reservation
type VoucherService struct{}

// NewVoucherService creates a new VoucherService
func NewVoucherService() *VoucherService {
	return &VoucherService{}
}

// Generate renders the voucher PDF. Callers must only pass confirmed or
// completed reservations.
func (s *VoucherService) Generate(detail *models.ReservationDetail) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking Voucher "+detail.Reference, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 12, "Booking Voucher")
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 11)
	rows := [][2]string{
		{"Reference", detail.Reference},
		{"Purchase", detail.PurchaseReference},
		{"Trip", detail.TripName},
		{"Departure", detail.TripDateStartsAt.Format("Mon, 02 Jan 2006 15:04 MST")},
		{"Return", detail.TripDateEndsAt.Format("Mon, 02 Jan 2006 15:04 MST")},
		{"Seats", fmt.Sprintf("%d", detail.Quantity)},
		{"Unit price", fmt.Sprintf("%.2f", detail.UnitPrice)},
		{"Total", fmt.Sprintf("%.2f", detail.Subtotal)},
		{"Status", string(detail.State)},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, row[1], "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, "Present this voucher with photo ID at departure.")
	pdf.Ln(6)
	pdf.Cell(0, 6, "Generated "+time.Now().UTC().Format("2006-01-02 15:04 UTC"))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render voucher: %w", err)
	}
	return buf.Bytes(), nil
}
