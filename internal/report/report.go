// Package report renders the manager's submission listing as a printable PDF.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"contest-portal/internal/dashboard"
)

// Options controls report metadata.
type Options struct {
	Title       string
	GeneratedAt time.Time
}

// WritePDF writes one table row per dashboard row, in view order, to w.
func WritePDF(w io.Writer, v dashboard.View, opts Options) error {
	if opts.Title == "" {
		opts.Title = "Contest submissions"
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("{nb}")
	pdf.SetTitle(opts.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	marginL, _, marginR, _ := pdf.GetMargins()
	contentW := pageW - marginL - marginR

	cols := []struct {
		label string
		width float64
		align string
	}{
		{"#", 0.05, "R"},
		{"Title", 0.33, "L"},
		{"Team", 0.08, "R"},
		{"Submitted by", 0.26, "L"},
		{"Created", 0.16, "L"},
		{"External id", 0.12, "L"},
	}

	header := func() {
		pdf.SetFillColor(30, 30, 30)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 9)
		for i, c := range cols {
			ln := 0
			if i == len(cols)-1 {
				ln = 1
			}
			pdf.CellFormat(contentW*c.width, 7, c.label, "1", ln, "C", true, 0, "")
		}
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(contentW*0.7, 9, tr(opts.Title), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(contentW*0.3, 9, "Page "+fmt.Sprint(pdf.PageNo())+" of {nb}", "", 1, "R", false, 0, "")
		header()
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "", 9)
	for i, r := range v.Rows {
		if i%2 == 0 {
			pdf.SetFillColor(250, 250, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		cells := []string{
			fmt.Sprint(i + 1),
			tr(r.Title),
			fmt.Sprint(r.TeamCount),
			tr(r.DisplayName),
			r.CreatedAt.UTC().Format("2006-01-02 15:04"),
			tr(r.ExternalID),
		}
		for j, c := range cols {
			ln := 0
			if j == len(cols)-1 {
				ln = 1
			}
			pdf.CellFormat(contentW*c.width, 6.5, cells[j], "1", ln, c.align, true, 0, "")
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8.5)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("%d submissions, %d participants. Generated %s UTC.",
		v.Stats.Submissions, v.Stats.Participants, opts.GeneratedAt.UTC().Format("2006-01-02 15:04")),
		"", 1, "L", false, 0, "")

	return pdf.Output(w)
}
