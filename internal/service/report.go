package service

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/atinyakov/MedKeeper/internal/repository"
)

// ReportLines is the text content of a test report.
func ReportLines(p models.Patient, t repository.Test) []string {
	lines := []string{
		"Diagnostic Test Report",
		"",
		fmt.Sprintf("Patient: %s (ID %d)", p.Name, p.ID),
		fmt.Sprintf("Date of birth: %s", p.DateOfBirth),
		fmt.Sprintf("Gender: %s", p.Gender),
		"",
		fmt.Sprintf("Test ID: %d", t.ID),
		fmt.Sprintf("Conducted: %s UTC", t.DateConducted.UTC().Format(time.DateTime)),
		fmt.Sprintf("Result: %s (%.2f%%)", t.Result, t.Confidence*100),
	}
	if len(t.Predictions) > 0 {
		lines = append(lines, "", "All predictions:")
		for _, pr := range t.Predictions {
			lines = append(lines, fmt.Sprintf("  %s: %.2f%%", pr.Label, pr.Confidence*100))
		}
	}
	if t.Comments != "" {
		lines = append(lines, "", "Comments: "+t.Comments)
	}
	return lines
}

// RenderPDF lays the lines out on a single A4 page in Helvetica.
func RenderPDF(lines []string) []byte {
	var content bytes.Buffer
	content.WriteString("BT\n/F1 12 Tf\n14 TL\n50 790 Td\n")
	for _, l := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", pdfEscape(l))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes()
}

var pdfEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", "", "\n", " ")

// pdfEscape escapes a literal string and replaces non-ASCII runes, which
// the standard Type1 font cannot show.
func pdfEscape(s string) string {
	s = pdfEscaper.Replace(s)
	return strings.Map(func(r rune) rune {
		if r > 126 || (r < 32 && r != '\t') {
			return '?'
		}
		return r
	}, s)
}
