package pipeline

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"loadhunt/internal"
)

// attachmentText renders PDF and spreadsheet attachments as plain text so
// rate sheets feed the same strategies as the body.
func attachmentText(attachments []internal.Attachment) (string, []error) {
	var parts []string
	var errs []error
	for _, a := range attachments {
		var (
			text string
			err  error
		)
		switch attachmentKind(a) {
		case "pdf":
			text, err = pdfText(a.Content)
		case "xlsx":
			text, err = xlsxText(a.Content)
		default:
			continue
		}
		if err != nil {
			errs = append(errs, eris.Wrapf(err, "attachment %s", a.FileName))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), errs
}

func attachmentKind(a internal.Attachment) string {
	name := strings.ToLower(a.FileName)
	ct := strings.ToLower(a.ContentType)
	switch {
	case strings.HasSuffix(name, ".pdf") || strings.Contains(ct, "application/pdf"):
		return "pdf"
	case strings.HasSuffix(name, ".xlsx") || strings.Contains(ct, "spreadsheetml"):
		return "xlsx"
	default:
		return ""
	}
}

func pdfText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", eris.Wrap(err, "open pdf")
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, splitLines(text)...)
	}
	return strings.Join(lines, "\n"), nil
}

// xlsxText writes each row as "cell: cell" when it has two cells, so label
// and value columns read like a labelled body line.
func xlsxText(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", eris.Wrap(err, "open xlsx")
	}
	defer f.Close()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = normalizeSpaces(c); c != "" {
					cells = append(cells, c)
				}
			}
			switch len(cells) {
			case 0:
			case 2:
				lines = append(lines, strings.TrimRight(cells[0], ":")+": "+cells[1])
			default:
				lines = append(lines, strings.Join(cells, " | "))
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
