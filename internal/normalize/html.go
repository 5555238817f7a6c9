package normalize

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseHTML extracts the first <table> in the document.
//
// The header row is the first <tr>; its cells may be <th> or <td>. Every
// following <tr> becomes a data row. Rows whose cell count differs from the
// header follow the same lossy policy as CSV.
func parseHTML(name string, raw []byte, opt Options) (*Table, error) {
	text := decodeText(raw)
	if strings.TrimSpace(text) == "" {
		return &Table{Name: name}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, ErrNoTableFound
	}

	trs := tbl.Find("tr")
	if trs.Length() == 0 {
		return &Table{Name: name}, nil
	}

	header := rowCells(trs.First())

	var (
		rows     [][]string
		dropped  int
		parseErr error
	)
	trs.Slice(1, trs.Length()).Each(func(i int, tr *goquery.Selection) {
		if parseErr != nil {
			return
		}
		cells := rowCells(tr)
		if len(cells) != len(header) {
			if !opt.SkipMalformedRows {
				parseErr = fmt.Errorf("html: row %d: got %d cells, want %d", i+2, len(cells), len(header))
				return
			}
			dropped++
			return
		}
		rows = append(rows, cells)
	})
	if parseErr != nil {
		return nil, parseErr
	}

	t := buildTable(name, header, rows)
	t.Dropped = dropped
	return t, nil
}

func rowCells(tr *goquery.Selection) []string {
	var out []string
	tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(cell.Text()))
	})
	return out
}
