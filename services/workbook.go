package services

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrUnreadableWorkbook is returned when the uploaded bytes cannot be decoded
// as a spreadsheet at all.
var ErrUnreadableWorkbook = eris.New("unreadable workbook")

// Sheet is one decoded worksheet. Rows[i] is sheet row i+1.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook holds the decoded worksheets in file order.
type Workbook struct {
	Format string
	Sheets []Sheet
}

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// csvDelimiters are tried in order when sniffing a delimited text file.
var csvDelimiters = []rune{',', ';', '\t', '|'}

// DecodeWorkbook decodes xlsx, xlsm, xls and delimited text files. The
// filename extension is a hint; unknown extensions are sniffed from the
// leading bytes.
func DecodeWorkbook(buf []byte, filename string) (*Workbook, error) {
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, eris.Wrap(ErrUnreadableWorkbook, "workbook: empty file")
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch format {
	case "xlsx", "xlsm", "xls", "csv", "tsv", "txt":
	default:
		format = sniffFormat(buf)
	}

	var (
		sheets []Sheet
		err    error
	)
	switch format {
	case "xlsx", "xlsm":
		sheets, err = decodeXLSX(buf)
	case "xls":
		sheets, err = decodeXLS(buf)
	default:
		format = "csv"
		sheets, err = decodeCSV(buf, filename)
	}
	if err != nil {
		return nil, err
	}
	return &Workbook{Format: format, Sheets: sheets}, nil
}

func sniffFormat(buf []byte) string {
	switch {
	case bytes.HasPrefix(buf, zipMagic):
		return "xlsx"
	case bytes.HasPrefix(buf, ole2Magic):
		return "xls"
	}
	return "csv"
}

func decodeXLSX(buf []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrapf(ErrUnreadableWorkbook, "workbook: open xlsx: %v", err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, eris.Wrapf(ErrUnreadableWorkbook, "workbook: read sheet %q: %v", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

// decodeXLS reads a BIFF workbook. The xls reader panics on some malformed
// files, so panics are turned into ErrUnreadableWorkbook.
func decodeXLS(buf []byte) (sheets []Sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			sheets = nil
			err = eris.Wrapf(ErrUnreadableWorkbook, "workbook: xls reader: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(buf), "utf-8")
	if err != nil {
		return nil, eris.Wrapf(ErrUnreadableWorkbook, "workbook: open xls: %v", err)
	}
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		rows := make([][]string, 0, int(sheet.MaxRow)+1)
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cols := make([]string, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cols[c] = row.Col(c)
			}
			rows = append(rows, cols)
		}
		sheets = append(sheets, Sheet{Name: sheet.Name, Rows: trimTrailingBlankRows(rows)})
	}
	if len(sheets) == 0 {
		return nil, eris.Wrap(ErrUnreadableWorkbook, "workbook: xls has no sheets")
	}
	return sheets, nil
}

// decodeCSV reads a delimited text export as a single sheet named after the
// file. Non-UTF-8 input is assumed to be Windows-1252, which is what Excel
// writes on most Windows installs.
func decodeCSV(buf []byte, filename string) ([]Sheet, error) {
	buf = bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(buf) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), buf)
		if err != nil {
			return nil, eris.Wrapf(ErrUnreadableWorkbook, "workbook: decode csv text: %v", err)
		}
		buf = decoded
	}
	if bytes.IndexByte(buf, 0) >= 0 {
		return nil, eris.Wrap(ErrUnreadableWorkbook, "workbook: binary content is not a spreadsheet")
	}

	reader := csv.NewReader(bytes.NewReader(buf))
	reader.Comma = sniffDelimiter(buf)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(ErrUnreadableWorkbook, "workbook: parse csv: %v", err)
		}
		rows = append(rows, rec)
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if name == "" || name == "." {
		name = "Sheet1"
	}
	return []Sheet{{Name: name, Rows: trimTrailingBlankRows(rows)}}, nil
}

// sniffDelimiter picks the candidate delimiter seen most across the first
// lines of the file.
func sniffDelimiter(buf []byte) rune {
	lines := strings.SplitN(string(buf), "\n", 21)
	if len(lines) > 20 {
		lines = lines[:20]
	}
	best, bestScore := ',', 0
	for _, d := range csvDelimiters {
		score := 0
		for _, l := range lines {
			if n := strings.Count(l, string(d)); n > 0 {
				score += n + 1
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func trimTrailingBlankRows(rows [][]string) [][]string {
	for len(rows) > 0 && isBlankCells(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func isBlankCells(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// headerCaptions returns the non-empty captions of a header row, for
// reporting.
func headerCaptions(cells []string) []string {
	var out []string
	for _, c := range cells {
		if c = collapseSpaces(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
