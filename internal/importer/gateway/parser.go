package gateway

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	enc "github.com/pontocomjunior2/startt-voice-studio-sub000/internal/encoding"
)

var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// Parser reads payment gateway sales exports and produces grant params, one
// per approved sale. The layout is detected by matching column headers
// against known profiles.
type Parser struct {
	loc *time.Location
}

// NewParser returns a parser reading dates in loc. A nil loc means UTC.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}

	return &Parser{loc: loc}
}

func (p *Parser) Parse(r io.Reader) ([]credit.GrantParams, error) {
	utf8r, charset, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	slog.Debug("parsing gateway export", "charset", charset)

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	profile, cols, headerIdx := detectProfile(rows)
	if profile == nil {
		return nil, fmt.Errorf("no matching gateway export format found: expected columns for pacotes or avulso")
	}

	return p.parseRows(profile, cols, rows[headerIdx+1:], headerIdx)
}

// colIndex maps column names to their index in the row.
type colIndex map[string]int

func (c colIndex) index(name string) int {
	if name == "" {
		return -1
	}

	if i, ok := c[name]; ok {
		return i
	}

	return -1
}

// detectProfile scans rows for a header matching a known profile and returns
// it with the column index and the header row index.
func detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.TrimSpace(cell)
			if name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

// parseRows turns data rows into grants. headerRowNum is the 0-based index of
// the header in the file, used for error messages.
func (p *Parser) parseRows(prof *Profile, cols colIndex, rows [][]string, headerRowNum int) ([]credit.GrantParams, error) {
	statusIdx := cols.index(prof.StatusCol)
	validityIdx := cols.index(prof.ValidityCol)

	var grants []credit.GrantParams

	for i, row := range rows {
		rowNum := headerRowNum + i + 2 // 1-based, skipping header

		date, ok := p.parseDate(cellValue(row, cols[prof.DateCol]))
		if !ok {
			continue
		}

		if statusIdx >= 0 && !approved[strings.ToLower(cellValue(row, statusIdx))] {
			continue
		}

		ref := cellValue(row, cols[prof.RefCol])
		if ref == "" {
			return nil, fmt.Errorf("row %d: missing payment reference", rowNum)
		}

		accountID, err := uuid.Parse(cellValue(row, cols[prof.AccountCol]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid account id: %w", rowNum, err)
		}

		recording, ai, err := parseCredits(prof, cols, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		if recording == 0 && ai == 0 {
			continue
		}

		var paid int64
		if s := cellValue(row, cols[prof.AmountCol]); s != "" {
			paid, err = parseBRLAmount(s)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid amount %q: %w", rowNum, s, err)
			}
		}

		g := credit.GrantParams{
			AccountID:       accountID,
			Recording:       recording,
			AI:              ai,
			AddedAt:         new(date),
			Reference:       ref,
			AmountPaidCents: paid,
			Observation:     "gateway import (" + prof.Name + ")",
		}

		if s := cellValue(row, validityIdx); s != "" {
			days, err := strconv.Atoi(s)
			if err != nil || days <= 0 {
				return nil, fmt.Errorf("row %d: invalid validity %q", rowNum, s)
			}

			g.ExpiresAt = new(date.AddDate(0, 0, days))
		}

		grants = append(grants, g)
	}

	return grants, nil
}

// parseDate returns false for empty or unparseable cells (footer rows etc).
func (p *Parser) parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// parseCredits extracts recording and AI quantities according to the
// profile's credit mode.
func parseCredits(p *Profile, cols colIndex, row []string) (recording, ai int64, err error) {
	switch p.CreditMode {
	case creditsSplit:
		if recording, err = parseQuantity(cellValue(row, cols[p.RecordCol])); err != nil {
			return 0, 0, err
		}

		if ai, err = parseQuantity(cellValue(row, cols[p.AICol])); err != nil {
			return 0, 0, err
		}

		return recording, ai, nil
	case creditsSingle:
		n, err := parseQuantity(cellValue(row, cols[p.CreditsCol]))
		if err != nil {
			return 0, 0, err
		}

		kind, err := parseKind(cellValue(row, cols[p.KindCol]))
		if err != nil {
			return 0, 0, err
		}

		if kind == credit.KindAI {
			return 0, n, nil
		}

		return n, 0, nil
	}

	return 0, 0, nil
}

func parseQuantity(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid credit quantity %q", s)
	}

	return n, nil
}

// parseKind accepts the gateway's product labels as well as the kind names.
func parseKind(s string) (credit.Kind, error) {
	switch strings.ToLower(s) {
	case "gravação", "gravacao", "locução", "locucao":
		return credit.KindRecording, nil
	case "ia", "ai":
		return credit.KindAI, nil
	}

	k, err := credit.ParseKind(strings.ToLower(s))
	if err != nil {
		return "", fmt.Errorf("unknown credit kind %q", s)
	}

	return k, nil
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
