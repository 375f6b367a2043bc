package sources

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/opstriage/triage-engine/internal/models"
	"github.com/opstriage/triage-engine/internal/utils"
)

// The case archive is an .xlsx container: a zip of XML parts. We read the
// two parts that matter (the shared-string table and the first worksheet)
// directly rather than pulling in a spreadsheet library. Cell values of
// type "s" are indices into the shared-string table and must be resolved;
// inline strings and empty cells are handled per cell reference.
//
// Expected columns: A module, B channel, C symptom, D resolution, E outcome.
// The first row is a header.

const (
	sheetPart         = "xl/worksheets/sheet1.xml"
	sharedStringsPart = "xl/sharedStrings.xml"

	colModule     = 0
	colChannel    = 1
	colSymptom    = 2
	colResolution = 3
	colOutcome    = 4
)

// CaseArchiveIndex is the immutable in-memory index of historical cases.
// Built once from the packed container; rebuilt only on restart.
type CaseArchiveIndex struct {
	cases   []models.CaseRecord
	skipped int
}

// NewCaseArchiveIndex parses the packed archive at path. A malformed row is
// skipped and counted; a malformed container is a fatal load error since
// the system cannot diagnose without its case history.
func NewCaseArchiveIndex(path string, logger *slog.Logger) (*CaseArchiveIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, utils.NewAppError("casearchive.load", fmt.Sprintf("open archive %s", path), err)
	}
	defer reader.Close()

	sst, err := readSharedStrings(&reader.Reader)
	if err != nil {
		return nil, utils.NewAppError("casearchive.load", "read shared strings", err)
	}

	rows, err := readSheetRows(&reader.Reader)
	if err != nil {
		return nil, utils.NewAppError("casearchive.load", "read worksheet", err)
	}

	idx := &CaseArchiveIndex{}
	for i, row := range rows {
		if i == 0 {
			// Header row.
			continue
		}
		record, ok := buildRecord(row, sst)
		if !ok {
			idx.skipped++
			logger.Warn("skipping malformed case row", slog.Int("row", i+1))
			continue
		}
		idx.cases = append(idx.cases, record)
	}

	if len(idx.cases) == 0 {
		return nil, utils.NewAppError("casearchive.load", "archive contains no usable case rows", nil)
	}

	logger.Info("case archive loaded",
		slog.Int("cases", len(idx.cases)),
		slog.Int("skipped", idx.skipped))
	return idx, nil
}

// Cases exposes the loaded records. Callers must not modify the slice.
func (idx *CaseArchiveIndex) Cases() []models.CaseRecord {
	return idx.cases
}

// SkippedRows reports how many malformed rows were dropped during load.
func (idx *CaseArchiveIndex) SkippedRows() int {
	return idx.skipped
}

// sheetRow is one worksheet row as sparse cells keyed by column index.
type sheetRow map[int]cellValue

type cellValue struct {
	raw    string
	shared bool
	inline bool
}

type sstXML struct {
	Items []sstItem `xml:"si"`
}

type sstItem struct {
	Text string   `xml:"t"`
	Runs []sstRun `xml:"r"`
}

type sstRun struct {
	Text string `xml:"t"`
}

type worksheetXML struct {
	Rows []worksheetRow `xml:"sheetData>row"`
}

type worksheetRow struct {
	Cells []worksheetCell `xml:"c"`
}

type worksheetCell struct {
	Ref    string     `xml:"r,attr"`
	Type   string     `xml:"t,attr"`
	Value  string     `xml:"v"`
	Inline *inlineStr `xml:"is"`
}

type inlineStr struct {
	Text string `xml:"t"`
}

func readSharedStrings(r *zip.Reader) ([]string, error) {
	data, err := readPart(r, sharedStringsPart)
	if err != nil {
		// The table is legitimately absent when every cell is inline.
		return nil, nil
	}

	var sst sstXML
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil, fmt.Errorf("parse %s: %w", sharedStringsPart, err)
	}

	table := make([]string, 0, len(sst.Items))
	for _, item := range sst.Items {
		if len(item.Runs) > 0 {
			// Rich-text entries split the value across runs.
			var b strings.Builder
			for _, run := range item.Runs {
				b.WriteString(run.Text)
			}
			table = append(table, b.String())
			continue
		}
		table = append(table, item.Text)
	}
	return table, nil
}

func readSheetRows(r *zip.Reader) ([]sheetRow, error) {
	data, err := readPart(r, sheetPart)
	if err != nil {
		return nil, fmt.Errorf("missing worksheet part %s: %w", sheetPart, err)
	}

	var sheet worksheetXML
	if err := xml.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("parse %s: %w", sheetPart, err)
	}

	rows := make([]sheetRow, 0, len(sheet.Rows))
	for _, raw := range sheet.Rows {
		row := make(sheetRow, len(raw.Cells))
		for _, cell := range raw.Cells {
			col, ok := columnIndex(cell.Ref)
			if !ok {
				continue
			}
			value := cellValue{raw: cell.Value, shared: cell.Type == "s", inline: cell.Type == "inlineStr"}
			if value.inline && cell.Inline != nil {
				value.raw = cell.Inline.Text
			}
			row[col] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readPart(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("part %s not found", name)
}

// columnIndex converts a cell reference like "C12" into a zero-based
// column index. Returns false for references without a column letter.
func columnIndex(ref string) (int, bool) {
	letters := 0
	for letters < len(ref) && ref[letters] >= 'A' && ref[letters] <= 'Z' {
		letters++
	}
	if letters == 0 {
		return 0, false
	}
	col := 0
	for i := 0; i < letters; i++ {
		col = col*26 + int(ref[i]-'A') + 1
	}
	return col - 1, true
}

// buildRecord resolves a sparse row into a CaseRecord. A row is malformed
// when a shared-string reference cannot be resolved or when it carries
// neither module nor symptom text.
func buildRecord(row sheetRow, table []string) (models.CaseRecord, bool) {
	resolve := func(col int) (string, bool) {
		cell, ok := row[col]
		if !ok {
			// Missing columns are tolerated as empty values.
			return "", true
		}
		if cell.shared {
			idx, err := strconv.Atoi(strings.TrimSpace(cell.raw))
			if err != nil || idx < 0 || idx >= len(table) {
				return "", false
			}
			return table[idx], true
		}
		return cell.raw, true
	}

	var record models.CaseRecord
	fields := []struct {
		col  int
		dest *string
	}{
		{colModule, &record.Module},
		{colChannel, &record.Channel},
		{colSymptom, &record.Symptom},
		{colResolution, &record.Resolution},
		{colOutcome, &record.Outcome},
	}
	for _, f := range fields {
		value, ok := resolve(f.col)
		if !ok {
			return models.CaseRecord{}, false
		}
		*f.dest = strings.TrimSpace(value)
	}

	if record.Module == "" && record.Symptom == "" {
		return models.CaseRecord{}, false
	}
	return record, true
}
