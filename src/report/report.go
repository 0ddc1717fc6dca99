// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package report writes check results to an XLSX workbook.
//
// The workbook has a Summary sheet with one row per domain and a Details
// sheet with one row per sub-check, including the remediation feedback.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/felixrowen/mail-checker/src/mailcheck"
	"github.com/felixrowen/mail-checker/src/store"
)

// Sheet names.
const (
	SummarySheet = "Summary"
	DetailsSheet = "Details"
)

var (
	summaryHeader = []any{"Domain", "SPF", "DKIM", "DMARC", "MX", "SPF Lookups", "DMARC Policy", "Checked At", "Error"}
	detailsHeader = []any{"Domain", "Check", "Status", "Message", "Problem", "Fix"}
)

// Row is one checked domain.
type Row struct {
	Domain    string
	Result    mailcheck.CheckResultData
	CheckedAt time.Time
	Error     string
}

// FromReports converts the output of [mailcheck.Checker.Check].
func FromReports(reports []mailcheck.Report, checkedAt time.Time) []Row {
	rows := make([]Row, 0, len(reports))
	for _, r := range reports {
		row := Row{Domain: r.Domain, Result: r.Result, CheckedAt: checkedAt}
		if r.Error != nil {
			row.Error = r.Error.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// FromRecords converts stored check records.
func FromRecords(records []store.CheckRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{Domain: rec.Domain, Result: rec.Result, CheckedAt: rec.UpdatedAt})
	}
	return rows
}

// WriteFile writes the workbook for rows to path.
func WriteFile(path string, rows []Row) error {
	f, err := build(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// Write writes the workbook for rows to w.
func Write(w io.Writer, rows []Row) error {
	f, err := build(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func build(rows []Row) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	w := &writer{f: f}
	if err := w.init(); err != nil {
		f.Close()
		return nil, err
	}

	if err := w.summary(rows); err != nil {
		f.Close()
		return nil, err
	}
	if err := w.details(rows); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// writer carries the styles shared by both sheets.
type writer struct {
	f      *excelize.File
	header int
	status map[mailcheck.Status]int
}

func (w *writer) init() error {
	var err error
	w.header, err = w.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	w.status = make(map[mailcheck.Status]int, 4)
	for status, color := range map[mailcheck.Status]string{
		mailcheck.StatusValid:   "#C6EFCE",
		mailcheck.StatusWarning: "#FFEB9C",
		mailcheck.StatusMissing: "#FFC7CE",
		mailcheck.StatusError:   "#FFC7CE",
	} {
		id, err := w.f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return fmt.Errorf("create %s style: %w", status, err)
		}
		w.status[status] = id
	}
	return nil
}

func (w *writer) summary(rows []Row) error {
	if err := w.writeHeader(SummarySheet, summaryHeader, 24); err != nil {
		return err
	}

	for i, r := range rows {
		n := i + 2
		values := []any{r.Domain}
		statuses := []mailcheck.Status{r.Result.SPF.Status, r.Result.DKIM.Status, r.Result.DMARC.Status, r.Result.MailEcho.Status}
		for _, s := range statuses {
			values = append(values, string(s))
		}
		values = append(values, r.Result.SPF.LookupCount, r.Result.DMARC.Policy, formatTime(r.CheckedAt), r.Error)

		if err := w.setRow(SummarySheet, n, values); err != nil {
			return err
		}
		for j, s := range statuses {
			if err := w.styleStatus(SummarySheet, j+2, n, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *writer) details(rows []Row) error {
	if err := w.writeHeader(DetailsSheet, detailsHeader, 40); err != nil {
		return err
	}

	n := 2
	for _, r := range rows {
		// Invalid input never produced results.
		if r.Result.SPF.Status == "" {
			continue
		}

		for _, c := range checks(r.Result) {
			values := []any{r.Domain, c.name, string(c.status), c.message, "", ""}
			if c.feedback != nil {
				values[4] = c.feedback.Error
				values[5] = c.feedback.Fix
			}
			if err := w.setRow(DetailsSheet, n, values); err != nil {
				return err
			}
			if err := w.styleStatus(DetailsSheet, 3, n, c.status); err != nil {
				return err
			}
			n++
		}
	}
	return nil
}

type check struct {
	name     string
	status   mailcheck.Status
	message  string
	feedback *mailcheck.Feedback
}

func checks(d mailcheck.CheckResultData) []check {
	return []check{
		{"SPF", d.SPF.Status, d.SPF.Message, d.SPF.Feedback},
		{"DKIM", d.DKIM.Status, d.DKIM.Message, d.DKIM.Feedback},
		{"DMARC", d.DMARC.Status, d.DMARC.Message, d.DMARC.Feedback},
		{"MX", d.MailEcho.Status, d.MailEcho.Message, d.MailEcho.Feedback},
	}
}

func (w *writer) writeHeader(sheet string, header []any, width float64) error {
	if err := w.setRow(sheet, 1, header); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(sheet, "A1", last, w.header); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := w.f.SetColWidth(sheet, "A", lastCol, width); err != nil {
		return fmt.Errorf("set %s column width: %w", sheet, err)
	}

	if err := w.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze %s header: %w", sheet, err)
	}
	return nil
}

func (w *writer) setRow(sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func (w *writer) styleStatus(sheet string, col, row int, status mailcheck.Status) error {
	style, ok := w.status[status]
	if !ok {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(sheet, cell, cell, style); err != nil {
		return fmt.Errorf("style %s %s: %w", sheet, cell, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
