// Package export renders a job's applications as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garnizeh/ats/pkg/models"
)

const (
	SummarySheet      = "Summary"
	ApplicationsSheet = "Applications"
	FeedbackSheet     = "Feedback"
)

// ContentType is the MIME type of the workbook written by Write.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var applicationHeaders = []string{"Rank", "Application ID", "Candidate", "Email", "Status", "AI Score", "Confidence", "Submitted", "Summary", "HR Notes"}

// Write renders apps, in the order given, for job to w.
func Write(w io.Writer, job *models.Job, apps []models.Application, generated time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	for _, name := range []string{ApplicationsSheet, FeedbackSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("create styles: %w", err)
	}
	if err := writeSummary(f, st, job, apps, generated); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeApplications(f, st, apps); err != nil {
		return fmt.Errorf("applications sheet: %w", err)
	}
	if err := writeFeedback(f, st, apps); err != nil {
		return fmt.Errorf("feedback sheet: %w", err)
	}

	return f.Write(w)
}

type styles struct {
	header int
	label  int
	wrap   int
	band   map[string]int
}

var border = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

func newStyles(f *excelize.File) (*styles, error) {
	var (
		st  = &styles{band: map[string]int{}}
		err error
	)
	st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return nil, err
	}
	if st.label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return nil, err
	}
	st.wrap, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    border,
	})
	if err != nil {
		return nil, err
	}
	for band, color := range map[string]string{"excellent": "C6EFCE", "good": "FFEB9C", "fair": "FFC7CE", "poor": "FF9999", "unscored": "EDEDED"} {
		id, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border: border,
		})
		if err != nil {
			return nil, err
		}
		st.band[band] = id
	}
	return st, nil
}

// Band buckets a score the way the summary sheet counts it.
func Band(score *float64) string {
	switch {
	case score == nil:
		return "unscored"
	case *score >= 90:
		return "excellent"
	case *score >= 70:
		return "good"
	case *score >= 50:
		return "fair"
	}
	return "poor"
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeSummary(f *excelize.File, st *styles, job *models.Job, apps []models.Application, generated time.Time) error {
	sh := SummarySheet
	_ = f.SetColWidth(sh, "A", "A", 28)
	_ = f.SetColWidth(sh, "B", "B", 50)

	counts := map[string]int{}
	byStatus := map[models.Status]int{}
	var sum float64
	for _, a := range apps {
		counts[Band(a.Score)]++
		byStatus[a.Status]++
		if a.Score != nil {
			sum += *a.Score
		}
	}

	rows := [][2]any{
		{"Job Title:", job.Title},
		{"Job ID:", job.ID},
		{"Generated:", generated.UTC().Format("2006-01-02 15:04:05")},
		{"Total Applications:", len(apps)},
		{"Excellent (90-100):", counts["excellent"]},
		{"Good (70-89):", counts["good"]},
		{"Fair (50-69):", counts["fair"]},
		{"Poor (<50):", counts["poor"]},
		{"Not Yet Scored:", counts["unscored"]},
	}
	if scored := len(apps) - counts["unscored"]; scored > 0 {
		rows = append(rows, [2]any{"Average Score:", fmt.Sprintf("%.2f", sum/float64(scored))})
	}
	for _, s := range models.Statuses {
		rows = append(rows, [2]any{string(s) + ":", byStatus[s]})
	}

	for i, r := range rows {
		row := i + 1
		if err := f.SetCellValue(sh, cell(1, row), r[0]); err != nil {
			return err
		}
		if err := f.SetCellStyle(sh, cell(1, row), cell(1, row), st.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sh, cell(2, row), r[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeApplications(f *excelize.File, st *styles, apps []models.Application) error {
	sh := ApplicationsSheet
	for i, w := range []float64{8, 14, 25, 30, 14, 10, 12, 20, 60, 40} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sh, col, col, w)
	}
	for i, h := range applicationHeaders {
		if err := f.SetCellValue(sh, cell(i+1, 1), h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sh, cell(1, 1), cell(len(applicationHeaders), 1), st.header); err != nil {
		return err
	}

	for i, a := range apps {
		row := i + 2
		values := []any{
			i + 1,
			a.ID,
			a.CandidateName,
			a.CandidateEmail,
			string(a.Status),
			optional(a.Score),
			confidence(a.Evaluation),
			time.UnixMilli(a.SubmittedAt).UTC().Format("2006-01-02 15:04"),
			deref(a.Summary),
			deref(a.HRNotes),
		}
		for col, v := range values {
			if err := f.SetCellValue(sh, cell(col+1, row), v); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(sh, cell(1, row), cell(len(values), row), st.band[Band(a.Score)]); err != nil {
			return err
		}
	}

	if len(apps) > 0 {
		ref := fmt.Sprintf("A1:%s", cell(len(applicationHeaders), len(apps)+1))
		if err := f.AutoFilter(sh, ref, nil); err != nil {
			return err
		}
	}
	return f.SetPanes(sh, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeFeedback(f *excelize.File, st *styles, apps []models.Application) error {
	sh := FeedbackSheet
	_ = f.SetColWidth(sh, "A", "A", 14)
	_ = f.SetColWidth(sh, "B", "B", 25)
	_ = f.SetColWidth(sh, "C", "C", 20)
	_ = f.SetColWidth(sh, "D", "D", 70)

	for i, h := range []string{"Application ID", "Candidate", "Category", "Feedback"} {
		if err := f.SetCellValue(sh, cell(i+1, 1), h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sh, "A1", "D1", st.header); err != nil {
		return err
	}

	row := 2
	for _, a := range apps {
		ev := a.Evaluation
		if ev == nil {
			continue
		}
		for _, fb := range [][2]string{{"Strengths", ev.Strengths}, {"Weaknesses", ev.Weaknesses}, {"Improvement Tips", ev.ImprovementTips}} {
			for col, v := range []any{a.ID, a.CandidateName, fb[0], fb[1]} {
				if err := f.SetCellValue(sh, cell(col+1, row), v); err != nil {
					return err
				}
			}
			if err := f.SetCellStyle(sh, cell(1, row), cell(4, row), st.wrap); err != nil {
				return err
			}
			row++
		}
	}
	return f.SetPanes(sh, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func confidence(ev *models.Evaluation) any {
	if ev == nil {
		return ""
	}
	return ev.Confidence
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
