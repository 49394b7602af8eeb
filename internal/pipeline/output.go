package pipeline

import (
	"fmt"
	"time"

	"github.com/JakeFAU/product-scraper/internal/sheet"
)

// Output column names besides the prefixed link column.
const (
	FamilyColumn = "Family"
	StatusColumn = "Status"
)

// ImageColumn names the n-th (1-based) image link column.
func ImageColumn(n int) string {
	return fmt.Sprintf("Image Link %d", n)
}

// MaxImages is the longest image list across rows.
func MaxImages(rows []ExtractedRow) int {
	n := 0
	for _, r := range rows {
		n = max(n, len(r.ImageLinks))
	}
	return n
}

// BuildOutputTable copies input and adds the link, family, and image columns.
// Rows[i] belongs to input row i; input rows without a result (a canceled run)
// get absent values. Every row has exactly MaxImages image columns, padded
// with absent cells. An output column sharing a name with an input column
// replaces it.
func BuildOutputTable(input *sheet.Table, cfg ExtractionConfig, rows []ExtractedRow) (*sheet.Table, error) {
	out := input.Clone()
	n := out.Len()
	if len(rows) > n {
		return nil, fmt.Errorf("%d results for %d input rows", len(rows), n)
	}

	maxImages := MaxImages(rows)
	links := make([]sheet.Cell, n)
	family := make([]sheet.Cell, n)
	status := make([]sheet.Cell, n)
	images := make([][]sheet.Cell, maxImages)
	for k := range images {
		images[k] = make([]sheet.Cell, n)
	}

	for i, row := range rows {
		links[i] = sheet.Optional(row.ProductLink)
		family[i] = sheet.Optional(row.Family)
		status[i] = sheet.String(row.Status())
		for k, link := range row.ImageLinks {
			images[k][i] = sheet.String(link)
		}
	}

	if err := out.SetColumn(cfg.LinkColumn(), links); err != nil {
		return nil, err
	}
	if err := out.SetColumn(FamilyColumn, family); err != nil {
		return nil, err
	}
	for k, col := range images {
		if err := out.SetColumn(ImageColumn(k+1), col); err != nil {
			return nil, err
		}
	}
	if cfg.IncludeStatus {
		if err := out.SetColumn(StatusColumn, status); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RunSummary is the per-run roll-up published when a batch finishes.
type RunSummary struct {
	RunID        string          `json:"run_id"`
	Total        int             `json:"total"`
	Processed    int             `json:"processed"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
	Skipped      int             `json:"skipped"`
	Outcomes     map[Outcome]int `json:"outcomes"`
	MaxImages    int             `json:"max_images"`
	Canceled     bool            `json:"canceled"`
	Output       string          `json:"output,omitempty"`
	OutputSHA256 string          `json:"output_sha256,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// Summarize counts outcomes over rows.
func Summarize(runID string, total int, rows []ExtractedRow, started, finished time.Time) RunSummary {
	s := RunSummary{
		RunID:      runID,
		Total:      total,
		Processed:  len(rows),
		Outcomes:   make(map[Outcome]int),
		MaxImages:  MaxImages(rows),
		StartedAt:  started,
		FinishedAt: finished,
	}
	for _, r := range rows {
		s.Outcomes[r.Outcome]++
		switch r.Outcome {
		case OutcomeDone:
			s.Succeeded++
		case OutcomeSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}
