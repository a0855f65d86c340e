package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/ethics-review/internal/application/port"
)

// StallReport is a rendered stall report
type StallReport struct {
	Name        string    `json:"name"`
	Content     []byte    `json:"-"`
	Items       int       `json:"items"`
	GeneratedAt time.Time `json:"generated_at"`
	Archived    bool      `json:"archived"`
}

// ReportService exports workflow reports
type ReportService interface {
	// StallReport renders the applications stalled beyond threshold and
	// archives a copy when storage is configured
	StallReport(ctx context.Context, threshold time.Duration) (*StallReport, error)
}

type reportServiceImpl struct {
	escalation EscalationService
	renderer   port.ReportRenderer
	storage    port.ReportStorage
	naming     func(time.Time) string
	logger     Logger
	now        func() time.Time
}

// NewReportService creates a new ReportService. storage may be nil.
func NewReportService(
	escalation EscalationService,
	renderer port.ReportRenderer,
	storage port.ReportStorage,
	naming func(time.Time) string,
	logger Logger,
) ReportService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &reportServiceImpl{
		escalation: escalation,
		renderer:   renderer,
		storage:    storage,
		naming:     naming,
		logger:     logger,
		now:        time.Now,
	}
}

// StallReport renders and archives the stall report
func (s *reportServiceImpl) StallReport(ctx context.Context, threshold time.Duration) (*StallReport, error) {
	items, err := s.escalation.ListStalled(ctx, threshold)
	if err != nil {
		return nil, err
	}

	now := s.now()
	content, err := s.renderer.RenderStallReport(items, now)
	if err != nil {
		return nil, fmt.Errorf("render stall report: %w", err)
	}

	report := &StallReport{
		Name:        s.naming(now),
		Content:     content,
		Items:       len(items),
		GeneratedAt: now,
	}

	// A failed archive write does not withhold the report from the caller
	if s.storage != nil {
		if err := s.storage.Save(ctx, report.Name, content); err != nil {
			s.logger.Error("Failed to archive stall report", "name", report.Name, "error", err)
		} else {
			report.Archived = true
		}
	}

	s.logger.Info("Stall report generated", "name", report.Name, "items", report.Items, "archived", report.Archived)
	return report, nil
}
