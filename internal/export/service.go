package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"clickerexam/internal/domain"
	"clickerexam/internal/report"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "xlsx", "excel":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, v)
}

type reportSource interface {
	ExamReport(ctx context.Context, examID int64) (*report.Report, error)
}

// File is a rendered export ready to be sent as an attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Service struct {
	reports reportSource
}

func NewService(reports reportSource) *Service {
	return &Service{reports: reports}
}

func (s *Service) Export(ctx context.Context, examID int64, format Format, layout Layout) (*File, error) {
	sink, err := newSink(format)
	if err != nil {
		return nil, err
	}
	rep, err := s.reports.ExamReport(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := Render(sink, rep, layout); err != nil {
		return nil, fmt.Errorf("render %s export: %w", layout, err)
	}
	var buf bytes.Buffer
	if err := sink.Write(&buf); err != nil {
		return nil, err
	}
	return &File{
		Name:        FileName(examID, layout, sink.Extension()),
		ContentType: sink.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

func newSink(format Format) (Sink, error) {
	switch format {
	case FormatXLSX:
		return NewXLSX()
	case FormatCSV:
		return NewCSV(), nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, format)
}

// FileName is report-<exam>[-layout].<ext>; the default layout has no suffix.
func FileName(examID int64, layout Layout, ext string) string {
	suffix := ""
	switch layout {
	case LayoutIndividual:
		suffix = "-individual"
	case LayoutByQuestion:
		suffix = "-by-question"
	}
	return fmt.Sprintf("report-%d%s.%s", examID, suffix, ext)
}
