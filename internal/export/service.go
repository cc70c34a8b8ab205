package export

import "fmt"

// Service turns a finalized plan view into a downloadable artifact.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export renders the plan and converts it to the requested format.
func (s *Service) Export(p Plan, format Format) (*Result, error) {
	html, err := RenderPlanHTML(p)
	if err != nil {
		return nil, fmt.Errorf("render plan: %w", err)
	}

	switch format {
	case FormatPDF:
		return exportPDF(html, p.Title)
	case FormatDOCX:
		return exportDOCX(html, p.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
