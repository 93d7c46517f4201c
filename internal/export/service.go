package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storyforge/api/internal/story"
)

// Service renders story exports.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export generates an export of the story document in the requested
// format. The raw document is used verbatim for JSON exports; the other
// formats render the decoded story through the bible template.
func (s *Service) Export(ctx context.Context, title, author string, document json.RawMessage, updatedAt time.Time, format Format) (*Result, error) {
	if format == FormatJSON {
		return &Result{
			Data:     append(json.RawMessage(nil), document...),
			Filename: sanitizeFilename(title) + ".json",
			MimeType: "application/json",
		}, nil
	}

	var state story.State
	if err := json.Unmarshal(document, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	if state.Title == "" {
		state.Title = title
	}

	html, err := RenderStoryHTML(TemplateData{
		Story:      state,
		Author:     author,
		ExportedAt: time.Now(),
		UpdatedAt:  updatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(state.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(ctx, html, state.Title)
	case FormatDOCX:
		return exportDOCX(html, state.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
