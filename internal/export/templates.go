package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"storyforge/api/internal/story"
)

//go:embed templates/*.html
var templateFS embed.FS

var storyTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"join": func(parts []string, sep string) string {
			return strings.Join(parts, sep)
		},
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/document.html")
	if err != nil {
		// Fallback to built-in template if file not found
		storyTemplate = template.Must(template.New("story").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	storyTemplate = template.Must(template.New("story").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for story bible rendering
type TemplateData struct {
	Story      story.State
	Author     string
	ExportedAt time.Time
	UpdatedAt  time.Time
}

// CharacterName resolves a character ID to its display name so voice
// profiles and plot points can reference characters by name.
func (d TemplateData) CharacterName(id string) string {
	for _, c := range d.Story.Characters {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}

// RenderStoryHTML renders the story bible template with provided data
func RenderStoryHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := storyTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Story.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>{{.Story.Title}}</h1>
  <div class="meta">{{.Author}} | {{.UpdatedAt.Format "Jan 2, 2006"}}</div>
  {{if .Story.Premise}}<p>{{.Story.Premise}}</p>{{end}}
</body>
</html>`
