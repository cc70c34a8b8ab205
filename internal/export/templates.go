package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var planTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/plan.html")
	if err != nil {
		// Fallback to built-in template if file not found
		planTemplate = template.Must(template.New("plan").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	planTemplate = template.Must(template.New("plan").Funcs(funcMap).Parse(string(templateContent)))
}

// RenderPlanHTML renders the business plan document from the finalized view.
func RenderPlanHTML(p Plan) (string, error) {
	var buf bytes.Buffer
	if err := planTemplate.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  <p>{{.Applicant}} | readiness {{.Score}}/100</p>
  {{range .Sections}}
  <h2>{{.Title}}</h2>
  {{range .Answers}}<h3>{{.Prompt}}</h3><p>{{.Value}}</p>{{end}}
  {{end}}
</body>
</html>`
