package templates

import (
	"embed"
	"html/template"
)

//go:embed *.html
var FS embed.FS

// ParseTemplates parses HTML templates from the embedded filesystem. It
// takes a variadic list of template file paths and returns a parsed
// template or an error if parsing fails.
func ParseTemplates(files ...string) (*template.Template, error) {
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"subtract": func(a, b int) int {
			return a - b
		},
		"deref": func(p *int) int {
			if p == nil {
				return 0
			}
			return *p
		},
		"stars": func(rating int) string {
			out := ""
			for i := 0; i < 5; i++ {
				if i < rating {
					out += "★"
				} else {
					out += "☆"
				}
			}
			return out
		},
	}

	return template.New("").Funcs(funcMap).ParseFS(FS, files...)
}
