package message

import (
	"regexp"
	"strconv"
	"strings"

	"meta-relay/internal/graph"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*(\d+)\s*\}\}`)

// findTemplate matches name and language exactly. An empty language matches
// the first template with that name.
func findTemplate(catalog []graph.Template, name, language string) (graph.Template, bool) {
	for _, tpl := range catalog {
		if tpl.Name != name {
			continue
		}
		if language == "" || tpl.Language == language {
			return tpl, true
		}
	}
	return graph.Template{}, false
}

// renderTemplate returns the body text with {{n}} replaced by the nth body parameter.
// Placeholders without a matching parameter are left as they are.
func renderTemplate(tpl graph.Template, components []graph.TemplateComponent) string {
	var body string
	for _, section := range tpl.Components {
		if strings.EqualFold(section.Type, "body") {
			body = section.Text
			break
		}
	}
	if body == "" {
		return placeholderContent(tpl.Name)
	}

	var params []graph.TemplateParameter
	for _, c := range components {
		if strings.EqualFold(c.Type, "body") {
			params = c.Parameters
			break
		}
	}

	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		n, err := strconv.Atoi(placeholderPattern.FindStringSubmatch(match)[1])
		if err != nil || n < 1 || n > len(params) {
			return match
		}
		return params[n-1].Text
	})
}

func placeholderContent(name string) string {
	return "[TEMPLATE] " + name
}
