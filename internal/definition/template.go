package definition

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// expandTemplate runs a REQUEST body through text/template with the sprig
// function map, so payloads can pull environment values at parse time:
//
//	{"user": "{{ env "GRPCHECK_USER" }}"}
//
// Bodies without template markers pass through untouched.
func expandTemplate(body string) (string, error) {
	if !strings.Contains(body, "{{") {
		return body, nil
	}

	tmpl, err := template.New("request").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, nil); err != nil {
		return "", err
	}
	return out.String(), nil
}
