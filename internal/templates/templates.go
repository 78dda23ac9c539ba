// Package templates renders the starter files written by "dhd new".
package templates

import (
	"bytes"
	"strings"
	"text/template"
)

// GitignoreTemplate is written at the root of a modules directory that has
// none.
const GitignoreTemplate = `# Secrets are referenced, never committed
.env
.env.*
*.key
*.pem
*.secret

# SSH keys
id_rsa*
id_ed25519*
id_ecdsa*

# Editor and OS files
.DS_Store
*.swp
*~
.idea/
.vscode/settings.json

# Machine-local overrides
*.local.yaml
`

// ModuleData fills the module template.
type ModuleData struct {
	Name        string
	Description string
	Tags        []string
	DependsOn   []string
}

const moduleTemplateStr = `# Module {{.Name}}. Steps run in the order listed; dependencies run first.
{{- if .Description}}
description: {{quote .Description}}
{{- end}}
{{- if .Tags}}
tags: [{{join .Tags}}]
{{- end}}
{{- if .DependsOn}}
depends_on: [{{join .DependsOn}}]
{{- end}}

# Skip the whole module unless the condition holds, for example:
# when:
#   any_of:
#     - os: linux
#     - os: darwin

actions:
  - type: directory
    path: ~/.config/{{.Name}}

# More examples:
#  - type: package_install
#    names: [{{.Name}}]
#  - type: link_file
#    source: files/config
#    target: ~/.config/{{.Name}}/config
#  - type: execute_command
#    command: {{.Name}}
#    args: [--version]
#    only_if:
#      - command_exists: {{.Name}}
`

var moduleTemplate = template.Must(template.New("module").Funcs(template.FuncMap{
	"join": func(items []string) string {
		quoted := make([]string, len(items))
		for i, it := range items {
			quoted[i] = quote(it)
		}
		return strings.Join(quoted, ", ")
	},
	"quote": quote,
}).Parse(moduleTemplateStr))

// GenerateModule renders a starter module.yaml.
func GenerateModule(data ModuleData) (string, error) {
	var buf bytes.Buffer
	if err := moduleTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// quote renders s as a double-quoted YAML scalar.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
