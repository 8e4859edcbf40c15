package main

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"github.com/latticeiot/devicekit-go/pkg/capability"
)

// bindingsTemplate renders the generated source. Formatting is left to
// goimports, so the template only has to be syntactically valid.
const bindingsTemplate = `// Code generated by devicekit-gen from {{ .ModelName }} v{{ .ModelVersion }}. DO NOT EDIT.

package {{ .Package }}

// Interface names declared by the model.
const (
{{- range .Interfaces }}
	Interface{{ .GoName }} = "{{ .Name }}"
{{- end }}
)
{{ range .Interfaces }}
{{- if .Properties }}
// Properties of the {{ .Name }} interface.
const (
{{- $iface := .GoName }}
{{- range .Properties }}
	{{ $iface }}Property{{ .GoName }} = "{{ .Name }}"
{{- end }}
)
{{ end }}
{{- if .Commands }}
// Commands of the {{ .Name }} interface.
const (
{{- $iface := .GoName }}
{{- range .Commands }}
	{{ $iface }}Command{{ .GoName }} = "{{ .Name }}"
{{- end }}
)
{{ end }}
{{- if .Telemetries }}
// Telemetry fields of the {{ .Name }} interface.
const (
{{- $iface := .GoName }}
{{- range .Telemetries }}
	{{ $iface }}Telemetry{{ .GoName }} = "{{ .Name }}"
{{- end }}
)
{{ end }}
{{- end }}`

type memberData struct {
	GoName string
	Name   string
}

type interfaceData struct {
	GoName      string
	Name        string
	Properties  []memberData
	Commands    []memberData
	Telemetries []memberData
}

type bindingsData struct {
	Package      string
	ModelName    string
	ModelVersion int
	Interfaces   []interfaceData
}

// GenerateBindings renders Go constant declarations for every interface
// and member name of the model. The result is unformatted Go source.
func GenerateBindings(model *capability.Model, pkgName string) (string, error) {
	if pkgName == "" {
		return "", fmt.Errorf("missing package name")
	}

	data := bindingsData{
		Package:      pkgName,
		ModelName:    model.Name,
		ModelVersion: model.Version,
	}
	for _, iface := range model.Interfaces {
		ifaceData := interfaceData{
			GoName: goName(iface.Name),
			Name:   iface.Name,
		}
		for _, p := range iface.Properties {
			ifaceData.Properties = append(ifaceData.Properties, memberData{goName(p.Name), p.Name})
		}
		for _, c := range iface.Commands {
			ifaceData.Commands = append(ifaceData.Commands, memberData{goName(c.Name), c.Name})
		}
		for _, t := range iface.Telemetries {
			ifaceData.Telemetries = append(ifaceData.Telemetries, memberData{goName(t.Name), t.Name})
		}
		data.Interfaces = append(data.Interfaces, ifaceData)
	}

	tmpl, err := template.New("bindings").Parse(bindingsTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// goName converts a lowerCamel wire name like "targetTemperature" to an
// exported Go identifier like "TargetTemperature". Separators in
// non-canonical names ("target-temperature") are handled too.
func goName(name string) string {
	var result strings.Builder
	upperNext := true
	for _, r := range name {
		switch {
		case r == ' ' || r == '-' || r == '_' || r == '.' || r == ':':
			upperNext = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			upperNext = true
		case upperNext:
			result.WriteRune(unicode.ToUpper(r))
			upperNext = false
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
