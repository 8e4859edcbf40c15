package capability

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
)

// Format identifies the document encoding of a capability model.
type Format uint8

const (
	// FormatAuto detects the format from the document content.
	FormatAuto Format = iota

	// FormatJSON is a JSON model document.
	FormatJSON

	// FormatYAML is a YAML model document.
	FormatYAML
)

// detectFormat examines the data to determine whether it is JSON or YAML.
// The first non-whitespace, non-comment byte decides: '{' or '[' means JSON.
func detectFormat(data []byte) Format {
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '#':
			// YAML comment line, skip to end of line
			for i < len(data) && data[i] != '\n' {
				i++
			}
			continue
		case '{', '[':
			return FormatJSON
		default:
			return FormatYAML
		}
	}
	return FormatJSON
}

// ParseOptions configures model parsing behavior.
type ParseOptions struct {
	// Format specifies the input format. Use FormatAuto to auto-detect.
	Format Format

	// Strict enables strict parsing mode: duplicate interface or member
	// names and unknown schema kinds become errors instead of being
	// tolerated (last wins, KindUnknown).
	Strict bool

	// SkipValidation disables JSON-schema validation of the document.
	SkipValidation bool
}

// Parser parses capability model documents.
type Parser struct {
	// Strict enables strict parsing mode (see ParseOptions.Strict).
	Strict bool
}

// NewParser creates a new model parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile parses a capability model from the filesystem.
func (p *Parser) ParseFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	m, err := p.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	m.SourceFile = path
	return m, nil
}

// ParseFileWithOptions parses a capability model from the filesystem with
// explicit options.
func (p *Parser) ParseFileWithOptions(path string, opts ParseOptions) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	m, err := p.ParseBytesWithOptions(data, opts)
	if err != nil {
		return nil, err
	}
	m.SourceFile = path
	return m, nil
}

// Parse parses a capability model from a reader with auto-detection.
func (p *Parser) Parse(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return p.ParseBytes(data)
}

// ParseWithOptions parses a capability model from a reader with explicit
// options.
func (p *Parser) ParseWithOptions(r io.Reader, opts ParseOptions) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return p.ParseBytesWithOptions(data, opts)
}

// ParseBytes parses a capability model from a byte slice with
// auto-detection.
func (p *Parser) ParseBytes(data []byte) (*Model, error) {
	return p.ParseBytesWithOptions(data, ParseOptions{Format: FormatAuto, Strict: p.Strict})
}

// ParseBytesWithOptions parses a capability model with explicit options.
func (p *Parser) ParseBytesWithOptions(data []byte, opts ParseOptions) (*Model, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	format := opts.Format
	if format == FormatAuto {
		format = detectFormat(data)
	}

	// Normalize YAML documents to JSON so that schema validation and the
	// document walk share one code path.
	jsonData := data
	if format == FormatYAML {
		var err error
		jsonData, err = yamlToJSON(data)
		if err != nil {
			return nil, err
		}
	}

	if !opts.SkipValidation {
		if err := validateDocument(jsonData); err != nil {
			return nil, err
		}
	}

	var raw rawModel
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil, fmt.Errorf("model parse error: %w", err)
	}

	return buildModel(&raw, opts.Strict)
}

// rawModel mirrors the document structure before the walk.
type rawModel struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Version    int            `json:"version"`
	Interfaces []rawInterface `json:"interfaces"`
}

type rawInterface struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	DisplayName string         `json:"displayName"`
	Properties  []rawProperty  `json:"properties"`
	Commands    []rawCommand   `json:"commands"`
	Telemetry   []rawTelemetry `json:"telemetry"`
}

type rawProperty struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Schema      any    `json:"schema"`
	Writable    bool   `json:"writable"`
	Unit        string `json:"unit"`
}

type rawCommand struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Request     any    `json:"request"`
	Response    any    `json:"response"`
}

type rawTelemetry struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Schema      any    `json:"schema"`
	Unit        string `json:"unit"`
}

// buildModel walks the raw document and builds the lookup tables.
func buildModel(raw *rawModel, strict bool) (*Model, error) {
	if raw.Name == "" && len(raw.Interfaces) == 0 {
		return nil, ErrEmptyDocument
	}

	m := &Model{
		ID:             raw.ID,
		Name:           raw.Name,
		Version:        raw.Version,
		interfaceIndex: make(map[string]int, len(raw.Interfaces)),
	}

	for n, ri := range raw.Interfaces {
		iface, err := buildInterface(&ri, strict)
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", n, err)
		}

		if prev, dup := m.interfaceIndex[iface.Name]; dup {
			if strict {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateInterface, iface.Name)
			}
			// Last wins in non-strict mode.
			m.Interfaces[prev] = iface
			continue
		}

		m.interfaceIndex[iface.Name] = len(m.Interfaces)
		m.Interfaces = append(m.Interfaces, iface)
	}

	return m, nil
}

// buildInterface walks one interface declaration.
func buildInterface(raw *rawInterface, strict bool) (*Interface, error) {
	if raw.Name == "" {
		return nil, ErrMissingName
	}

	iface := &Interface{
		ID:             raw.ID,
		Name:           raw.Name,
		DisplayName:    raw.DisplayName,
		propertyIndex:  make(map[string]int, len(raw.Properties)),
		commandIndex:   make(map[string]int, len(raw.Commands)),
		telemetryIndex: make(map[string]int, len(raw.Telemetry)),
	}

	for _, rp := range raw.Properties {
		if rp.Name == "" {
			return nil, fmt.Errorf("property: %w", ErrMissingName)
		}
		schema, err := parseSchema(rp.Schema, strict)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", rp.Name, err)
		}
		prop := Property{
			Name:        rp.Name,
			DisplayName: rp.DisplayName,
			Schema:      schema,
			Writable:    rp.Writable,
			Unit:        rp.Unit,
		}
		if prev, dup := iface.propertyIndex[prop.Name]; dup {
			if strict {
				return nil, fmt.Errorf("%w: property %q", ErrDuplicateMember, prop.Name)
			}
			iface.Properties[prev] = prop
			continue
		}
		iface.propertyIndex[prop.Name] = len(iface.Properties)
		iface.Properties = append(iface.Properties, prop)
	}

	for _, rc := range raw.Commands {
		if rc.Name == "" {
			return nil, fmt.Errorf("command: %w", ErrMissingName)
		}
		cmd := Command{
			Name:        rc.Name,
			DisplayName: rc.DisplayName,
		}
		if rc.Request != nil {
			schema, err := parseSchema(rc.Request, strict)
			if err != nil {
				return nil, fmt.Errorf("command %q request: %w", rc.Name, err)
			}
			cmd.Request = &schema
		}
		if rc.Response != nil {
			schema, err := parseSchema(rc.Response, strict)
			if err != nil {
				return nil, fmt.Errorf("command %q response: %w", rc.Name, err)
			}
			cmd.Response = &schema
		}
		if prev, dup := iface.commandIndex[cmd.Name]; dup {
			if strict {
				return nil, fmt.Errorf("%w: command %q", ErrDuplicateMember, cmd.Name)
			}
			iface.Commands[prev] = cmd
			continue
		}
		iface.commandIndex[cmd.Name] = len(iface.Commands)
		iface.Commands = append(iface.Commands, cmd)
	}

	for _, rt := range raw.Telemetry {
		if rt.Name == "" {
			return nil, fmt.Errorf("telemetry: %w", ErrMissingName)
		}
		schema, err := parseSchema(rt.Schema, strict)
		if err != nil {
			return nil, fmt.Errorf("telemetry %q: %w", rt.Name, err)
		}
		tel := Telemetry{
			Name:        rt.Name,
			DisplayName: rt.DisplayName,
			Schema:      schema,
			Unit:        rt.Unit,
		}
		if prev, dup := iface.telemetryIndex[tel.Name]; dup {
			if strict {
				return nil, fmt.Errorf("%w: telemetry %q", ErrDuplicateMember, tel.Name)
			}
			iface.Telemetries[prev] = tel
			continue
		}
		iface.telemetryIndex[tel.Name] = len(iface.Telemetries)
		iface.Telemetries = append(iface.Telemetries, tel)
	}

	return iface, nil
}

// parseSchema decodes a schema declaration, which is either a primitive
// kind name ("double") or a structured declaration for enum, object, and
// map schemas.
func parseSchema(v any, strict bool) (Schema, error) {
	switch s := v.(type) {
	case nil:
		if strict {
			return Schema{}, fmt.Errorf("%w: missing schema", ErrUnknownSchemaKind)
		}
		return Schema{Kind: KindUnknown}, nil

	case string:
		kind, ok := primitiveKinds[s]
		if !ok {
			if strict {
				return Schema{}, fmt.Errorf("%w: %q", ErrUnknownSchemaKind, s)
			}
			return Schema{Kind: KindUnknown}, nil
		}
		return Schema{Kind: kind}, nil

	case map[string]any:
		return parseStructuredSchema(s, strict)

	default:
		if strict {
			return Schema{}, fmt.Errorf("%w: %T", ErrUnknownSchemaKind, v)
		}
		return Schema{Kind: KindUnknown}, nil
	}
}

// parseStructuredSchema decodes enum, object, and map schema declarations.
func parseStructuredSchema(decl map[string]any, strict bool) (Schema, error) {
	kind, _ := decl["kind"].(string)
	switch kind {
	case "enum":
		schema := Schema{Kind: KindEnum}
		values, _ := decl["values"].([]any)
		for _, v := range values {
			if s, ok := v.(string); ok {
				schema.Values = append(schema.Values, s)
			}
		}
		return schema, nil

	case "object":
		schema := Schema{Kind: KindObject}
		fields, _ := decl["fields"].([]any)
		for n, f := range fields {
			fm, ok := f.(map[string]any)
			if !ok {
				continue
			}
			name, _ := fm["name"].(string)
			if name == "" {
				return Schema{}, fmt.Errorf("field %d: %w", n, ErrMissingName)
			}
			fieldSchema, err := parseSchema(fm["schema"], strict)
			if err != nil {
				return Schema{}, fmt.Errorf("field %q: %w", name, err)
			}
			schema.Fields = append(schema.Fields, Field{Name: name, Schema: fieldSchema})
		}
		return schema, nil

	case "map":
		elem, err := parseSchema(decl["value"], strict)
		if err != nil {
			return Schema{}, fmt.Errorf("map value: %w", err)
		}
		return Schema{Kind: KindMap, Element: &elem}, nil

	default:
		if strict {
			return Schema{}, fmt.Errorf("%w: %q", ErrUnknownSchemaKind, kind)
		}
		return Schema{Kind: KindUnknown}, nil
	}
}
