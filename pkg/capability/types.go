package capability

import (
	"errors"
	"fmt"
)

// Parse errors.
var (
	ErrEmptyDocument      = errors.New("empty capability model document")
	ErrMissingName        = errors.New("missing name")
	ErrDuplicateInterface = errors.New("duplicate interface name")
	ErrDuplicateMember    = errors.New("duplicate member name")
	ErrUnknownSchemaKind  = errors.New("unknown schema kind")
	ErrInterfaceNotFound  = errors.New("interface not found")
)

// SchemaKind identifies the value type of a property, telemetry field,
// or command payload.
type SchemaKind uint8

const (
	// KindUnknown is an unrecognized schema. Only produced in non-strict mode.
	KindUnknown SchemaKind = iota

	// KindBoolean is a true/false value.
	KindBoolean

	// KindInteger is a whole number.
	KindInteger

	// KindDouble is a floating point number.
	KindDouble

	// KindString is a UTF-8 string.
	KindString

	// KindDateTime is an RFC 3339 timestamp.
	KindDateTime

	// KindDuration is an ISO 8601 duration.
	KindDuration

	// KindEnum is a closed set of named values.
	KindEnum

	// KindObject is a structured value with named fields.
	KindObject

	// KindMap is a string-keyed map of a single value schema.
	KindMap
)

// String returns the schema kind name as used in model documents.
func (k SchemaKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindDateTime:
		return "dateTime"
	case KindDuration:
		return "duration"
	case KindEnum:
		return "enum"
	case KindObject:
		return "object"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// primitiveKinds maps document schema names to kinds.
var primitiveKinds = map[string]SchemaKind{
	"boolean":  KindBoolean,
	"integer":  KindInteger,
	"long":     KindInteger,
	"double":   KindDouble,
	"float":    KindDouble,
	"string":   KindString,
	"dateTime": KindDateTime,
	"duration": KindDuration,
}

// Schema describes the shape of a value.
type Schema struct {
	// Kind is the value type.
	Kind SchemaKind

	// Fields holds the named fields of an object schema.
	Fields []Field

	// Values holds the legal values of an enum schema.
	Values []string

	// Element is the value schema of a map schema.
	Element *Schema
}

// Field is a named field within an object schema.
type Field struct {
	Name   string
	Schema Schema
}

// Property describes a single named property of an interface.
type Property struct {
	// Name is the canonical property name used on the wire.
	Name string

	// DisplayName is the human-readable name, if the model provides one.
	DisplayName string

	// Schema is the property's value schema.
	Schema Schema

	// Writable reports whether the service may set the property
	// (a desired property). Read-only properties are reported only.
	Writable bool

	// Unit is an optional unit annotation (e.g. "celsius").
	Unit string
}

// Command describes a single named command of an interface.
type Command struct {
	// Name is the canonical command name used on the wire.
	Name string

	// DisplayName is the human-readable name, if the model provides one.
	DisplayName string

	// Request is the command request payload schema, if any.
	Request *Schema

	// Response is the command response payload schema, if any.
	Response *Schema
}

// Telemetry describes a single named telemetry field of an interface.
type Telemetry struct {
	// Name is the canonical telemetry name used on the wire.
	Name string

	// DisplayName is the human-readable name, if the model provides one.
	DisplayName string

	// Schema is the telemetry value schema.
	Schema Schema

	// Unit is an optional unit annotation.
	Unit string
}

// Interface is a parsed interface descriptor with by-name lookup tables
// for its members. Interfaces are immutable after parsing and safe for
// concurrent reads.
type Interface struct {
	// ID is the interface identity URN, if the model provides one.
	ID string

	// Name is the interface instance name.
	Name string

	// DisplayName is the human-readable name, if any.
	DisplayName string

	// Properties, Commands, and Telemetries list members in document order.
	Properties  []Property
	Commands    []Command
	Telemetries []Telemetry

	propertyIndex  map[string]int
	commandIndex   map[string]int
	telemetryIndex map[string]int
}

// Property returns the named property descriptor.
func (i *Interface) Property(name string) (*Property, bool) {
	idx, ok := i.propertyIndex[name]
	if !ok {
		return nil, false
	}
	return &i.Properties[idx], true
}

// Command returns the named command descriptor.
func (i *Interface) Command(name string) (*Command, bool) {
	idx, ok := i.commandIndex[name]
	if !ok {
		return nil, false
	}
	return &i.Commands[idx], true
}

// Telemetry returns the named telemetry descriptor.
func (i *Interface) Telemetry(name string) (*Telemetry, bool) {
	idx, ok := i.telemetryIndex[name]
	if !ok {
		return nil, false
	}
	return &i.Telemetries[idx], true
}

// HasProperty reports whether the interface declares the named property.
func (i *Interface) HasProperty(name string) bool {
	_, ok := i.propertyIndex[name]
	return ok
}

// HasCommand reports whether the interface declares the named command.
func (i *Interface) HasCommand(name string) bool {
	_, ok := i.commandIndex[name]
	return ok
}

// HasTelemetry reports whether the interface declares the named telemetry.
func (i *Interface) HasTelemetry(name string) bool {
	_, ok := i.telemetryIndex[name]
	return ok
}

// PropertyNames returns the property names in document order.
func (i *Interface) PropertyNames() []string {
	names := make([]string, len(i.Properties))
	for n, p := range i.Properties {
		names[n] = p.Name
	}
	return names
}

// CommandNames returns the command names in document order.
func (i *Interface) CommandNames() []string {
	names := make([]string, len(i.Commands))
	for n, c := range i.Commands {
		names[n] = c.Name
	}
	return names
}

// TelemetryNames returns the telemetry names in document order.
func (i *Interface) TelemetryNames() []string {
	names := make([]string, len(i.Telemetries))
	for n, t := range i.Telemetries {
		names[n] = t.Name
	}
	return names
}

// Model is a parsed capability model. Models are immutable after parsing
// and safe for concurrent reads.
type Model struct {
	// ID is the model identity URN, if the document provides one.
	ID string

	// Name is the model name.
	Name string

	// Version is the model version number.
	Version int

	// Interfaces lists interfaces in document order.
	Interfaces []*Interface

	// SourceFile is the file path the model was parsed from, if any.
	SourceFile string

	interfaceIndex map[string]int
}

// Interface returns the named interface descriptor, or
// ErrInterfaceNotFound.
func (m *Model) Interface(name string) (*Interface, error) {
	idx, ok := m.interfaceIndex[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInterfaceNotFound, name)
	}
	return m.Interfaces[idx], nil
}

// HasInterface reports whether the model declares the named interface.
func (m *Model) HasInterface(name string) bool {
	_, ok := m.interfaceIndex[name]
	return ok
}

// InterfaceNames returns the interface names in document order.
func (m *Model) InterfaceNames() []string {
	names := make([]string, len(m.Interfaces))
	for n, i := range m.Interfaces {
		names[n] = i.Name
	}
	return names
}
