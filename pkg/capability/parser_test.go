package capability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thermostatJSON = `{
	"id": "urn:acme:thermostat:1",
	"name": "Thermostat",
	"version": 2,
	"interfaces": [
		{
			"id": "urn:acme:thermostat:climate:1",
			"name": "climate",
			"displayName": "Climate",
			"properties": [
				{"name": "targetTemperature", "schema": "double", "writable": true, "unit": "celsius"},
				{"name": "firmwareVersion", "schema": "string"}
			],
			"telemetry": [
				{"name": "temperature", "schema": "double", "unit": "celsius"},
				{"name": "humidity", "schema": "double", "unit": "percent"}
			],
			"commands": [
				{
					"name": "reboot",
					"request": {"kind": "object", "fields": [{"name": "delay", "schema": "integer"}]},
					"response": "boolean"
				}
			]
		},
		{
			"name": "deviceInfo",
			"properties": [
				{"name": "manufacturer", "schema": "string"},
				{"name": "model", "schema": "string"}
			]
		}
	]
}`

const thermostatYAML = `
# Thermostat capability model
id: urn:acme:thermostat:1
name: Thermostat
version: 2
interfaces:
  - name: climate
    properties:
      - name: targetTemperature
        schema: double
        writable: true
        unit: celsius
    telemetry:
      - name: temperature
        schema: double
        unit: celsius
    commands:
      - name: reboot
        response: boolean
`

func TestParseJSON(t *testing.T) {
	p := NewParser()
	m, err := p.ParseBytes([]byte(thermostatJSON))
	require.NoError(t, err)

	assert.Equal(t, "urn:acme:thermostat:1", m.ID)
	assert.Equal(t, "Thermostat", m.Name)
	assert.Equal(t, 2, m.Version)
	assert.Equal(t, []string{"climate", "deviceInfo"}, m.InterfaceNames())

	climate, err := m.Interface("climate")
	require.NoError(t, err)
	assert.Equal(t, "urn:acme:thermostat:climate:1", climate.ID)
	assert.Equal(t, "Climate", climate.DisplayName)

	assert.Equal(t, []string{"targetTemperature", "firmwareVersion"}, climate.PropertyNames())
	assert.Equal(t, []string{"temperature", "humidity"}, climate.TelemetryNames())
	assert.Equal(t, []string{"reboot"}, climate.CommandNames())

	target, ok := climate.Property("targetTemperature")
	require.True(t, ok)
	assert.Equal(t, KindDouble, target.Schema.Kind)
	assert.True(t, target.Writable)
	assert.Equal(t, "celsius", target.Unit)

	fw, ok := climate.Property("firmwareVersion")
	require.True(t, ok)
	assert.False(t, fw.Writable)

	reboot, ok := climate.Command("reboot")
	require.True(t, ok)
	require.NotNil(t, reboot.Request)
	assert.Equal(t, KindObject, reboot.Request.Kind)
	require.Len(t, reboot.Request.Fields, 1)
	assert.Equal(t, "delay", reboot.Request.Fields[0].Name)
	assert.Equal(t, KindInteger, reboot.Request.Fields[0].Schema.Kind)
	require.NotNil(t, reboot.Response)
	assert.Equal(t, KindBoolean, reboot.Response.Kind)

	assert.True(t, climate.HasTelemetry("humidity"))
	assert.False(t, climate.HasTelemetry("pressure"))
	assert.False(t, climate.HasCommand("restart"))
}

func TestParseYAML(t *testing.T) {
	p := NewParser()
	m, err := p.ParseBytes([]byte(thermostatYAML))
	require.NoError(t, err)

	assert.Equal(t, "Thermostat", m.Name)
	require.True(t, m.HasInterface("climate"))

	climate, err := m.Interface("climate")
	require.NoError(t, err)
	assert.True(t, climate.HasProperty("targetTemperature"))
	assert.True(t, climate.HasTelemetry("temperature"))
	assert.True(t, climate.HasCommand("reboot"))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Format
	}{
		{"JSONObject", `{"name": "x"}`, FormatJSON},
		{"JSONWithLeadingSpace", "\n\t {}", FormatJSON},
		{"YAMLMapping", "name: x\n", FormatYAML},
		{"YAMLWithComment", "# model\nname: x\n", FormatYAML},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, detectFormat([]byte(tc.data)))
		})
	}
}

func TestParseErrors(t *testing.T) {
	p := NewParser()

	t.Run("EmptyDocument", func(t *testing.T) {
		_, err := p.ParseBytes(nil)
		assert.ErrorIs(t, err, ErrEmptyDocument)
	})

	t.Run("MissingInterfaceName", func(t *testing.T) {
		_, err := p.ParseBytes([]byte(`{"name": "x", "interfaces": [{"properties": []}]}`))
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("MissingMemberName", func(t *testing.T) {
		// Missing member names fail regardless of strict mode.
		doc := `{"name": "x", "interfaces": [{"name": "a", "properties": [{"schema": "string"}]}]}`
		_, err := p.ParseBytes([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidDocument)

		// Same document with validation skipped hits the parser's own check.
		_, err = p.ParseBytesWithOptions([]byte(doc), ParseOptions{SkipValidation: true})
		assert.ErrorIs(t, err, ErrMissingName)
	})

	t.Run("InterfaceNotFound", func(t *testing.T) {
		m, err := p.ParseBytes([]byte(thermostatJSON))
		require.NoError(t, err)
		_, err = m.Interface("nope")
		assert.ErrorIs(t, err, ErrInterfaceNotFound)
	})
}

func TestStrictMode(t *testing.T) {
	dupIface := `{"name": "x", "interfaces": [
		{"name": "a", "properties": [{"name": "p", "schema": "string"}]},
		{"name": "a", "properties": [{"name": "q", "schema": "string"}]}
	]}`

	t.Run("DuplicateInterfaceStrict", func(t *testing.T) {
		_, err := NewParser().ParseBytesWithOptions([]byte(dupIface), ParseOptions{Strict: true})
		assert.ErrorIs(t, err, ErrDuplicateInterface)
	})

	t.Run("DuplicateInterfaceLastWins", func(t *testing.T) {
		m, err := NewParser().ParseBytes([]byte(dupIface))
		require.NoError(t, err)
		require.Len(t, m.Interfaces, 1)

		a, err := m.Interface("a")
		require.NoError(t, err)
		assert.True(t, a.HasProperty("q"))
		assert.False(t, a.HasProperty("p"))
	})

	dupMember := `{"name": "x", "interfaces": [{"name": "a", "telemetry": [
		{"name": "t", "schema": "double"},
		{"name": "t", "schema": "integer"}
	]}]}`

	t.Run("DuplicateMemberStrict", func(t *testing.T) {
		_, err := NewParser().ParseBytesWithOptions([]byte(dupMember), ParseOptions{Strict: true})
		assert.ErrorIs(t, err, ErrDuplicateMember)
	})

	t.Run("DuplicateMemberLastWins", func(t *testing.T) {
		m, err := NewParser().ParseBytes([]byte(dupMember))
		require.NoError(t, err)
		a, err := m.Interface("a")
		require.NoError(t, err)
		require.Len(t, a.Telemetries, 1)
		tel, ok := a.Telemetry("t")
		require.True(t, ok)
		assert.Equal(t, KindInteger, tel.Schema.Kind)
	})

	unknownSchema := `{"name": "x", "interfaces": [{"name": "a", "telemetry": [
		{"name": "t", "schema": "quaternion"}
	]}]}`

	t.Run("UnknownSchemaStrict", func(t *testing.T) {
		_, err := NewParser().ParseBytesWithOptions([]byte(unknownSchema), ParseOptions{Strict: true})
		assert.ErrorIs(t, err, ErrUnknownSchemaKind)
	})

	t.Run("UnknownSchemaLenient", func(t *testing.T) {
		m, err := NewParser().ParseBytes([]byte(unknownSchema))
		require.NoError(t, err)
		a, err := m.Interface("a")
		require.NoError(t, err)
		tel, ok := a.Telemetry("t")
		require.True(t, ok)
		assert.Equal(t, KindUnknown, tel.Schema.Kind)
	})
}

func TestParseSchemaDeclarations(t *testing.T) {
	t.Run("Enum", func(t *testing.T) {
		s, err := parseSchema(map[string]any{
			"kind":   "enum",
			"values": []any{"off", "heat", "cool"},
		}, true)
		require.NoError(t, err)
		assert.Equal(t, KindEnum, s.Kind)
		assert.Equal(t, []string{"off", "heat", "cool"}, s.Values)
	})

	t.Run("Map", func(t *testing.T) {
		s, err := parseSchema(map[string]any{"kind": "map", "value": "double"}, true)
		require.NoError(t, err)
		assert.Equal(t, KindMap, s.Kind)
		require.NotNil(t, s.Element)
		assert.Equal(t, KindDouble, s.Element.Kind)
	})

	t.Run("EmptyInterfaceIsLegal", func(t *testing.T) {
		m, err := NewParser().ParseBytes([]byte(`{"name": "x", "interfaces": [{"name": "bare"}]}`))
		require.NoError(t, err)
		iface, err := m.Interface("bare")
		require.NoError(t, err)
		assert.Empty(t, iface.PropertyNames())
		assert.Empty(t, iface.CommandNames())
		assert.Empty(t, iface.TelemetryNames())
	})
}

func TestParseReader(t *testing.T) {
	m, err := NewParser().Parse(strings.NewReader(thermostatJSON))
	require.NoError(t, err)
	assert.Equal(t, "Thermostat", m.Name)
}

func TestParseWithOptions(t *testing.T) {
	dup := `{"name": "x", "interfaces": [
		{"name": "a", "properties": [{"name": "p", "schema": "string"}]},
		{"name": "a", "properties": [{"name": "q", "schema": "string"}]}
	]}`

	t.Run("Reader", func(t *testing.T) {
		_, err := NewParser().ParseWithOptions(strings.NewReader(dup), ParseOptions{Strict: true})
		assert.ErrorIs(t, err, ErrDuplicateInterface)

		m, err := NewParser().ParseWithOptions(strings.NewReader(thermostatJSON), ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Thermostat", m.Name)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dup.json")
		require.NoError(t, os.WriteFile(path, []byte(dup), 0644))

		_, err := NewParser().ParseFileWithOptions(path, ParseOptions{Strict: true})
		assert.ErrorIs(t, err, ErrDuplicateInterface)

		m, err := NewParser().ParseFileWithOptions(path, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, path, m.SourceFile)
	})
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Target Temperature", "targetTemperature"},
		{"target-temperature", "targetTemperature"},
		{"target_temperature", "targetTemperature"},
		{"temperature", "temperature"},
		{"Temperature", "temperature"},
		{"-foo", "foo"},
		{" Target Temperature", "targetTemperature"},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestSchemaKindString(t *testing.T) {
	assert.Equal(t, "double", KindDouble.String())
	assert.Equal(t, "enum", KindEnum.String())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "unknown", SchemaKind(200).String())
}
