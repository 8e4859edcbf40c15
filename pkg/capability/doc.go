// Package capability parses declarative device capability models.
//
// A capability model describes the interfaces a device implements: the
// properties it exposes, the commands it accepts, and the telemetry it
// emits. Models are authored as JSON or YAML documents and parsed into an
// immutable Model with by-name lookup tables, which the client façade uses
// to validate outgoing telemetry and property updates and incoming command
// registrations.
//
// Parsing is a single tree walk over the decoded document. There is no
// streaming mode; model documents are small.
package capability
