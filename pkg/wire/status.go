package wire

// Status is the result code of a command invocation. Values follow HTTP
// status semantics so gateways can map them directly.
type Status int

const (
	// StatusOK indicates the command completed successfully.
	StatusOK Status = 200

	// StatusBadRequest indicates the command payload was malformed.
	StatusBadRequest Status = 400

	// StatusNotFound indicates the target interface or command is unknown.
	StatusNotFound Status = 404

	// StatusError indicates the handler failed.
	StatusError Status = 500

	// StatusNotImplemented indicates no handler is registered for the command.
	StatusNotImplemented Status = 501
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "BAD_REQUEST"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusError:
		return "ERROR"
	case StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	default:
		return "UNKNOWN"
	}
}

// OK reports whether the status indicates success.
func (s Status) OK() bool {
	return s >= 200 && s < 300
}
