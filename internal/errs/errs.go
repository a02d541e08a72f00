// Package errs defines the closed error-kind and severity sets shared by the
// pipeline's modules and the error ledger.
package errs

// Kind is one of the fixed system error categories.
type Kind int

const (
	InitFailed Kind = iota
	OutOfMemory
	NetworkFailed
	InvalidConfig
	CaptureFailure
	TransportFailure
	BufferOverflow
	Timeout
)

var kindNames = [...]string{
	"InitFailed",
	"OutOfMemory",
	"NetworkFailed",
	"InvalidConfig",
	"CaptureFailure",
	"TransportFailure",
	"BufferOverflow",
	"Timeout",
}

// String renders the kind's canonical name, used in logs and persisted records.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// ParseKind reverses String, used when reloading a persisted record.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Severity orders error conditions from informational to fatal.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Critical
	Fatal
)

var severityNames = [...]string{"INFO", "WARNING", "ERROR", "CRITICAL", "FATAL"}

// String renders the severity's canonical name.
func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "UNKNOWN"
	}
	return severityNames[s]
}
