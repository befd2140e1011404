package segments

import "strconv"

// ConfigError describes an invalid segment layout. It names the field
// that failed and, when a concrete comparison exists, the expected and
// actual values.
type ConfigError struct {
	Field    string
	Reason   string
	Expected string
	Actual   string
}

func (e *ConfigError) Error() string {
	msg := "segment config: " + e.Field + ": " + e.Reason
	if e.Expected != "" {
		msg += " (expected " + e.Expected
		if e.Actual != "" {
			msg += ", got " + e.Actual
		}
		msg += ")"
	} else if e.Actual != "" {
		msg += " (got " + e.Actual + ")"
	}
	return msg
}

func fieldAt(i int, name string) string {
	return "segments[" + strconv.Itoa(i) + "]." + name
}

func itoa(v int) string { return strconv.Itoa(v) }

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
