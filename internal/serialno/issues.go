// internal/serialno/issues.go
package serialno

import (
	"fmt"
	"strings"
)

// Severity splits blocking problems from advisory ones.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Field names the part of the serial an issue refers to.
type Field string

const (
	FieldLength     Field = "length"
	FieldDeviceCode Field = "device_code"
	FieldMonth      Field = "month"
	FieldYear       Field = "year"
	FieldSequence   Field = "sequence"
	FieldChecksum   Field = "checksum"
	FieldDuplicate  Field = "duplicate"
)

// Issue is one validation finding.
type Issue struct {
	Severity Severity
	Field    Field
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Field, i.Message)
}

// Issues is the full result of a validation pass.
type Issues []Issue

// Valid reports whether no Error-severity issue is present.
func (is Issues) Valid() bool {
	return len(is.Errors()) == 0
}

// Errors returns only blocking issues.
func (is Issues) Errors() Issues {
	return is.filter(SeverityError)
}

// Warnings returns only advisory issues.
func (is Issues) Warnings() Issues {
	return is.filter(SeverityWarning)
}

// Has reports whether an issue of the given severity exists for f.
func (is Issues) Has(sev Severity, f Field) bool {
	for _, i := range is {
		if i.Severity == sev && i.Field == f {
			return true
		}
	}
	return false
}

// Err folds Error-severity issues into an error, nil when valid.
func (is Issues) Err() error {
	errs := is.Errors()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, i := range errs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", i.Field, i.Message))
	}
	return fmt.Errorf("serialno: invalid serial: %s", strings.Join(msgs, "; "))
}

// Warn appends an advisory issue. Used by callers for checks that live
// outside the codec (duplicate serials).
func (is *Issues) Warn(f Field, msg string) {
	*is = append(*is, Issue{Severity: SeverityWarning, Field: f, Message: msg})
}

func (is Issues) filter(sev Severity) Issues {
	var out Issues
	for _, i := range is {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

func (is *Issues) errorf(f Field, format string, args ...any) {
	*is = append(*is, Issue{Severity: SeverityError, Field: f, Message: fmt.Sprintf(format, args...)})
}

func (is *Issues) warnf(f Field, format string, args ...any) {
	*is = append(*is, Issue{Severity: SeverityWarning, Field: f, Message: fmt.Sprintf(format, args...)})
}
