// internal/serialno/serialno.go
package serialno

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tamzrod/ble-fixture/internal/catalog"
	"github.com/tamzrod/ble-fixture/internal/checksum"
)

// ---- LAYOUT (LOCKED) ----
//
// 0–1   device code
// 2     month code A..L
// 3–4   year suffix, decimal
// 5–8   sequence, decimal
// 9–12  checksum over [0:9], hex
const (
	codeStart, codeEnd         = 0, 2
	monthPos                   = 2
	yearStart, yearEnd         = 3, 5
	seqStart, seqEnd           = 5, 9
	checksumStart, checksumEnd = 9, 13

	// MaxSequence is the largest sequence counter a serial can carry.
	MaxSequence = 9999
)

// MonthLetters maps month 1..12 to its code letter.
const MonthLetters = "ABCDEFGHIJKL"

// Identifier is a decoded serial. Immutable once returned by Validate.
type Identifier struct {
	Raw        string
	DeviceCode string
	MonthCode  byte
	YearSuffix int
	Sequence   int
	Checksum   uint16
}

// MonthLetter returns the code letter for m.
func MonthLetter(m time.Month) byte {
	return MonthLetters[int(m)-1]
}

// Normalize cleans operator input: trims whitespace and upper-cases.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Format builds a serial for device d dated at t with the given sequence.
// The checksum is computed over the first 9 characters.
func Format(d catalog.Device, t time.Time, seq int) (string, error) {
	if seq < 0 || seq > MaxSequence {
		return "", fmt.Errorf("serialno: sequence %d out of range 0-%d", seq, MaxSequence)
	}
	if len(d.SerialPrefix) != 2 {
		return "", fmt.Errorf("serialno: device %q has invalid prefix %q", d.Name, d.SerialPrefix)
	}

	head := fmt.Sprintf("%s%c%02d%04d", d.SerialPrefix, MonthLetter(t.Month()), t.Year()%100, seq)
	return fmt.Sprintf("%s%04X", head, checksum.String(head)), nil
}

// Validate decodes raw against device d, checking the date code against now.
// Every check runs independently; the returned Issues holds all of them.
// The Identifier is meaningful only when issues.Valid() is true.
func Validate(raw string, d catalog.Device, now time.Time) (Identifier, Issues) {
	var (
		id     = Identifier{Raw: raw}
		issues Issues
	)

	if len(raw) != d.SerialLength {
		issues.errorf(FieldLength, "serial length %d, want %d", len(raw), d.SerialLength)
	}

	// device code
	if code, ok := field(raw, codeStart, codeEnd); !ok {
		issues.errorf(FieldDeviceCode, "device code missing")
	} else {
		id.DeviceCode = code
		if code != d.SerialPrefix {
			issues.errorf(FieldDeviceCode, "device code %q, want %q", code, d.SerialPrefix)
		}
	}

	// month
	if m, ok := field(raw, monthPos, monthPos+1); !ok {
		issues.errorf(FieldMonth, "month code missing")
	} else {
		id.MonthCode = m[0]
		want := MonthLetter(now.Month())
		switch {
		case m[0] < 'A' || m[0] > 'L':
			issues.errorf(FieldMonth, "month code %q outside A-L", m)
		case m[0] != want:
			issues.warnf(FieldMonth, "month code %q is not the current month %q", m, string(want))
		}
	}

	// year
	if y, ok := field(raw, yearStart, yearEnd); !ok {
		issues.errorf(FieldYear, "year suffix missing")
	} else if v, err := decimal(y); err != nil || v < 0 || v > 99 {
		issues.errorf(FieldYear, "year suffix %q is not a 2-digit number", y)
	} else {
		id.YearSuffix = v
		if cur := now.Year() % 100; v != cur {
			issues.warnf(FieldYear, "year suffix %02d is not the current year %02d", v, cur)
		}
	}

	// sequence
	if s, ok := field(raw, seqStart, seqEnd); !ok {
		issues.errorf(FieldSequence, "sequence missing")
	} else if v, err := decimal(s); err != nil || v < 0 || v > MaxSequence {
		issues.errorf(FieldSequence, "sequence %q outside 0-%d", s, MaxSequence)
	} else {
		id.Sequence = v
	}

	// checksum
	if c, ok := field(raw, checksumStart, checksumEnd); !ok {
		issues.errorf(FieldChecksum, "checksum missing")
	} else if v, err := strconv.ParseUint(c, 16, 16); err != nil {
		issues.errorf(FieldChecksum, "checksum %q is not 4 hex digits", c)
	} else {
		id.Checksum = uint16(v)
		if calc := checksum.String(raw[:checksumStart]); calc != id.Checksum {
			issues.errorf(FieldChecksum, "checksum %04X does not match %04X", id.Checksum, calc)
		}
	}

	return id, issues
}

// field returns raw[start:end] when present.
func field(raw string, start, end int) (string, bool) {
	if len(raw) < end {
		return "", false
	}
	return raw[start:end], true
}

// decimal parses digits only; signs and spaces are rejected.
func decimal(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("non-digit %q", s[i])
		}
	}
	return strconv.Atoi(s)
}
