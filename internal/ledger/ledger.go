// internal/ledger/ledger.go
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// ---- FILE FORMAT (LOCKED) ----
//
// UTF-8, one row per line, fields joined by Delimiter.
// The first line is the header, written once.
const (
	Delimiter  = ";"
	DateLayout = "02/01/2006"
	TimeLayout = "15:04"

	ResultOK  = "OK"
	ResultErr = "ERR"
)

// Fields is the header, in column order.
var Fields = []string{
	"Date", "Time", "Serial_Number", "ANT_ID", "FWVersion", "HWVersion",
	"SW_Testing", "Batch", "Producer", "Manufacturer", "BLE_Addr", "Result",
}

const serialColumn = 2

// Row is one test record.
type Row struct {
	At           time.Time
	Serial       string
	AntID        int
	FWVersion    string
	HWVersion    int
	SWTesting    string
	Batch        int
	Producer     int
	Manufacturer string
	BLEAddr      string
	Result       string
}

// Values returns the row's fields in column order.
func (r Row) Values() []string {
	return []string{
		r.At.Format(DateLayout),
		r.At.Format(TimeLayout),
		r.Serial,
		strconv.Itoa(r.AntID),
		r.FWVersion,
		strconv.Itoa(r.HWVersion),
		r.SWTesting,
		strconv.Itoa(r.Batch),
		strconv.Itoa(r.Producer),
		r.Manufacturer,
		r.BLEAddr,
		r.Result,
	}
}

// Ledger is an append-only report file.
type Ledger struct {
	path string
}

func New(path string) *Ledger {
	return &Ledger{path: path}
}

func (l *Ledger) Path() string { return l.path }

// EnsureHeader writes the header line when the file is absent or empty.
// An existing non-empty file is never touched.
func (l *Ledger) EnsureHeader(fields []string) error {
	st, err := os.Stat(l.path)
	switch {
	case err == nil && st.Size() > 0:
		return nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("ledger: stat %s: %w", l.path, err)
	}
	return l.appendLine(fields)
}

// Append writes r as one line, adding the header first if needed.
func (l *Ledger) Append(r Row) error {
	if err := l.EnsureHeader(Fields); err != nil {
		return err
	}
	return l.appendLine(r.Values())
}

// ContainsSerial reports whether any row carries serial.
// A missing file contains nothing.
func (l *Ledger) ContainsSerial(serial string) (bool, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: open %s: %w", l.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		cols := strings.Split(strings.TrimRight(sc.Text(), "\r"), Delimiter)
		if len(cols) > serialColumn && cols[serialColumn] == serial {
			return true, nil
		}
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("ledger: scan %s: %w", l.path, err)
	}
	return false, nil
}

func (l *Ledger) appendLine(fields []string) error {
	for _, v := range fields {
		if strings.ContainsAny(v, Delimiter+"\r\n") {
			return fmt.Errorf("ledger: field %q contains delimiter or newline", v)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", l.path, err)
	}

	line := strings.Join(fields, Delimiter) + "\n"
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("ledger: write %s: %w", l.path, err)
	}
	return f.Close()
}
