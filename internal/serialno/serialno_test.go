// internal/serialno/serialno_test.go
package serialno

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/ble-fixture/internal/catalog"
	"github.com/tamzrod/ble-fixture/internal/checksum"
)

var march2025 = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

func square(t *testing.T) catalog.Device {
	t.Helper()
	d, err := catalog.Lookup("SQUARE")
	require.NoError(t, err)
	return d
}

func TestValidate_SquareScenario(t *testing.T) {
	id, issues := Validate("SQC2500074781", square(t), march2025)

	require.Empty(t, issues)
	assert.True(t, issues.Valid())
	assert.Equal(t, "SQ", id.DeviceCode)
	assert.Equal(t, byte('C'), id.MonthCode)
	assert.Equal(t, 25, id.YearSuffix)
	assert.Equal(t, 7, id.Sequence)
	assert.Equal(t, uint16(0x4781), id.Checksum)
}

func TestValidate_LowercaseHexAccepted(t *testing.T) {
	_, issues := Validate("SQC250001074f", square(t), march2025)
	assert.True(t, issues.Valid(), issues)
}

func TestFormat_EveryFullLayoutDeviceValidates(t *testing.T) {
	for _, d := range catalog.Devices() {
		if !d.FullLayout() {
			continue
		}
		for _, seq := range []int{0, 7, 1234, MaxSequence} {
			raw, err := Format(d, march2025, seq)
			require.NoError(t, err)

			_, issues := Validate(raw, d, march2025)
			assert.Empty(t, issues.Errors(), "%s seq=%d raw=%s", d.Name, seq, raw)
			assert.Empty(t, issues.Warnings(), "%s seq=%d raw=%s", d.Name, seq, raw)
		}
	}
}

func TestFormat_SequenceRange(t *testing.T) {
	_, err := Format(square(t), march2025, -1)
	assert.Error(t, err)
	_, err = Format(square(t), march2025, MaxSequence+1)
	assert.Error(t, err)
}

func TestValidate_SingleCharMutationBreaksChecksum(t *testing.T) {
	d := square(t)
	valid, err := Format(d, march2025, 42)
	require.NoError(t, err)

	alphabet := "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	for pos := 0; pos < 9; pos++ {
		for _, c := range []byte(alphabet) {
			if valid[pos] == c {
				continue
			}
			mut := []byte(valid)
			mut[pos] = c

			_, issues := Validate(string(mut), d, march2025)
			assert.True(t, issues.Has(SeverityError, FieldChecksum), "pos=%d char=%c", pos, c)
			assert.False(t, issues.Valid())
		}
	}
}

func TestValidate_DateMismatchIsWarningOnly(t *testing.T) {
	d := square(t)
	// prepared in January 2024, used in March 2025
	raw, err := Format(d, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), 12)
	require.NoError(t, err)

	_, issues := Validate(raw, d, march2025)
	assert.True(t, issues.Valid())
	assert.True(t, issues.Has(SeverityWarning, FieldMonth))
	assert.True(t, issues.Has(SeverityWarning, FieldYear))
	assert.Len(t, issues.Warnings(), 2)
}

func TestValidate_MonthOutOfRangeIsError(t *testing.T) {
	head := "SQM250007"
	raw := head + hex4(t, head)

	_, issues := Validate(raw, square(t), march2025)
	assert.True(t, issues.Has(SeverityError, FieldMonth))
	assert.False(t, issues.Has(SeverityError, FieldChecksum))
	assert.False(t, issues.Valid())
}

func TestValidate_MultipleIssuesReported(t *testing.T) {
	// wrong prefix, bad sequence, bad checksum, wrong length
	_, issues := Validate("AVC25X0070000Z", square(t), march2025)

	assert.True(t, issues.Has(SeverityError, FieldLength))
	assert.True(t, issues.Has(SeverityError, FieldDeviceCode))
	assert.True(t, issues.Has(SeverityError, FieldSequence))
	assert.True(t, issues.Has(SeverityError, FieldChecksum))
	assert.Error(t, issues.Err())
}

func TestValidate_NonDecimalYear(t *testing.T) {
	head := "SQC2A0007"
	_, issues := Validate(head+hex4(t, head), square(t), march2025)
	assert.True(t, issues.Has(SeverityError, FieldYear))
}

func TestValidate_ShortInputDoesNotPanic(t *testing.T) {
	for _, raw := range []string{"", "S", "SQ", "SQC", "SQC25", "SQC250007", "SQC2500074"} {
		assert.NotPanics(t, func() {
			_, issues := Validate(raw, square(t), march2025)
			assert.False(t, issues.Valid(), raw)
			assert.True(t, issues.Has(SeverityError, FieldLength), raw)
		})
	}
}

func TestValidate_ShortLengthDeviceRejectsEveryEntry(t *testing.T) {
	zona, err := catalog.Lookup("ZONA")
	require.NoError(t, err)

	for _, raw := range []string{"ZN!!!!!", "ZNZZZZZ", "ZN-9 xq", "ZNC2500"} {
		_, issues := Validate(raw, zona, march2025)
		assert.False(t, issues.Valid(), raw)
		// fields past position 7 are missing
		assert.True(t, issues.Has(SeverityError, FieldChecksum), raw)
	}

	_, issues := Validate("ZN!!!!!", zona, march2025)
	assert.True(t, issues.Has(SeverityError, FieldMonth))
	assert.True(t, issues.Has(SeverityError, FieldYear))
	assert.True(t, issues.Has(SeverityError, FieldSequence))

	_, issues = Validate("SQ12345", zona, march2025)
	assert.True(t, issues.Has(SeverityError, FieldDeviceCode))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "SQC2500074781", Normalize("  sqc2500074781\r\n"))
}

func TestIssues_WarnAndErr(t *testing.T) {
	var is Issues
	is.Warn(FieldDuplicate, "already logged")

	assert.True(t, is.Valid())
	assert.NoError(t, is.Err())
	assert.Equal(t, "warning: duplicate: already logged", is[0].String())
}

func hex4(t *testing.T, head string) string {
	t.Helper()
	return fmt.Sprintf("%04X", checksum.String(head))
}
