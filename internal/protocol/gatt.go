// internal/protocol/gatt.go
package protocol

// Characteristic identifiers. Co-versioned with firmware.
const (
	CharEEPROMWrite  = "347b0012-7635-408b-8918-8ff3949ce592"
	CharEEPROMRead   = "347b0013-7635-408b-8918-8ff3949ce592"
	CharEEPROMResult = "347b0014-7635-408b-8918-8ff3949ce592"
	CharControlPoint = "347b0044-7635-408b-8918-8ff3949ce592"
	CharButtons      = "347b0045-7635-408b-8918-8ff3949ce592"

	// Device Information service, full 128-bit form.
	CharSerialNumber     = "00002a25-0000-1000-8000-00805f9b34fb"
	CharHardwareRevision = "00002a27-0000-1000-8000-00805f9b34fb"
	CharSoftwareRevision = "00002a28-0000-1000-8000-00805f9b34fb"
)

// Control point commands.
const (
	cmdPower   byte = 0x0A
	powerSleep byte = 0x00
)

// PowerDownCommand puts the unit to sleep. Written without ack.
func PowerDownCommand() []byte {
	return []byte{cmdPower, powerSleep}
}
