package ssd1306

import "fmt"

// Control bytes prefixing every I2C write.
const (
	controlCommand = 0x00
	controlData    = 0x40
)

// AddressingMode selects how the GDDRAM pointer advances.
type AddressingMode uint8

const (
	AddressingHorizontal AddressingMode = 0
	AddressingVertical   AddressingMode = 1
	AddressingPage       AddressingMode = 2
)

// VComHLevel is the VCOMH deselect level.
type VComHLevel uint8

const (
	VComH065 VComHLevel = 0x00
	VComH077 VComHLevel = 0x20
	VComH083 VComHLevel = 0x30
)

// Command is one encoded controller command, 1 to 7 bytes.
type Command struct {
	name string
	n    uint8
	buf  [7]byte
}

func newCommand(name string, b ...byte) Command {
	c := Command{name: name, n: uint8(len(b))}
	copy(c.buf[:], b)
	return c
}

// Bytes returns the command's opcode and parameters.
func (c Command) Bytes() []byte { return c.buf[:c.n] }

// Len is the encoded length in bytes.
func (c Command) Len() int { return int(c.n) }

func (c Command) String() string { return fmt.Sprintf("%s % X", c.name, c.Bytes()) }

func bit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Fundamental commands.

func SetContrast(v uint8) Command   { return newCommand("SetContrast", 0x81, v) }
func EntireDisplay(on bool) Command { return newCommand("EntireDisplay", 0xA4|bit(on)) }
func Inverse(on bool) Command       { return newCommand("Inverse", 0xA6|bit(on)) }
func DisplayOn(on bool) Command     { return newCommand("DisplayOn", 0xAE|bit(on)) }

// Scrolling commands.

func ContinuousHorizontalScroll(left bool, startPage, interval, endPage uint8) Command {
	return newCommand("ContinuousHorizontalScroll",
		0x26|bit(left), 0x00, startPage, interval, endPage, 0x00, 0xFF)
}

func ContinuousVerticalAndHorizontalScroll(left bool, startPage, interval, endPage, verticalOffset uint8) Command {
	return newCommand("ContinuousVerticalAndHorizontalScroll",
		0x28|(1<<bit(left)), 0x00, startPage, interval, endPage, verticalOffset)
}

func ScrollActivation(on bool) Command { return newCommand("ScrollActivation", 0x2E|bit(on)) }

func SetVerticalScrollArea(fixedRows, scrollingRows uint8) Command {
	return newCommand("SetVerticalScrollArea", 0xA3, fixedRows, scrollingRows)
}

// Addressing commands.

// SetColumnBoundForAddressing sets the low or high nibble of the page-mode
// column start address.
func SetColumnBoundForAddressing(high bool, column uint8) Command {
	return newCommand("SetColumnBoundForAddressing", bit(high)<<4|column&0x0F)
}

func SetAddressingMode(m AddressingMode) Command {
	return newCommand("SetAddressingMode", 0x20, uint8(m))
}

func SetColumnAddress(start, end uint8) Command {
	return newCommand("SetColumnAddress", 0x21, start, end)
}

func SetPageAddress(start, end uint8) Command {
	return newCommand("SetPageAddress", 0x22, start, end)
}

func SetPageStartAddress(page uint8) Command {
	return newCommand("SetPageStartAddress", 0xB0|page&0x0F)
}

// Hardware configuration commands.

func SetDisplayStartLine(line uint8) Command {
	return newCommand("SetDisplayStartLine", 0x40|line&0x3F)
}

func SetSegmentRemap(remap bool) Command {
	return newCommand("SetSegmentRemap", 0xA0|bit(remap))
}

func SetMultiplexRatio(ratio uint8) Command {
	return newCommand("SetMultiplexRatio", 0xA8, ratio&0x3F)
}

func SetComOutputScanDirection(remapped bool) Command {
	return newCommand("SetComOutputScanDirection", 0xC0|bit(remapped)<<3)
}

func SetDisplayOffset(offset uint8) Command {
	return newCommand("SetDisplayOffset", 0xD3, offset&0x3F)
}

// SetComPinsHardwareConfiguration: alternative selects the alternative COM
// pin layout (A[4]), leftRightRemap swaps the COM halves (A[5]).
func SetComPinsHardwareConfiguration(alternative, leftRightRemap bool) Command {
	return newCommand("SetComPinsHardwareConfiguration",
		0xDA, 0x02|bit(alternative)<<4|bit(leftRightRemap)<<5)
}

// Timing and driving scheme commands.

// SetDisplayClockDiv packs the divide ratio into the low nibble and the
// oscillator frequency into the high nibble.
func SetDisplayClockDiv(ratio, frequency uint8) Command {
	return newCommand("SetDisplayClockDiv", 0xD5, ratio&0x0F|(frequency&0x0F)<<4)
}

func SetPreChargePeriod(phase1, phase2 uint8) Command {
	return newCommand("SetPreChargePeriod", 0xD9, phase1&0x0F|(phase2&0x0F)<<4)
}

func SetVComHDeselectLevel(level VComHLevel) Command {
	return newCommand("SetVComHDeselectLevel", 0xDB, uint8(level)&0x70)
}

func Nop() Command { return newCommand("Nop", 0xE3) }

func ChargePump(enabled bool) Command {
	return newCommand("ChargePump", 0x8D, 0x10|bit(enabled)<<2)
}
