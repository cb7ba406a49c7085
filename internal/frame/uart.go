package frame

import "errors"

const (
	UARTPacketSize = 5
	UARTStartByte  = 0xAA
)

// Gateway status codes written into payload[3].
const (
	StatusOK          uint8 = 0x00
	StatusWarnLowVolt uint8 = 0x01
	StatusCritTemp    uint8 = 0x02
)

var (
	ErrSyncByte = errors.New("uart packet: bad sync byte")
	ErrChecksum = errors.New("uart packet: checksum mismatch")
	ErrShort    = errors.New("uart packet: short packet")
)

// SensorSample is what the mock sensor reports over its serial link.
type SensorSample struct {
	VoltageMV    uint16
	TemperatureC uint8
}

func checksum(b []byte) byte {
	return b[0] + b[1] + b[2] + b[3]
}

// EncodeUART lays a sample out as [0xAA, V_hi, V_lo, temp, checksum].
func EncodeUART(s SensorSample) []byte {
	b := []byte{UARTStartByte, byte(s.VoltageMV >> 8), byte(s.VoltageMV), s.TemperatureC, 0}
	b[4] = checksum(b)
	return b
}

func DecodeUART(b []byte) (SensorSample, error) {
	if len(b) < UARTPacketSize {
		return SensorSample{}, ErrShort
	}
	if b[0] != UARTStartByte {
		return SensorSample{}, ErrSyncByte
	}
	if checksum(b) != b[4] {
		return SensorSample{}, ErrChecksum
	}
	return SensorSample{
		VoltageMV:    uint16(b[1])<<8 | uint16(b[2]),
		TemperatureC: b[3],
	}, nil
}

// EvaluateStatus is the gateway's fixed safety rule. Temperature wins over voltage.
func EvaluateStatus(voltageMV uint16, tempC uint8) uint8 {
	if tempC > 60 {
		return StatusCritTemp
	}
	if voltageMV < 3100 {
		return StatusWarnLowVolt
	}
	return StatusOK
}
