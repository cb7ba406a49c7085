package frame

import (
	"encoding/binary"
	"errors"

	"bus-monitor/internal/models"
)

const (
	// Size is the only accepted datagram length: 4-byte id, 1-byte length, 8-byte payload.
	Size = 13

	DefaultBusID = 0x100
	PayloadLen   = 8
)

var ErrRejectedFrame = errors.New("frame rejected: datagram is not 13 bytes")

// DecodeFrame splits a datagram into its fields. The declared length byte is
// carried through as-is and never checked against the payload.
func DecodeFrame(b []byte) (models.RawFrame, error) {
	if len(b) != Size {
		return models.RawFrame{}, ErrRejectedFrame
	}

	var f models.RawFrame
	f.BusID = binary.LittleEndian.Uint32(b[0:4])
	f.Length = b[4]
	copy(f.Payload[:], b[5:Size])
	return f, nil
}

func Decode(b []byte) (models.Reading, error) {
	f, err := DecodeFrame(b)
	if err != nil {
		return models.Reading{}, err
	}
	return ReadingFrom(f), nil
}

// ReadingFrom extracts sensor values from the payload. Voltage is always
// packed big-endian in payload[0..1].
func ReadingFrom(f models.RawFrame) models.Reading {
	return models.Reading{
		BusID:        f.BusID,
		VoltageMV:    uint16(f.Payload[0])<<8 | uint16(f.Payload[1]),
		TemperatureC: f.Payload[2],
		Status:       f.Payload[3],
	}
}

func Encode(f models.RawFrame) []byte {
	b := make([]byte, Size)
	binary.LittleEndian.PutUint32(b[0:4], f.BusID)
	b[4] = f.Length
	copy(b[5:], f.Payload[:])
	return b
}

// NewFrame builds the frame a gateway emits for one sensor measurement.
func NewFrame(busID uint32, voltageMV uint16, tempC, status uint8) models.RawFrame {
	f := models.RawFrame{BusID: busID, Length: PayloadLen}
	f.Payload[0] = byte(voltageMV >> 8)
	f.Payload[1] = byte(voltageMV)
	f.Payload[2] = tempC
	f.Payload[3] = status
	return f
}
