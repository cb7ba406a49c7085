package simulator

import (
	"math/rand"

	"bus-monitor/internal/frame"
)

const (
	sawtoothStep   = 10
	sawtoothMin    = 3000
	sawtoothMax    = 4000
	sagStart       = 600
	faultVoltageMV = 100
	faultPercent   = 2
)

// Sensor simulates a degrading battery: a sawtooth between 3000 and 4000mV,
// noise that widens every 100 samples, a slow sag after 600 samples and rare
// hard drops to 100mV once faultAfter samples have been sent.
type Sensor struct {
	rng        *rand.Rand
	voltage    int
	tempC      uint8
	noiseAmp   float64
	count      int
	faultAfter int
}

func NewSensor(seed int64, faultAfter int) *Sensor {
	return &Sensor{
		rng:        rand.New(rand.NewSource(seed)),
		voltage:    3300,
		tempC:      45,
		noiseAmp:   2.0,
		faultAfter: faultAfter,
	}
}

func (s *Sensor) Read() frame.SensorSample {
	s.count++

	s.voltage += sawtoothStep
	if s.voltage > sawtoothMax {
		s.voltage = sawtoothMin
	}

	if s.count%100 == 0 {
		s.noiseAmp += 0.5
	}
	amp := int(s.noiseAmp)
	s.voltage += s.rng.Intn(int(s.noiseAmp*2)) - amp

	if s.count > sagStart && s.voltage > 200 {
		s.voltage--
	}

	if s.faultAfter > 0 && s.count > s.faultAfter && s.rng.Intn(100)+1 <= faultPercent {
		s.voltage = faultVoltageMV
	}

	if s.voltage < 0 {
		s.voltage = 0
	}
	if s.voltage > 0xFFFF {
		s.voltage = 0xFFFF
	}

	return frame.SensorSample{VoltageMV: uint16(s.voltage), TemperatureC: s.tempC}
}

// Count is the number of samples produced so far.
func (s *Sensor) Count() int { return s.count }
