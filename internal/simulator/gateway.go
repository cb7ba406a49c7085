package simulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bus-monitor/internal/frame"

	"go.uber.org/zap"
)

// Gateway validates serial packets from the sensor, stamps the safety status
// and re-frames them as 13-byte bus datagrams.
type Gateway struct {
	busID uint32
}

func NewGateway(busID uint32) *Gateway {
	return &Gateway{busID: busID}
}

func (g *Gateway) Forward(packet []byte) ([]byte, error) {
	s, err := frame.DecodeUART(packet)
	if err != nil {
		return nil, err
	}
	status := frame.EvaluateStatus(s.VoltageMV, s.TemperatureC)
	return frame.Encode(frame.NewFrame(g.busID, s.VoltageMV, s.TemperatureC, status)), nil
}

// Sink receives the gateway's datagrams.
type Sink interface {
	Send(b []byte) error
}

type Simulator struct {
	sensor   *Sensor
	gateway  *Gateway
	sink     Sink
	interval time.Duration
	log      *zap.Logger
}

func New(sensor *Sensor, gateway *Gateway, sink Sink, interval time.Duration, log *zap.Logger) *Simulator {
	return &Simulator{
		sensor:   sensor,
		gateway:  gateway,
		sink:     sink,
		interval: interval,
		log:      log,
	}
}

// Step produces, frames and sends one sample.
func (s *Simulator) Step() error {
	sample := s.sensor.Read()

	datagram, err := s.gateway.Forward(frame.EncodeUART(sample))
	if err != nil {
		if errors.Is(err, frame.ErrChecksum) || errors.Is(err, frame.ErrSyncByte) {
			s.log.Warn("gateway dropped packet", zap.Error(err))
			return nil
		}
		return err
	}

	if err := s.sink.Send(datagram); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}

	s.log.Debug("frame sent",
		zap.Int("seq", s.sensor.Count()),
		zap.Uint16("voltage_mv", sample.VoltageMV),
		zap.Uint8("temp_c", sample.TemperatureC))
	return nil
}

// Run steps on every tick until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.log.Info("simulator started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("simulator stopped", zap.Int("sent", s.sensor.Count()))
			return nil
		case <-t.C:
			if err := s.Step(); err != nil {
				return err
			}
		}
	}
}
