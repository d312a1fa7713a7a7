package capture

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
)

// DeviceProbe checks for capture devices through miniaudio.
type DeviceProbe struct {
	log  *logger.Logger
	list func() ([]string, error)
}

// NewDeviceProbe creates a probe backed by the system audio backends.
func NewDeviceProbe(log *logger.Logger) *DeviceProbe {
	p := &DeviceProbe{log: log}
	p.list = p.captureDevices
	return p
}

// Devices returns the names of the available capture devices.
func (p *DeviceProbe) Devices() ([]string, error) {
	return p.list()
}

// Available reports ErrCapabilityUnavailable when no microphone is present.
func (p *DeviceProbe) Available() error {
	names, err := p.list()
	if err != nil {
		return fmt.Errorf("capture: enumerate devices: %v: %w", err, domain.ErrCapabilityUnavailable)
	}
	if len(names) == 0 {
		return fmt.Errorf("capture: no capture devices: %w", domain.ErrCapabilityUnavailable)
	}
	p.log.Debug("probe: %d capture device(s): %v", len(names), names)
	return nil
}

func (p *DeviceProbe) captureDevices() ([]string, error) {
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		p.log.Debug("miniaudio: %s", msg)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = mCtx.Uninit(); mCtx.Free() }()

	infos, err := mCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for i := range infos {
		names = append(names, infos[i].Name())
	}
	return names, nil
}
