package native

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	initOnce sync.Once
	termOnce sync.Once
	initErr  error
)

// Initialize wraps portaudio.Initialize so repeated callers are safe.
func Initialize() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	return initErr
}

// Terminate balances a successful Initialize.
func Terminate() {
	if initErr != nil {
		return
	}
	termOnce.Do(func() {
		_ = portaudio.Terminate()
	})
}

// Device describes an audio device for listing.
type Device struct {
	Name            string  `json:"name"`
	MaxInput        int     `json:"maxInput"`
	MaxOutput       int     `json:"maxOutput"`
	DefaultSampleHz float64 `json:"defaultSampleHz"`
	HostAPI         string  `json:"hostApi"`
	IsDefaultInput  bool    `json:"isDefaultInput"`
	IsDefaultOutput bool    `json:"isDefaultOutput"`
	Loopback        bool    `json:"loopback"`
}

// ListDevices returns every device across host APIs, sorted by host and name.
func ListDevices() ([]Device, error) {
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defaultInput := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInput = def.Index
	}

	devices := make([]Device, 0, len(hosts)*4)
	for _, host := range hosts {
		for _, d := range host.Devices {
			devices = append(devices, Device{
				Name:            d.Name,
				MaxInput:        d.MaxInputChannels,
				MaxOutput:       d.MaxOutputChannels,
				DefaultSampleHz: d.DefaultSampleRate,
				HostAPI:         host.Name,
				IsDefaultInput:  d.Index == defaultInput,
				IsDefaultOutput: host.DefaultOutputDevice != nil && d.Index == host.DefaultOutputDevice.Index,
				Loopback:        scoreDevice(d.Name, 0, false, false) >= 60,
			})
		}
	}
	sortDeviceList(devices)
	return devices, nil
}

func sortDeviceList(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})
}
