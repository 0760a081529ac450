//go:build !gl

package shader

// GLFactory is unavailable without the gl build tag; every acquisition
// fails with ErrGPUUnavailable.
func GLFactory(title string, visible bool) DeviceFactory {
	return func(w, h int) (Device, error) {
		return nil, ErrGPUUnavailable
	}
}
