package device

import (
	"time"
)

// DefaultFallbackValidity is used when a status update carries no validity option.
const DefaultFallbackValidity = 10 * time.Minute

// Factory creates devices for supported models.
type Factory struct {
	client           Fetcher
	fallbackValidity time.Duration
	after            afterFunc
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithFallbackValidity sets the liveness window for updates without a validity option.
// Zero or negative keeps devices online until their next advertised validity expires.
func WithFallbackValidity(d time.Duration) FactoryOption {
	return func(f *Factory) { f.fallbackValidity = d }
}

// NewFactory creates a device factory.
//
// Parameters:
//   - client: HTTP fetcher shared by every device; may be nil
//   - opts: optional settings
func NewFactory(client Fetcher, opts ...FactoryOption) *Factory {
	f := &Factory{
		client:           client,
		fallbackValidity: DefaultFallbackValidity,
		after:            realAfterFunc,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a new device for the model tag, or nil if the model is unknown.
func (f *Factory) Create(deviceType, deviceID, host string) *Device {
	model, err := Lookup(deviceType)
	if err != nil {
		return nil
	}
	return &Device{
		deviceType:       deviceType,
		id:               deviceID,
		model:            model,
		client:           f.client,
		fallbackValidity: f.fallbackValidity,
		after:            f.after,
		host:             host,
	}
}
