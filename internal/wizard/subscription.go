package wizard

import "github.com/muurk/opcua-console/internal/config"

// Subscription settings bounds
const (
	MinInterval = 100
	MaxInterval = 10000
	MinCount    = 1
	MaxCount    = 100
)

// Subscription describes how data is acquired from the server: by polling
// at a fixed interval or through an OPC UA subscription.
type Subscription struct {
	Mode string `json:"mode"`

	PollingInterval int `json:"pollingInterval"` // ms
	BufferSize      int `json:"bufferSize"`

	PublishingInterval int `json:"publishingInterval"` // ms
	LifetimeCount      int `json:"lifetimeCount"`
	MaxKeepAliveCount  int `json:"maxKeepAliveCount"`
}

// DefaultSubscription returns polling mode with every field at its default.
func DefaultSubscription() Subscription {
	return Subscription{
		Mode:               config.AcquisitionPolling,
		PollingInterval:    1000,
		BufferSize:         10,
		PublishingInterval: 1000,
		LifetimeCount:      10,
		MaxKeepAliveCount:  3,
	}
}

// Validate checks the fields of the active mode only.
func (s Subscription) Validate() FieldErrors {
	var errs FieldErrors

	switch s.Mode {
	case config.AcquisitionPolling:
		checkRange(&errs, "pollingInterval", "Polling interval", s.PollingInterval, MinInterval, MaxInterval)
		checkRange(&errs, "bufferSize", "Buffer size", s.BufferSize, MinCount, MaxCount)
	case config.AcquisitionSubscription:
		checkRange(&errs, "publishingInterval", "Publishing interval", s.PublishingInterval, MinInterval, MaxInterval)
		checkRange(&errs, "lifetimeCount", "Lifetime count", s.LifetimeCount, MinCount, MaxCount)
		checkRange(&errs, "maxKeepAliveCount", "Max keep-alive count", s.MaxKeepAliveCount, MinCount, MaxCount)
	default:
		errs.add("mode", "Data acquisition mode must be polling or subscription")
	}

	return errs
}

func checkRange(errs *FieldErrors, field, label string, v, lo, hi int) {
	if v < lo || v > hi {
		errs.add(field, "%s must be between %d and %d", label, lo, hi)
	}
}

// ToAcquisition returns the settings for the active mode as stored in the
// registry.
func (s Subscription) ToAcquisition() *config.Acquisition {
	a := &config.Acquisition{Mode: s.Mode}
	if s.Mode == config.AcquisitionSubscription {
		a.PublishingInterval = s.PublishingInterval
		a.LifetimeCount = s.LifetimeCount
		a.MaxKeepAliveCount = s.MaxKeepAliveCount
	} else {
		a.PollingInterval = s.PollingInterval
		a.BufferSize = s.BufferSize
	}
	return a
}

// SubscriptionFromAcquisition is the inverse of ToAcquisition; fields the
// stored mode does not use keep their defaults.
func SubscriptionFromAcquisition(a *config.Acquisition) Subscription {
	s := DefaultSubscription()
	if a == nil {
		return s
	}
	if a.Mode != "" {
		s.Mode = a.Mode
	}
	if a.PollingInterval > 0 {
		s.PollingInterval = a.PollingInterval
	}
	if a.BufferSize > 0 {
		s.BufferSize = a.BufferSize
	}
	if a.PublishingInterval > 0 {
		s.PublishingInterval = a.PublishingInterval
	}
	if a.LifetimeCount > 0 {
		s.LifetimeCount = a.LifetimeCount
	}
	if a.MaxKeepAliveCount > 0 {
		s.MaxKeepAliveCount = a.MaxKeepAliveCount
	}
	return s
}
