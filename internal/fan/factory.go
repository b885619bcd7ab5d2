package fan

import (
	"strings"

	"github.com/nerrad567/gray-logic-fan/internal/miio"
)

// profiles maps each known model to its profile constructor. Models not
// listed fall back to genericMiotProfile.
var profiles = map[string]func() *Profile{
	"zhimi.fan.v2":    smartmiMiioProfile,
	"zhimi.fan.v3":    smartmiMiioProfile,
	"zhimi.fan.sa1":   smartmiMiioProfile,
	"zhimi.fan.za1":   smartmiMiioProfile,
	"zhimi.fan.za3":   smartmiMiioProfile,
	"zhimi.fan.za4":   smartmiMiioProfile,
	"dmaker.fan.p5":   dmakerP5Profile,
	"dmaker.fan.1c":   dmakerACProfile,
	"dmaker.fan.p9":   func() *Profile { return dmakerDCProfile("dmaker-p9", dmakerP9Addresses) },
	"dmaker.fan.p10":  func() *Profile { return dmakerDCProfile("dmaker-p10", dmakerP10Addresses) },
	"zhimi.fan.za5":   smartmiDCProfile,
	"zhimi.fan.fa1":   func() *Profile { return smartmiFA1Profile("smartmi-fa1") },
	"zhimi.fan.fb1":   func() *Profile { return smartmiFA1Profile("smartmi-fb1") },
	"air.fan.ca23ad9": airCA23AD9Profile,
}

// profileFor returns a fresh profile for model.
func profileFor(model string) *Profile {
	if build, ok := profiles[strings.TrimSpace(model)]; ok {
		return build()
	}
	return genericMiotProfile()
}

// ProfileFamily returns the profile family a model maps to, e.g.
// "smartmi-miio" or "generic-miot" for unknown models.
func ProfileFamily(model string) string {
	return profileFor(model).Family
}

// KnownModel reports whether model has a dedicated profile.
func KnownModel(model string) bool {
	_, ok := profiles[strings.TrimSpace(model)]
	return ok
}

// NewDevice creates the device for a model.
//
// When t is non-nil its model takes precedence over the model argument. The
// device is returned unbound; call Attach to bind t and fetch properties.
// NewDevice performs no I/O.
//
// Parameters:
//   - t: Connected transport, or nil to build from a cached model
//   - model: Cached or configured model string
//   - deviceID: Device id, with or without the "miio:" prefix
//   - name: Display name used in logs
//
// Returns:
//   - *Device: Unbound device
//   - error: ErrModelRequired when model is empty and t is nil
func NewDevice(t miio.Transport, model, deviceID, name string, opts ...Option) (*Device, error) {
	if t != nil {
		if m := t.Model(); m != "" {
			model = m
		}
		if id := t.DeviceID(); id != "" {
			deviceID = id
		}
	}
	if model == "" {
		return nil, ErrModelRequired
	}

	d := newDevice(profileFor(model), model, deviceID, name, opts...)
	if !KnownModel(model) {
		d.logger.Info("unknown fan model, using generic miot profile")
	}
	return d, nil
}
