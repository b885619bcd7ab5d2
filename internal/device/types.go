package device

import "time"

// Record is the cached identity of one fan.
//
// The bridge writes it when the fan reports its model and reads it on
// startup, so capabilities can be published before the first connect.
type Record struct {
	// ID is the bridge's identifier for the fan (fan.id in config).
	ID string `json:"id"`

	Name    string `json:"name"`
	Address string `json:"address"`

	// DeviceID is the numeric miIO device id reported by the fan.
	DeviceID string `json:"device_id,omitempty"`

	// Model is the model string last reported, e.g. "zhimi.fan.za5".
	Model string `json:"model,omitempty"`

	// Family and Protocol describe the profile the model resolved to.
	Family   string `json:"family,omitempty"`
	Protocol string `json:"protocol,omitempty"`

	Firmware string `json:"firmware,omitempty"`

	// LastSeen is the time of the last successful connect.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is a property snapshot as stored in history.
type State map[string]any

// Clone returns a copy of the record safe to hand out.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.LastSeen != nil {
		t := *r.LastSeen
		c.LastSeen = &t
	}
	return &c
}
