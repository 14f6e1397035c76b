package apns

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Device is a single push target. A zero Badge or empty Sound leaves the
// message's own aps values untouched.
type Device struct {
	Token string `json:"token" validate:"required"`
	Badge int    `json:"badge,omitempty" validate:"gte=0"`
	Sound string `json:"sound,omitempty"`
}

// Devices is an ordered, append-only collection of push targets.
// Insertion order is the send order and the result order. Tokens need not be unique.
type Devices struct {
	mu    sync.RWMutex
	items []Device
}

// NewDevices builds a collection from devices, stopping at the first invalid one.
func NewDevices(devices ...Device) (*Devices, error) {
	d := &Devices{items: make([]Device, 0, len(devices))}
	for _, device := range devices {
		if err := d.Add(device); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add appends device after validating it.
func (d *Devices) Add(device Device) error {
	if err := validate.Struct(device); err != nil {
		return invalidDevice(device, err)
	}
	d.mu.Lock()
	d.items = append(d.items, device)
	d.mu.Unlock()
	return nil
}

// Len returns the number of devices added so far.
func (d *Devices) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}

// All returns a copy of the devices in insertion order.
func (d *Devices) All() []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Device, len(d.items))
	copy(out, d.items)
	return out
}

// Tokens returns the device tokens in insertion order.
func (d *Devices) Tokens() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.items))
	for i, device := range d.items {
		out[i] = device.Token
	}
	return out
}

func invalidDevice(device Device, err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &InvalidDeviceError{
			Token: device.Token,
			Field: fe.Field(),
			Err:   fmt.Errorf("failed %q validation", fe.Tag()),
		}
	}
	return &InvalidDeviceError{Token: device.Token, Field: "device", Err: err}
}
