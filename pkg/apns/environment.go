// Package apns delivers one notification to an ordered batch of device tokens
// over a single, reused HTTP/2 connection to the Apple Push Notification service.
//
// Authentication is certificate based. Every device produces exactly one
// Response in the returned Results, in the order the devices were added.
package apns

import (
	"fmt"
	"strings"
)

// Environment selects the APNS deployment a Client talks to.
type Environment int

const (
	Production Environment = iota
	Sandbox
)

const (
	hostProduction  = "https://api.push.apple.com"
	hostDevelopment = "https://api.development.push.apple.com"
	devicePath      = "/3/device/"
)

// ParseEnvironment maps a configuration string onto an Environment.
// "development" is accepted as an alias of "sandbox".
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production, nil
	case "sandbox", "development", "dev":
		return Sandbox, nil
	}
	return Production, fmt.Errorf("unknown apns environment %q", s)
}

// BaseURL returns the device endpoint prefix; the device token is appended to it.
func (e Environment) BaseURL() string {
	if e == Sandbox {
		return hostDevelopment + devicePath
	}
	return hostProduction + devicePath
}

func (e Environment) String() string {
	switch e {
	case Production:
		return "production"
	case Sandbox:
		return "sandbox"
	}
	return fmt.Sprintf("Environment(%d)", int(e))
}

func (e Environment) valid() bool {
	return e == Production || e == Sandbox
}
