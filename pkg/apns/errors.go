package apns

import "fmt"

// NoHttp2SupportError is returned by Send when the connection's transport
// cannot speak HTTP/2. No request is issued when it is returned.
type NoHttp2SupportError struct {
	Transport string
	Err       error
}

func (e *NoHttp2SupportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("apns: transport %s has no HTTP/2 support: %v", e.Transport, e.Err)
	}
	return fmt.Sprintf("apns: transport %s has no HTTP/2 support", e.Transport)
}

func (e *NoHttp2SupportError) Unwrap() error { return e.Err }

// ValidationError reports a Message that cannot be built.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("apns: invalid message %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("apns: invalid message %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// InvalidDeviceError reports a Device rejected by Devices.Add.
type InvalidDeviceError struct {
	Token string
	Field string
	Err   error
}

func (e *InvalidDeviceError) Error() string {
	return fmt.Sprintf("apns: invalid device %q: field %s: %v", e.Token, e.Field, e.Err)
}

func (e *InvalidDeviceError) Unwrap() error { return e.Err }
