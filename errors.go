package ddns

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned by Lookup when no record in the zone has the requested name.
	ErrRecordNotFound = errors.New("no DNS record matches the domain")
	// ErrMalformedResponse is returned when a provider response is not the expected JSON shape.
	ErrMalformedResponse = errors.New("malformed response body")
	// ErrMalformedRecord is returned when the matching record lacks a string id or content.
	ErrMalformedRecord = errors.New("malformed DNS record")
	// ErrNoAddress is returned when a router response contains no dotted-quad address.
	ErrNoAddress = errors.New("no IPv4 address in response")
)

// StatusError reports an unexpected HTTP response status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// DiscoveryError is returned when the public IP could not be determined.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string { return "discovering public IP: " + e.Err.Error() }
func (e *DiscoveryError) Unwrap() error { return e.Err }

// LookupError is returned when the DNS record could not be read from the provider.
type LookupError struct {
	Domain string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("looking up DNS record %s: %s", e.Domain, e.Err)
}
func (e *LookupError) Unwrap() error { return e.Err }

// UpdateError is returned when the provider did not confirm a record update.
type UpdateError struct {
	Domain string
	ID     string
	Err    error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("updating DNS record %s (%s): %s", e.Domain, e.ID, e.Err)
}
func (e *UpdateError) Unwrap() error { return e.Err }
