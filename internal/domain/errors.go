package domain

import (
	"errors"
	"fmt"
)

// ErrAdapterAbsent is returned when the scanning interface is not attached
var ErrAdapterAbsent = errors.New("wireless adapter absent")

// ErrNoAddress is returned when the interface holds no IPv4 address
var ErrNoAddress = errors.New("no IPv4 address on interface")

// ErrUnjoinable marks a join failure that repeats on every attempt, such as
// a stored passphrase wpa_supplicant cannot accept
var ErrUnjoinable = errors.New("network cannot be joined")

// ConnectStage names the step of a join that failed
type ConnectStage string

const (
	StagePrecondition ConnectStage = "precondition"
	StageProfile      ConnectStage = "profile"
	StageAssociate    ConnectStage = "associate"
	StageAddress      ConnectStage = "address"
)

// ConnectError reports a failed join
type ConnectError struct {
	Stage ConnectStage
	SSID  string
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %q failed at %s: %v", e.SSID, e.Stage, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ScanErrorKind classifies a failed scan
type ScanErrorKind string

const (
	ScanToolFailure ScanErrorKind = "tool_failure"
	ScanTimeout     ScanErrorKind = "timeout"
)

// ScanError reports a failed scanner run
type ScanError struct {
	Kind ScanErrorKind
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Kind, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// ConfigLoadError reports an unreadable credential or config file.
// Callers degrade to empty defaults instead of failing startup.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error {
	return e.Err
}

// FailureStage returns the stage label recorded on a session for err
func FailureStage(err error) string {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return string(ce.Stage)
	}
	if errors.Is(err, ErrNoAddress) {
		return "no_address"
	}
	var se *ScanError
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	if errors.Is(err, ErrAdapterAbsent) {
		return "adapter_absent"
	}
	return "unknown"
}
