package domain

import "fmt"

// State is the orchestrator's position in the connect/scan cycle
type State string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateScanning      State = "scanning"
	StateDisconnecting State = "disconnecting"
)

// MarkPolicy decides when a scanned SSID enters the scanned set
type MarkPolicy string

const (
	// MarkAlways marks the SSID after every scan, successful or not
	MarkAlways MarkPolicy = "mark-always"
	// MarkOnSuccess marks the SSID only when the scan succeeded
	MarkOnSuccess MarkPolicy = "mark-on-success"
)

// ParseMarkPolicy converts a string to MarkPolicy
func ParseMarkPolicy(s string) (MarkPolicy, error) {
	switch MarkPolicy(s) {
	case "", MarkAlways:
		return MarkAlways, nil
	case MarkOnSuccess:
		return MarkOnSuccess, nil
	default:
		return "", fmt.Errorf("unknown mark policy %q", s)
	}
}

// JoinFailurePolicy decides what happens to an SSID whose join failed
type JoinFailurePolicy string

const (
	// JoinFailureRetry leaves the SSID eligible for a later cycle
	JoinFailureRetry JoinFailurePolicy = "retry"
	// JoinFailureMark adds the SSID to the scanned set anyway
	JoinFailureMark JoinFailurePolicy = "mark"
)

// ParseJoinFailurePolicy converts a string to JoinFailurePolicy
func ParseJoinFailurePolicy(s string) (JoinFailurePolicy, error) {
	switch JoinFailurePolicy(s) {
	case "", JoinFailureRetry:
		return JoinFailureRetry, nil
	case JoinFailureMark:
		return JoinFailureMark, nil
	default:
		return "", fmt.Errorf("unknown join failure policy %q", s)
	}
}
