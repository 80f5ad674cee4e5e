// Package domain defines the core types of the wifiscout reconnaissance loop.
//
// # Candidates
//
// AccessPoint is a network delivered by the discovery feed. It is transient
// and never persisted. CredentialSet holds the skip list and the known
// networks (SSID and passphrase, in file order).
//
// # Sessions
//
// ScanSession tracks one connect/scan/disconnect sequence from commit to
// completion. ScannedSet remembers every SSID attempted in this process and
// only grows.
//
// # Errors
//
// ErrAdapterAbsent, ConnectError, ErrNoAddress, ScanError and
// ConfigLoadError form the error taxonomy. None of them is fatal to the
// process; FailureStage maps an error to the stage recorded on a session.
package domain
