// Package handler implements the HTTP surface of wifiscout.
//
// # File browser
//
// Browser serves a small HTML index over a fixed set of named folders
// (credential lists, scan artifacts, captured handshakes). Each folder can
// be listed, downloaded file by file or as a zip, viewed, and edited in
// place. Folder names come from configuration; file names are single path
// elements and anything containing a separator or ".." is answered with 404.
//
// # API
//
// APIHandler exposes the orchestrator snapshot and the status line at
// /api/status, and the scan history at /api/sessions in JSON or YAML.
//
// # Server-Sent Events
//
// The /events endpoint is served by the hub package. Status changes,
// adapter edges, finished sessions and new artifacts arrive there as
// events.
//
// Errors from the API are returned as JSON with an {error, details} body.
package handler
