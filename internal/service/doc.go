// Package service implements the application layer between the scan
// orchestrator, persistence and the HTTP surface.
//
// # Services
//
// HistoryService persists finished scan sessions through a
// repository.SessionRepository and serves them to the browser API.
//
// # Event System
//
// Components publish events via EventBus for real-time updates to connected
// clients via Server-Sent Events (SSE). Event types cover status changes,
// adapter presence edges, session start and finish, and new artifacts.
// Publishing never blocks: slow subscribers miss events.
package service
