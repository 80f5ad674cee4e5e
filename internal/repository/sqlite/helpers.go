package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"wifiscout/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// Timestamps are stored as RFC 3339 text so ordering by column sorts by time
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func timeToString(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func timePtrToNull(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timeToString(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// ============================================================================
// Session Row Scanner
// ============================================================================
//
// Column order must match between sessionColumns, scanArgs() and
// sessionInsertArgs().

const sessionColumns = `id, ssid, known, started_at, finished_at, outcome,
	stage, error, network, artifact, hosts_up`

// sessionRow holds all columns from a session query for scanning
type sessionRow struct {
	ID         string
	SSID       string
	Known      bool
	StartedAt  string
	FinishedAt sql.NullString
	Outcome    string
	Stage      sql.NullString
	Error      sql.NullString
	Network    sql.NullString
	Artifact   sql.NullString
	HostsUp    int
}

func (r *sessionRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,         // 1
		&r.SSID,       // 2
		&r.Known,      // 3
		&r.StartedAt,  // 4
		&r.FinishedAt, // 5
		&r.Outcome,    // 6
		&r.Stage,      // 7
		&r.Error,      // 8
		&r.Network,    // 9
		&r.Artifact,   // 10
		&r.HostsUp,    // 11
	}
}

// toDomain converts the scanned row to a domain.ScanSession
func (r *sessionRow) toDomain() (*domain.ScanSession, error) {
	started, err := parseTime(r.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}

	session := &domain.ScanSession{
		ID:        r.ID,
		SSID:      r.SSID,
		Known:     r.Known,
		StartedAt: started,
		Outcome:   domain.Outcome(r.Outcome),
		Stage:     nullToString(r.Stage),
		Error:     nullToString(r.Error),
		Network:   nullToString(r.Network),
		Artifact:  nullToString(r.Artifact),
		HostsUp:   r.HostsUp,
	}

	if r.FinishedAt.Valid {
		finished, err := parseTime(r.FinishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		session.FinishedAt = &finished
	}
	return session, nil
}

func sessionInsertArgs(s *domain.ScanSession) []interface{} {
	return []interface{}{
		s.ID,
		s.SSID,
		s.Known,
		timeToString(s.StartedAt),
		timePtrToNull(s.FinishedAt),
		string(s.Outcome),
		stringToNull(s.Stage),
		stringToNull(s.Error),
		stringToNull(s.Network),
		stringToNull(s.Artifact),
		s.HostsUp,
	}
}

// ============================================================================
// Host Row Scanner
// ============================================================================

const hostColumns = `session_id, ip, hostname, mac, open_ports`

// hostRow holds all columns from a session_hosts query
type hostRow struct {
	SessionID     string
	IP            string
	Hostname      sql.NullString
	MAC           sql.NullString
	OpenPortsJSON sql.NullString
}

func (r *hostRow) scanArgs() []interface{} {
	return []interface{}{
		&r.SessionID,     // 1
		&r.IP,            // 2
		&r.Hostname,      // 3
		&r.MAC,           // 4
		&r.OpenPortsJSON, // 5
	}
}

func (r *hostRow) toDomain() (domain.ScannedHost, error) {
	host := domain.ScannedHost{
		IP:       r.IP,
		Hostname: nullToString(r.Hostname),
		MAC:      nullToString(r.MAC),
	}
	if r.OpenPortsJSON.Valid && r.OpenPortsJSON.String != "" {
		if err := json.Unmarshal([]byte(r.OpenPortsJSON.String), &host.OpenPorts); err != nil {
			return host, fmt.Errorf("unmarshal open_ports: %w", err)
		}
	}
	return host, nil
}

func hostInsertArgs(sessionID string, h domain.ScannedHost) ([]interface{}, error) {
	var ports sql.NullString
	if len(h.OpenPorts) > 0 {
		data, err := json.Marshal(h.OpenPorts)
		if err != nil {
			return nil, fmt.Errorf("marshal open_ports: %w", err)
		}
		ports = sql.NullString{String: string(data), Valid: true}
	}
	return []interface{}{
		sessionID,
		h.IP,
		stringToNull(h.Hostname),
		stringToNull(h.MAC),
		ports,
	}, nil
}
