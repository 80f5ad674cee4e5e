package codec

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"wifiscout/internal/domain"
)

// YAMLCodec exports sessions as a YAML document
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType returns the HTTP content type for the format
func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

type yamlDocument struct {
	Sessions []yamlSession `yaml:"sessions"`
}

type yamlSession struct {
	ID       string     `yaml:"id"`
	SSID     string     `yaml:"ssid"`
	Known    bool       `yaml:"known"`
	Started  string     `yaml:"started"`
	Finished string     `yaml:"finished,omitempty"`
	Duration string     `yaml:"duration,omitempty"`
	Outcome  string     `yaml:"outcome"`
	Stage    string     `yaml:"stage,omitempty"`
	Error    string     `yaml:"error,omitempty"`
	Network  string     `yaml:"network,omitempty"`
	Artifact string     `yaml:"artifact,omitempty"`
	HostsUp  int        `yaml:"hosts_up"`
	Hosts    []yamlHost `yaml:"hosts,omitempty"`
}

type yamlHost struct {
	IP        string `yaml:"ip"`
	Hostname  string `yaml:"hostname,omitempty"`
	MAC       string `yaml:"mac,omitempty"`
	OpenPorts []int  `yaml:"open_ports,omitempty,flow"`
}

// Export writes a sessions list with RFC 3339 timestamps
func (c *YAMLCodec) Export(sessions []domain.ScanSession, w io.Writer) error {
	doc := yamlDocument{Sessions: make([]yamlSession, 0, len(sessions))}

	for _, s := range sessions {
		ys := yamlSession{
			ID:       s.ID,
			SSID:     s.SSID,
			Known:    s.Known,
			Started:  s.StartedAt.UTC().Format(time.RFC3339),
			Outcome:  string(s.Outcome),
			Stage:    s.Stage,
			Error:    s.Error,
			Network:  s.Network,
			Artifact: s.Artifact,
			HostsUp:  s.HostsUp,
		}
		if s.FinishedAt != nil {
			ys.Finished = s.FinishedAt.UTC().Format(time.RFC3339)
			ys.Duration = s.Duration().Round(time.Second).String()
		}
		for _, h := range s.Hosts {
			ys.Hosts = append(ys.Hosts, yamlHost{
				IP:        h.IP,
				Hostname:  h.Hostname,
				MAC:       h.MAC,
				OpenPorts: h.OpenPorts,
			})
		}
		doc.Sessions = append(doc.Sessions, ys)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
