package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls" yaml:"urls"`
	Username   string   `mapstructure:"username" yaml:"username,omitempty"`
	Credential string   `mapstructure:"credential" yaml:"credential,omitempty"`
}

// iceSchemes maps each accepted url scheme to whether it names a relay that
// needs credentials.
var iceSchemes = map[string]bool{
	"stun":  false,
	"stuns": false,
	"turn":  true,
	"turns": true,
}

func (s ICEServerConfig) urls() []string {
	out := make([]string, 0, len(s.URLs))
	for _, u := range s.URLs {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// problems lists everything wrong with s; nil means usable.
func (s ICEServerConfig) problems() []error {
	urls := s.urls()
	if len(urls) == 0 {
		return []error{errors.New("no urls")}
	}

	var errs []error
	relay := false
	for _, u := range urls {
		scheme, _, _ := strings.Cut(u, ":")
		needsAuth, ok := iceSchemes[strings.ToLower(scheme)]
		if !ok || scheme == u {
			errs = append(errs, fmt.Errorf("unsupported scheme in %q", u))
			continue
		}
		relay = relay || needsAuth
	}
	if relay {
		if strings.TrimSpace(s.Username) == "" {
			errs = append(errs, errors.New("username is required for turn servers"))
		}
		if strings.TrimSpace(s.Credential) == "" {
			errs = append(errs, errors.New("credential is required for turn servers"))
		}
	}
	return errs
}

func (c *Config) iceProblems() []error {
	var errs []error
	for i, s := range c.ICEServers {
		for _, err := range s.problems() {
			errs = append(errs, fmt.Errorf("ice_servers[%d]: %w", i, err))
		}
	}
	return errs
}

// WebRTCICEServers returns the configured servers in the form browsers and
// pion expect.
func (c *Config) WebRTCICEServers() ([]webrtc.ICEServer, error) {
	if err := errors.Join(c.iceProblems()...); err != nil {
		return nil, err
	}
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		server := webrtc.ICEServer{
			URLs:     s.urls(),
			Username: strings.TrimSpace(s.Username),
		}
		if cred := strings.TrimSpace(s.Credential); cred != "" {
			server.Credential = cred
		}
		out = append(out, server)
	}
	return out, nil
}
