package dashboard

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownSite is returned when no configured site has the requested id.
var ErrUnknownSite = errors.New("unknown site")

// Site is one managed site and the analytics view that tracks it.
type Site struct {
	ID        int    `yaml:"id"`
	Name      string `yaml:"name"`
	ViewID    string `yaml:"view_id"`
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// AccessToken returns the site's token, reading TokenFile when Token is
// empty. The token is used as is; obtaining and refreshing it is up to the
// host.
func (s Site) AccessToken() (string, error) {
	if s.Token != "" || s.TokenFile == "" {
		return s.Token, nil
	}
	b, err := os.ReadFile(s.TokenFile)
	if err != nil {
		return "", fmt.Errorf("read token for site %d: %w", s.ID, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Problems lists the configuration gaps that keep the dashboard from
// loading. Credentials are only needed for the remote provider.
func (s Site) Problems(remote bool) []string {
	var msgs []string
	if s.ViewID == "" {
		msgs = append(msgs, "You are missing your view_id setting. Your analytics dashboard won't load without this setting.")
	}
	if remote && s.Token == "" && s.TokenFile == "" {
		msgs = append(msgs, "You are missing your token or your token_file setting.")
	}
	return msgs
}

// Sites is the configured site list. The first site is the default.
type Sites []Site

// Find returns the site with id.
func (ss Sites) Find(id int) (Site, error) {
	for _, s := range ss {
		if s.ID == id {
			return s, nil
		}
	}
	return Site{}, fmt.Errorf("%w: %d", ErrUnknownSite, id)
}

// Default returns the first configured site.
func (ss Sites) Default() (Site, error) {
	if len(ss) == 0 {
		return Site{}, fmt.Errorf("%w: no sites configured", ErrUnknownSite)
	}
	return ss[0], nil
}

// Normalize numbers sites without an id by position and rejects duplicates.
func (ss Sites) Normalize() (Sites, error) {
	out := make(Sites, len(ss))
	seen := make(map[int]bool, len(ss))
	for i, s := range ss {
		if s.ID == 0 {
			s.ID = i + 1
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("Site %d", s.ID)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate site id %d", s.ID)
		}
		seen[s.ID] = true
		out[i] = s
	}
	return out, nil
}

// LoadSites reads a YAML sites file:
//
//	sites:
//	  - id: 2
//	    name: Main site
//	    view_id: "ga:12345678"
//	    token_file: /etc/pubdash/main.token
func LoadSites(path string) (Sites, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	return ParseSites(b)
}

// ParseSites decodes the YAML sites document in b.
func ParseSites(b []byte) (Sites, error) {
	var doc struct {
		Sites Sites `yaml:"sites"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse sites: %w", err)
	}
	return doc.Sites.Normalize()
}

// SwitchOption is one entry in the site switcher.
type SwitchOption struct {
	Label    string
	URL      string
	Selected bool
}

// SiteSwitcher is the dropdown for moving between sites. Initial is the URL
// selected when the page was rendered.
type SiteSwitcher struct {
	Initial string
	Options []SwitchOption
}

// NewSiteSwitcher returns a switcher positioned on current, or nil when
// there is only one site to show.
func NewSiteSwitcher(sites Sites, current int, urlFor func(Site) string) *SiteSwitcher {
	if len(sites) < 2 {
		return nil
	}
	sw := &SiteSwitcher{}
	for _, s := range sites {
		u := urlFor(s)
		opt := SwitchOption{Label: s.Name, URL: u, Selected: s.ID == current}
		if opt.Selected {
			sw.Initial = u
		}
		sw.Options = append(sw.Options, opt)
	}
	return sw
}

// Target decides what a change of selection does: navigate to selected
// when it differs from the initial value, nothing otherwise.
func Target(initial, selected string) (string, bool) {
	if selected == "" || selected == initial {
		return "", false
	}
	return selected, true
}

// Target applies the package-level rule against the switcher's options;
// values that are not one of its URLs never navigate.
func (sw *SiteSwitcher) Target(selected string) (string, bool) {
	for _, o := range sw.Options {
		if o.URL == selected {
			return Target(sw.Initial, selected)
		}
	}
	return "", false
}
