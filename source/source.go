// Package source defines the stream source model and the address classifier that routes it to an engine.
package source

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/samber/mo"
)

// StreamSource is an immutable description of one playback target.
// A new address always means a new StreamSource.
type StreamSource struct {
	// Address is the transmission address (manifest, file or embed page).
	Address string `json:"address"`
	// DisplayTitle is the human readable name of the source.
	DisplayTitle string `json:"title"`
	// SNIMask is injected into outbound requests when ProxyActive is set.
	SNIMask mo.Option[string] `json:"sni_mask"`
	// ProxyActive enables the network filter hook.
	ProxyActive bool `json:"proxy_active"`
}

// New builds a source for address with an optional title.
func New(address, title string) StreamSource {
	return StreamSource{
		Address:      strings.TrimSpace(address),
		DisplayTitle: sanitizeTitle(title),
	}
}

// WithMask returns a copy with the SNI mask set and the proxy enabled.
func (s StreamSource) WithMask(mask string) StreamSource {
	mask = strings.TrimSpace(mask)
	if mask == "" {
		s.SNIMask = mo.None[string]()
		s.ProxyActive = false
		return s
	}
	s.SNIMask = mo.Some(mask)
	s.ProxyActive = true
	return s
}

// Title returns the display title or the address when no title is set.
func (s StreamSource) Title() string {
	if s.DisplayTitle != "" {
		return s.DisplayTitle
	}
	return s.Address
}

// Mask returns the SNI mask when the proxy is active.
func (s StreamSource) Mask() (string, bool) {
	if !s.ProxyActive {
		return "", false
	}
	return s.SNIMask.Get()
}

// Validate rejects addresses that cannot be handed to any engine.
func (s StreamSource) Validate() error {
	addr := s.Address
	if addr == "" {
		return fmt.Errorf("empty address")
	}

	if strings.ContainsAny(addr, "\x00\n\r") {
		return fmt.Errorf("invalid control characters in address")
	}

	// Engines pass addresses as program arguments; a leading dash would read as a flag.
	if strings.HasPrefix(addr, "-") {
		return fmt.Errorf("address must not start with '-'")
	}

	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https", "file":
		default:
			return fmt.Errorf("unsupported scheme: %s", u.Scheme)
		}
		if u.Scheme != "file" && u.Host == "" {
			return fmt.Errorf("address has no host")
		}
		return nil
	}

	if filepath.Clean(addr) == "." {
		return fmt.Errorf("invalid path: %s", addr)
	}
	return nil
}

func sanitizeTitle(title string) string {
	t := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ", "\x00", "").Replace(title)
	return strings.TrimSpace(t)
}
