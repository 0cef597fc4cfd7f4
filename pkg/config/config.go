// Package config loads the application manifest that identifies a Reddit
// installed app: its OAuth client, redirect URI, requested scopes and the
// details Reddit wants in the User-Agent.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	pkgerrs "github.com/jamesprial/go-reddift/pkg/errors"
)

const (
	defaultTokenDB  = "~/.local/share/reddift/tokens.db"
	defaultPlatform = "golang"
)

// Manifest is the parsed application manifest.
type Manifest struct {
	ClientID         string   `toml:"client_id" yaml:"client_id" json:"client_id"`
	ClientSecret     string   `toml:"client_secret" yaml:"client_secret" json:"client_secret"`
	RedirectURI      string   `toml:"redirect_uri" yaml:"redirect_uri" json:"redirect_uri"`
	DeveloperName    string   `toml:"developer_name" yaml:"developer_name" json:"developer_name"`
	Version          string   `toml:"version" yaml:"version" json:"version"`
	BundleIdentifier string   `toml:"bundle_identifier" yaml:"bundle_identifier" json:"bundle_identifier"`
	Platform         string   `toml:"platform" yaml:"platform" json:"platform"`
	Scopes           []string `toml:"scopes" yaml:"scopes" json:"scopes"`
	// TokenDB is the SQLite file tokens are kept in, after ~ expansion.
	TokenDB string `toml:"token_db" yaml:"token_db" json:"token_db"`
}

// Load reads the manifest at path. The format follows the extension:
// .toml, .yaml/.yml or .json.
func Load(path string) (Manifest, error) {
	resolved, err := expandPath(path)
	if err != nil {
		return Manifest{}, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	m, err := Parse(data, filepath.Ext(resolved))
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", resolved, err)
	}
	return m, nil
}

// Parse decodes a manifest in the format named by ext and validates it.
func Parse(data []byte, ext string) (Manifest, error) {
	var m Manifest
	var err error

	switch strings.ToLower(ext) {
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".json":
		err = json.Unmarshal(data, &m)
	default:
		return Manifest{}, fmt.Errorf("unsupported manifest format %q", ext)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}

	m.normalize()
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (m *Manifest) normalize() {
	m.ClientID = strings.TrimSpace(m.ClientID)
	m.RedirectURI = strings.TrimSpace(m.RedirectURI)
	m.Platform = strings.TrimSpace(m.Platform)
	if m.Platform == "" {
		m.Platform = defaultPlatform
	}

	scopes := m.Scopes[:0]
	for _, s := range m.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	m.Scopes = scopes

	if strings.TrimSpace(m.TokenDB) == "" {
		m.TokenDB = defaultTokenDB
	}
	if expanded, err := expandPath(m.TokenDB); err == nil {
		m.TokenDB = expanded
	}
}

// Validate checks the fields an authorization cannot proceed without.
func (m Manifest) Validate() error {
	if m.ClientID == "" {
		return &pkgerrs.ConfigError{Field: "client_id", Message: "is required"}
	}
	if m.RedirectURI == "" {
		return &pkgerrs.ConfigError{Field: "redirect_uri", Message: "is required"}
	}
	u, err := url.Parse(m.RedirectURI)
	if err != nil || u.Scheme == "" {
		return &pkgerrs.ConfigError{Field: "redirect_uri", Message: fmt.Sprintf("%q is not an absolute URI", m.RedirectURI)}
	}
	if len(m.Scopes) == 0 {
		return &pkgerrs.ConfigError{Field: "scopes", Message: "at least one scope is required"}
	}
	return nil
}

// UserAgent renders the User-Agent Reddit asks API clients to send:
//
//	<platform>:<bundle identifier>:v<version> (by /u/<developer>)
func (m Manifest) UserAgent() string {
	bundle := m.BundleIdentifier
	if bundle == "" {
		bundle = m.ClientID
	}
	version := strings.TrimPrefix(m.Version, "v")
	if version == "" {
		version = "0.0.0"
	}

	ua := fmt.Sprintf("%s:%s:v%s", m.Platform, bundle, version)
	if m.DeveloperName != "" {
		ua += fmt.Sprintf(" (by /u/%s)", m.DeveloperName)
	}
	return ua
}

// RedirectURIScheme returns the scheme of the redirect URI, e.g. "http" for
// a loopback listener or a custom scheme for an app handler.
func (m Manifest) RedirectURIScheme() string {
	u, err := url.Parse(m.RedirectURI)
	if err != nil {
		return ""
	}
	return u.Scheme
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
