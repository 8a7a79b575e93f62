package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Preferences are the user's API and agent choices.
type Preferences struct {
	UseDefaultTunnel bool
	APIBase          string
	SelectedAgent    string
}

// BaseURL returns the API host to talk to: the override when one is set and
// the default tunnel is not forced, otherwise defaultURL.
func (p Preferences) BaseURL(defaultURL string) string {
	if p.UseDefaultTunnel || strings.TrimSpace(p.APIBase) == "" {
		return defaultURL
	}
	return strings.TrimRight(strings.TrimSpace(p.APIBase), "/")
}

// LoadPreferences reads preferences from kv. A missing tunnel flag defaults to true.
func LoadPreferences(kv KV) (Preferences, error) {
	p := Preferences{UseDefaultTunnel: true}
	raw, ok, err := kv.Get(KeyUseDefaultTunnel)
	if err != nil {
		return Preferences{}, err
	}
	if ok {
		if b, parseErr := strconv.ParseBool(raw); parseErr == nil {
			p.UseDefaultTunnel = b
		}
	}
	if p.APIBase, _, err = kv.Get(KeyAPIBase); err != nil {
		return Preferences{}, err
	}
	if p.SelectedAgent, _, err = kv.Get(KeySelectedAgent); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// SavePreferences writes every preference key to kv.
func SavePreferences(kv KV, p Preferences) error {
	if err := kv.Set(KeyUseDefaultTunnel, strconv.FormatBool(p.UseDefaultTunnel)); err != nil {
		return fmt.Errorf("saving %s: %w", KeyUseDefaultTunnel, err)
	}
	if err := setOrDelete(kv, KeyAPIBase, p.APIBase); err != nil {
		return fmt.Errorf("saving %s: %w", KeyAPIBase, err)
	}
	if err := setOrDelete(kv, KeySelectedAgent, p.SelectedAgent); err != nil {
		return fmt.Errorf("saving %s: %w", KeySelectedAgent, err)
	}
	return nil
}

func setOrDelete(kv KV, key, value string) error {
	if value == "" {
		return kv.Delete(key)
	}
	return kv.Set(key, value)
}
