// Package featureflags evaluates FEATURE_FLAGS rules such as
// "chat_broadcast_on_persist_failure=25%".
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// ChatBroadcastOnPersistFailure relays a chat message to the room even when
// the message log rejected it. Off by default: the sender gets an error instead.
const ChatBroadcastOnPersistFailure = "chat_broadcast_on_persist_failure"

// Flag describes a flag the server consults.
type Flag struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

// Known lists every flag with code behind it.
var Known = []Flag{
	{
		Name:        ChatBroadcastOnPersistFailure,
		Description: "Relay chat messages to the room when persisting them fails",
		Default:     false,
	},
}

// rule is one parsed FEATURE_FLAGS entry. percent is -1 for on/off rules.
type rule struct {
	raw     string
	on      bool
	percent int
}

func (r rule) eval(name, userID string) bool {
	switch {
	case r.percent < 0:
		return r.on
	case r.percent == 0:
		return false
	case r.percent >= 100:
		return true
	case userID == "":
		return false
	default:
		return rolloutBucket(name, userID) < r.percent
	}
}

// Manager holds the parsed rules. A nil Manager reports every flag at its default.
type Manager struct {
	rules map[string]rule
}

// NewManager parses a comma-separated key=value list. Values are on/true/1,
// off/false/0 or N% for a deterministic per-user rollout. Malformed entries
// are ignored.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}

	return &Manager{rules: rules}
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, on: true, percent: -1}, true
	case "off", "false", "0":
		return rule{raw: value, percent: -1}, true
	}
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: n}, true
}

// Enabled evaluates name for userID, falling back to the flag's default.
func (m *Manager) Enabled(name string, userID string) bool {
	name = normalize(name)
	if m != nil {
		if r, ok := m.rules[name]; ok {
			return r.eval(name, userID)
		}
	}
	return defaultFor(name)
}

// Raw returns the configured value of each parsed rule.
func (m *Manager) Raw() map[string]string {
	out := map[string]string{}
	if m == nil {
		return out
	}
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every known and configured flag for one user.
func (m *Manager) Snapshot(userID string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range Known {
		out[f.Name] = m.Enabled(f.Name, userID)
	}
	for _, name := range m.names() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func (m *Manager) names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.rules))
	for k := range m.rules {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func defaultFor(name string) bool {
	for _, f := range Known {
		if f.Name == name {
			return f.Default
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + userID))
	return int(h.Sum32() % 100)
}
