package featureflags

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, "u1"), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, "u1"), name)
	}
}

func TestEnabled_PercentageRollout(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	assert.True(t, m.Enabled("always", "u1"))
	assert.True(t, m.Enabled("always", ""))
	assert.False(t, m.Enabled("never", "u1"))
	assert.False(t, m.Enabled("canary", ""), "partial rollout needs a user id")

	first := m.Enabled("canary", "user-42")
	for range 5 {
		assert.Equal(t, first, m.Enabled("canary", "user-42"))
	}

	on := 0
	for i := range 1000 {
		if m.Enabled("canary", fmt.Sprintf("user-%d", i)) {
			on++
		}
	}
	assert.InDelta(t, 250, on, 80)
}

func TestChatBroadcastFlag(t *testing.T) {
	assert.False(t, NewManager("").Enabled(ChatBroadcastOnPersistFailure, "u1"))
	assert.True(t, NewManager("CHAT_BROADCAST_ON_PERSIST_FAILURE=on").Enabled(ChatBroadcastOnPersistFailure, "u1"))

	var nilManager *Manager
	assert.False(t, nilManager.Enabled(ChatBroadcastOnPersistFailure, "u1"))
	assert.Empty(t, nilManager.Raw())
}

func TestNewManager_SkipsMalformed(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off,w=maybe,=on,v=abc%")

	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, m.Raw())
}

func TestSnapshot_IncludesKnownFlags(t *testing.T) {
	snap := NewManager("x=on").Snapshot("u-123")

	assert.Equal(t, map[string]bool{
		"x":                           true,
		ChatBroadcastOnPersistFailure: false,
	}, snap)
}
