package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetProxy_RotatesSequentially(t *testing.T) {
	m := NewManager([]string{"http://p1:8000", "http://p2:8000"}, nil)

	assert.Equal(t, "http://p1:8000", m.GetProxy())
	assert.Equal(t, "http://p2:8000", m.GetProxy())
	assert.Equal(t, "http://p1:8000", m.GetProxy())
}

func TestGetProxy_NoneConfigured(t *testing.T) {
	assert.Equal(t, "", NewManager(nil, nil).GetProxy())
}

func TestGetUserAgent(t *testing.T) {
	m := NewManager(nil, []string{"agent-a", "agent-b"})
	for i := 0; i < 20; i++ {
		assert.Contains(t, []string{"agent-a", "agent-b"}, m.GetUserAgent())
	}
	assert.Contains(t, defaultUserAgents, NewManager(nil, nil).GetUserAgent())
}
