package mqttws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicAliasInbound(t *testing.T) {
	m := NewTopicAliasManager(4)

	require.NoError(t, m.SetInbound(1, "a/b"))

	topic, err := m.ResolveInbound(1)
	require.NoError(t, err)
	assert.Equal(t, "a/b", topic)

	_, err = m.ResolveInbound(2)
	assert.ErrorIs(t, err, ErrTopicAliasNotFound)

	assert.ErrorIs(t, m.SetInbound(0, "x"), ErrTopicAliasInvalid)
	assert.ErrorIs(t, m.SetInbound(5, "x"), ErrTopicAliasInvalid)

	_, err = m.ResolveInbound(5)
	assert.ErrorIs(t, err, ErrTopicAliasInvalid)

	m.NewConnection(4, 0)
	_, err = m.ResolveInbound(1)
	assert.ErrorIs(t, err, ErrTopicAliasNotFound)
}

func TestTopicAliasOutbound(t *testing.T) {
	m := NewTopicAliasManager(0)

	assert.NoError(t, m.CheckOutbound(9, false))
	assert.ErrorIs(t, m.CheckOutbound(0, false), ErrTopicAliasInvalid)

	m.RecordOutbound(1, "a")
	m.RecordOutbound(2, "b")
	assert.Equal(t, 2, m.OutboundCount())

	topic, ok := m.OutboundTopic(2)
	assert.True(t, ok)
	assert.Equal(t, "b", topic)

	m.InvalidateTopic("a")
	_, ok = m.OutboundTopic(1)
	assert.False(t, ok)

	m.NewConnection(0, 3)
	assert.Equal(t, uint16(3), m.OutboundMax())
	assert.Equal(t, 1, m.OutboundCount(), "outbound entries survive a new connection")
	assert.NoError(t, m.CheckOutbound(3, true))
	assert.ErrorIs(t, m.CheckOutbound(4, true), ErrTopicAliasInvalid)
}
