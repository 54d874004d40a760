package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutHash_Deterministic(t *testing.T) {
	layout := []TriggerSnapshot{
		{ID: "A", ActivateOn: "X"},
		{ID: "B", TriggerOn: "Y", WhenTriggered: StringPtr("Z"), Delay: 1},
	}

	h1, err := LayoutHash(layout)
	require.NoError(t, err)
	h2, err := LayoutHash(layout)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestLayoutHash_OrderSensitive(t *testing.T) {
	a := TriggerSnapshot{ID: "A"}
	b := TriggerSnapshot{ID: "B"}

	assert.NotEqual(t,
		MustLayoutHash([]TriggerSnapshot{a, b}),
		MustLayoutHash([]TriggerSnapshot{b, a}))
}

func TestLayoutHash_NilEqualsEmpty(t *testing.T) {
	assert.Equal(t, MustLayoutHash(nil), MustLayoutHash([]TriggerSnapshot{}))
}

func TestTraceHash_DomainSeparated(t *testing.T) {
	// An empty trace and an empty layout share canonical bytes ("[]") but
	// must not share a hash.
	th, err := TraceHash(nil)
	require.NoError(t, err)
	assert.NotEqual(t, MustLayoutHash(nil), th)
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	require.NotNil(t, StringPtr("X"))
	assert.Equal(t, "X", *StringPtr("X"))
}
