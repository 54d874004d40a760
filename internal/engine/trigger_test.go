package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triggersim/internal/ir"
)

func TestTrigger_ActivateThenFireOnSamePulse(t *testing.T) {
	q := NewEventQueue()
	trig := NewTrigger(Config{
		ID:            "A",
		Delay:         2,
		ActivateOn:    []string{"p"},
		TriggerOn:     []string{"p"},
		WhenTriggered: "out",
	})

	res := trig.HandlePulse("p", q, 1)

	assert.True(t, res.Activated)
	assert.True(t, res.Fired)
	assert.True(t, res.Changed)
	require.NotNil(t, res.Scheduled)
	assert.Equal(t, Event{Time: 3, Channel: "out", SourceID: "A"}, *res.Scheduled)
	assert.Equal(t, 1, q.Len())
}

func TestTrigger_DeactivationWinsOverActivation(t *testing.T) {
	q := NewEventQueue()
	trig := NewTrigger(Config{
		ID:            "A",
		ActivateOn:    []string{"p"},
		DeactivateOn:  []string{"p"},
		TriggerOn:     []string{"p"},
		WhenTriggered: "out",
	})

	res := trig.HandlePulse("p", q, 0)

	assert.True(t, res.Activated)
	assert.True(t, res.Deactivated)
	assert.False(t, res.Fired, "deactivated trigger must not fire")
	assert.False(t, trig.Active())
	assert.False(t, res.Changed)
	assert.True(t, q.IsEmpty())
}

func TestTrigger_FireThenStayActive(t *testing.T) {
	q := NewEventQueue()
	trig := NewTrigger(Config{ID: "A", TriggerOn: []string{"go"}, WhenTriggered: "x", InitialState: true})

	trig.HandlePulse("go", q, 0)
	trig.HandlePulse("go", q, 0)

	assert.True(t, trig.Active(), "firing does not change state")
	assert.Equal(t, 2, q.Len())
}

func TestTrigger_InactiveDoesNotFire(t *testing.T) {
	q := NewEventQueue()
	trig := NewTrigger(Config{ID: "A", TriggerOn: []string{"go"}, WhenTriggered: "x"})

	res := trig.HandlePulse("go", q, 0)

	assert.False(t, res.Handled())
	assert.True(t, q.IsEmpty())
}

func TestTrigger_SilentFire(t *testing.T) {
	q := NewEventQueue()
	trig := NewTrigger(Config{ID: "A", TriggerOn: []string{"go"}, InitialState: true})

	res := trig.HandlePulse("go", q, 0)

	assert.True(t, res.Fired)
	assert.Nil(t, res.Scheduled)
	assert.True(t, q.IsEmpty())
}

func TestTrigger_UnrelatedChannel(t *testing.T) {
	q := NewEventQueue()
	trig := NewTrigger(Config{ID: "A", ActivateOn: []string{"a"}, TriggerOn: []string{"b"}})

	res := trig.HandlePulse("c", q, 0)

	assert.Equal(t, PulseResult{}, res)
	assert.False(t, trig.Listens("c"))
	assert.True(t, trig.Listens("a"))
	assert.True(t, trig.Listens("b"))
}

func TestTrigger_ManualFire(t *testing.T) {
	q := NewEventQueue()

	inactive := NewTrigger(Config{ID: "A", WhenTriggered: "x"})
	ev, err := inactive.Fire(q, 0)
	assert.Nil(t, ev)
	assert.True(t, IsTriggerInactive(err))
	assert.True(t, q.IsEmpty())

	active := NewTrigger(Config{ID: "B", Delay: 0.5, WhenTriggered: "x", InitialState: true})
	ev, err = active.Fire(q, 1)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 1.5, ev.Time)
	assert.Equal(t, "B", ev.SourceID)
}

func TestTrigger_ToggleRewritesInitialState(t *testing.T) {
	trig := NewTrigger(Config{ID: "A"})

	assert.True(t, trig.Toggle())
	assert.True(t, trig.InitialState())

	assert.False(t, trig.Reset(), "reset keeps the toggled state")
	assert.True(t, trig.Active())
}

func TestTrigger_ResetRestoresInitialState(t *testing.T) {
	q := NewEventQueue()
	trig := NewTrigger(Config{ID: "A", ActivateOn: []string{"on"}})

	trig.HandlePulse("on", q, 0)
	require.True(t, trig.Active())

	assert.True(t, trig.Reset())
	assert.False(t, trig.Active())
}

func TestTrigger_ConfigIsCopied(t *testing.T) {
	on := []string{"a"}
	trig := NewTrigger(Config{ID: "A", ActivateOn: on})
	on[0] = "mutated"

	cfg := trig.Config()
	assert.Equal(t, []string{"a"}, cfg.ActivateOn)

	cfg.ActivateOn[0] = "again"
	assert.Equal(t, []string{"a"}, trig.Config().ActivateOn)
}

func TestTrigger_SnapshotRoundTrip(t *testing.T) {
	cfg := Config{
		ID:            "G",
		Delay:         1.5,
		ActivateOn:    []string{"a", "b"},
		DeactivateOn:  []string{"c"},
		TriggerOn:     []string{"d"},
		WhenTriggered: "out",
		InitialState:  true,
		X:             10,
		Y:             20,
	}
	snap := NewTrigger(cfg).Snapshot()

	assert.Equal(t, "a,b", snap.ActivateOn)
	assert.Equal(t, "c", snap.DeactivateOn)
	require.NotNil(t, snap.WhenTriggered)
	assert.Equal(t, "out", *snap.WhenTriggered)
	assert.Equal(t, cfg, ConfigFromSnapshot(snap))
}

func TestTrigger_SnapshotSilentIsNull(t *testing.T) {
	snap := NewTrigger(Config{ID: "A"}).Snapshot()
	assert.Nil(t, snap.WhenTriggered)

	cfg := ConfigFromSnapshot(ir.TriggerSnapshot{ID: "A", WhenTriggered: ir.StringPtr("  ")})
	assert.Equal(t, "", cfg.WhenTriggered)
}

func TestTrigger_SetField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		check   func(t *testing.T, cfg Config)
		changed bool
		errCode SimErrorCode
	}{
		{
			name:  "delay",
			field: FieldDelay, value: "2.5",
			check: func(t *testing.T, cfg Config) { assert.Equal(t, 2.5, cfg.Delay) },
		},
		{
			name:  "channel list",
			field: FieldTriggerOn, value: " x , y,, ",
			check: func(t *testing.T, cfg Config) { assert.Equal(t, []string{"x", "y"}, cfg.TriggerOn) },
		},
		{
			name:  "when triggered cleared",
			field: FieldWhenTriggered, value: "   ",
			check: func(t *testing.T, cfg Config) { assert.Equal(t, "", cfg.WhenTriggered) },
		},
		{
			name:  "initial state",
			field: FieldInitialState, value: "true",
			check:   func(t *testing.T, cfg Config) { assert.True(t, cfg.InitialState) },
			changed: true,
		},
		{
			name:  "position",
			field: FieldX, value: "-4",
			check: func(t *testing.T, cfg Config) { assert.Equal(t, -4.0, cfg.X) },
		},
		{name: "negative delay", field: FieldDelay, value: "-1", errCode: ErrCodeInvalidDelay},
		{name: "unparsable delay", field: FieldDelay, value: "soon", errCode: ErrCodeInvalidValue},
		{name: "unparsable bool", field: FieldInitialState, value: "maybe", errCode: ErrCodeInvalidValue},
		{name: "unknown field", field: "color", value: "red", errCode: ErrCodeUnknownField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig := NewTrigger(Config{ID: "A", Delay: 1, WhenTriggered: "out"})

			changed, err := trig.setField(tt.field, tt.value)
			if tt.errCode != "" {
				var se *SimError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.errCode, se.Code)
				assert.Equal(t, "A", se.TriggerID)
				assert.Equal(t, 1.0, trig.Config().Delay, "failed edit must not mutate")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			tt.check(t, trig.Config())
		})
	}
}
