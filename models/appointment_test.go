package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppointmentStatus_Valid(t *testing.T) {
	assert.True(t, AppointmentPending.Valid())
	assert.True(t, AppointmentRescheduled.Valid())
	assert.False(t, AppointmentStatus("BOGUS").Valid())
	assert.False(t, AppointmentStatus("").Valid())
}

func TestAppointmentStatus_Terminal(t *testing.T) {
	assert.True(t, AppointmentCompleted.Terminal())
	assert.True(t, AppointmentCancelled.Terminal())
	assert.False(t, AppointmentPending.Terminal())
	assert.False(t, AppointmentInProgress.Terminal())
	assert.False(t, AppointmentStatus("BOGUS").Terminal())
}

func TestAppointmentStatus_Transition(t *testing.T) {
	cases := []struct {
		from AppointmentStatus
		to   AppointmentStatus
		ok   bool
	}{
		{AppointmentPending, AppointmentConfirmed, true},
		{AppointmentPending, AppointmentCancelled, true},
		{AppointmentPending, AppointmentRescheduled, true},
		{AppointmentPending, AppointmentCompleted, false},
		{AppointmentConfirmed, AppointmentInProgress, true},
		{AppointmentConfirmed, AppointmentCancelled, true},
		{AppointmentConfirmed, AppointmentRescheduled, true},
		{AppointmentConfirmed, AppointmentCompleted, false},
		{AppointmentRescheduled, AppointmentConfirmed, true},
		{AppointmentRescheduled, AppointmentCancelled, true},
		{AppointmentRescheduled, AppointmentInProgress, false},
		{AppointmentInProgress, AppointmentCompleted, true},
		{AppointmentInProgress, AppointmentCancelled, false},
		{AppointmentCompleted, AppointmentConfirmed, false},
		{AppointmentCancelled, AppointmentPending, false},
	}

	for _, c := range cases {
		got, err := c.from.Transition(c.to)
		if c.ok {
			assert.NoError(t, err, "%s -> %s should be legal", c.from, c.to)
			assert.Equal(t, c.to, got)
		} else {
			assert.Error(t, err, "%s -> %s should be illegal", c.from, c.to)
			assert.Equal(t, c.from, got, "status must not change on a rejected transition")
		}
	}
}

func TestAppointmentStatus_TransitionUnknownStatus(t *testing.T) {
	_, err := AppointmentStatus("BOGUS").Transition(AppointmentConfirmed)
	assert.Error(t, err)

	_, err = AppointmentPending.Transition(AppointmentStatus("BOGUS"))
	assert.Error(t, err)
}
