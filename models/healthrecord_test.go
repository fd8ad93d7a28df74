package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVitals_Abnormal(t *testing.T) {
	assert.False(t, Vitals{}.Abnormal(), "unmeasured vitals are not abnormal")
	assert.False(t, Vitals{HeartRate: 72, BloodPressureSys: 120, Temperature: 36.8, OxygenSaturation: 98}.Abnormal())

	assert.True(t, Vitals{HeartRate: 45}.Abnormal())
	assert.True(t, Vitals{HeartRate: 130}.Abnormal())
	assert.True(t, Vitals{BloodPressureSys: 85}.Abnormal())
	assert.True(t, Vitals{BloodPressureSys: 160}.Abnormal())
	assert.True(t, Vitals{Temperature: 39.2}.Abnormal())
	assert.True(t, Vitals{Temperature: 34.0}.Abnormal())
	assert.True(t, Vitals{OxygenSaturation: 88}.Abnormal())

	// Boundary values are still normal.
	assert.False(t, Vitals{HeartRate: 50}.Abnormal())
	assert.False(t, Vitals{HeartRate: 110}.Abnormal())
	assert.False(t, Vitals{BloodPressureSys: 90}.Abnormal())
	assert.False(t, Vitals{BloodPressureSys: 140}.Abnormal())
	assert.False(t, Vitals{Temperature: 38.0}.Abnormal())
	assert.False(t, Vitals{OxygenSaturation: 92}.Abnormal())
}

func TestValidSeverity(t *testing.T) {
	assert.True(t, ValidSeverity(SeverityMild))
	assert.True(t, ValidSeverity(SeverityModerate))
	assert.True(t, ValidSeverity(SeveritySevere))
	assert.False(t, ValidSeverity("mild"))
	assert.False(t, ValidSeverity(""))
	assert.False(t, ValidSeverity("UNBEARABLE"))
}
