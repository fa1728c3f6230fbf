package solarapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestNormalizeSingleMissingValuesStayNull(t *testing.T) {
	raw := decode(t, `{
		"data": {
			"pac": "--",
			"eToday": "",
			"eTotal": null,
			"temp": "--",
			"fac": "",
			"vpv1": "--",
			"ipv1": null
		}
	}`)

	snapshot := NormalizeSingle("SN100", raw)

	require.Equal(t, "SN100", snapshot.DeviceSerial)
	require.Nil(t, snapshot.PowerW)
	require.Nil(t, snapshot.EnergyToday)
	require.Nil(t, snapshot.EnergyTotal)
	require.Nil(t, snapshot.TemperatureC)
	require.Nil(t, snapshot.FreqHz)
	require.Nil(t, snapshot.PVVoltage1)
	require.Nil(t, snapshot.PVCurrent1)
}

func TestNormalizeSingleZeroIsAReading(t *testing.T) {
	raw := decode(t, `{"data": {"pac": 0, "eToday": "0"}}`)

	snapshot := NormalizeSingle("SN100", raw)

	require.NotNil(t, snapshot.PowerW)
	require.Equal(t, 0.0, *snapshot.PowerW)
	require.NotNil(t, snapshot.EnergyToday)
	require.Equal(t, 0.0, *snapshot.EnergyToday)
}

func TestNormalizeSingleAliasPriority(t *testing.T) {
	// Primary key wins when both are present
	raw := decode(t, `{"data": {"pac": "1500", "power": "999"}}`)
	snapshot := NormalizeSingle("SN100", raw)
	require.NotNil(t, snapshot.PowerW)
	require.Equal(t, 1500.0, *snapshot.PowerW)

	// Secondary key fills in when the primary is missing
	raw = decode(t, `{"data": {"power": "999"}}`)
	snapshot = NormalizeSingle("SN100", raw)
	require.NotNil(t, snapshot.PowerW)
	require.Equal(t, 999.0, *snapshot.PowerW)

	// A placeholder primary does not shadow a real secondary
	raw = decode(t, `{"data": {"pac": "--", "power": "999"}}`)
	snapshot = NormalizeSingle("SN100", raw)
	require.NotNil(t, snapshot.PowerW)
	require.Equal(t, 999.0, *snapshot.PowerW)
}

func TestNormalizeSingleRootAndNestedShapes(t *testing.T) {
	nested := decode(t, `{"data": {"pac": "1200", "status": "Normal", "time": "2026-08-29 11:05:00"}}`)
	flat := decode(t, `{"pac": "1200", "status": "Normal", "time": "2026-08-29 11:05:00"}`)

	fromNested := NormalizeSingle("SN100", nested)
	fromFlat := NormalizeSingle("SN100", flat)

	require.Equal(t, *fromNested.PowerW, *fromFlat.PowerW)
	require.Equal(t, *fromNested.StatusText, *fromFlat.StatusText)
	require.Equal(t, *fromNested.DeviceTimestamp, *fromFlat.DeviceTimestamp)
}

func TestNormalizeSingleScenario(t *testing.T) {
	raw := decode(t, `{"data": {"pac": "1500", "powerToday": "--", "vpv1": "320.5"}}`)

	snapshot := NormalizeSingle("ABC123", raw)

	require.Equal(t, "ABC123", snapshot.DeviceSerial)
	require.NotNil(t, snapshot.PowerW)
	require.Equal(t, 1500.0, *snapshot.PowerW)
	require.Nil(t, snapshot.EnergyToday)
	require.NotNil(t, snapshot.PVVoltage1)
	require.Equal(t, 320.5, *snapshot.PVVoltage1)
}

func TestNormalizeSingleNumericStatusCode(t *testing.T) {
	raw := decode(t, `{"data": {"statusCode": 3}}`)

	snapshot := NormalizeSingle("SN100", raw)

	require.NotNil(t, snapshot.StatusCode)
	require.Equal(t, "3", *snapshot.StatusCode)
}

func TestNormalizeSingleKeepsRawPayload(t *testing.T) {
	raw := decode(t, `{"data": {"pac": "42"}}`)

	snapshot := NormalizeSingle("SN100", raw)

	require.NotEmpty(t, snapshot.RawPayload)
	var replay map[string]interface{}
	require.NoError(t, json.Unmarshal(snapshot.RawPayload, &replay))
	require.Contains(t, replay, "data")
}

func TestNormalizeBatch(t *testing.T) {
	raw := decode(t, `{
		"data": {
			"SN200": {
				"loggerSerial": "LOG9",
				"SN200": {"pac": "800", "vpv1": "310.2", "time": "2026-08-29 11:05:00"}
			},
			"SN201": null,
			"SN202": "offline"
		}
	}`)

	snapshots := NormalizeBatch(raw)

	require.Len(t, snapshots, 1)
	snap := snapshots[0]
	require.Equal(t, "SN200", snap.DeviceSerial)
	require.NotNil(t, snap.LoggerSerial)
	require.Equal(t, "LOG9", *snap.LoggerSerial)
	require.NotNil(t, snap.PowerW)
	require.Equal(t, 800.0, *snap.PowerW)
	require.NotNil(t, snap.PVVoltage1)
	require.Equal(t, 310.2, *snap.PVVoltage1)
}

func TestNormalizeBatchWithoutDataObject(t *testing.T) {
	require.Nil(t, NormalizeBatch(decode(t, `{"message": "ok"}`)))
	require.Nil(t, NormalizeBatch(decode(t, `{"data": [1, 2, 3]}`)))
}

func TestSingleAndBatchShapesConverge(t *testing.T) {
	metrics := `{"pac": "1500", "powerToday": "--", "eTotal": "12034.7", "vpv1": "320.5", "ipv1": "6.1",
		"temp": "41.3", "fac": "49.98", "status": "Normal", "statusCode": "1",
		"loggerSerial": "LOG7", "time": "2026-08-29 11:05:00"}`

	single := NormalizeSingle("ABC123", decode(t, `{"data": `+metrics+`}`))

	batch := NormalizeBatch(decode(t, `{"data": {"ABC123": {"loggerSerial": "LOG7", "ABC123": `+metrics+`}}}`))
	require.Len(t, batch, 1)

	// Identical telemetry fields regardless of which response shape
	// delivered them; the raw payload wrappers necessarily differ
	single.RawPayload = nil
	batch[0].RawPayload = nil
	require.Equal(t, single, batch[0])
}
