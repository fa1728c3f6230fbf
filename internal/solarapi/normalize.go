package solarapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"example.com/backstage/services/solar/internal/models"
)

// noDataPlaceholder is the literal token the vendor emits for "no reading"
const noDataPlaceholder = "--"

// Field aliases, in priority order. The vendor's firmware generations
// disagree on key names; the first non-missing value wins.
var (
	powerKeys       = []string{"pac", "power"}
	energyTodayKeys = []string{"eToday", "powerToday"}
	energyTotalKeys = []string{"eTotal", "powerTotal"}
	temperatureKeys = []string{"temp", "temperature"}
	frequencyKeys   = []string{"fac", "frequency"}
	timestampKeys   = []string{"deviceTimestamp", "time"}
	statusTextKeys  = []string{"status", "state"}
	statusCodeKeys  = []string{"statusCode", "errorCode"}
	loggerKeys      = []string{"loggerSerial", "loggerSn"}
)

// NormalizeSingle converts a single-device vendor response into a
// DeviceSnapshot. The vendor sometimes nests the payload under "data" and
// sometimes returns it at the root; fields are read from the nested object
// first when it exists.
func NormalizeSingle(deviceSerial string, raw map[string]interface{}) *models.DeviceSnapshot {
	sources := []map[string]interface{}{raw}
	if data, ok := raw["data"].(map[string]interface{}); ok {
		sources = []map[string]interface{}{data, raw}
	}

	snapshot := extractSnapshot(deviceSerial, sources)
	snapshot.RawPayload = marshalRaw(raw)
	return snapshot
}

// NormalizeBatch converts a multi-device vendor response into snapshots.
// Batch responses key "data" by device serial; each entry nests the
// metrics a second level down under the same serial, with the logger
// serial as a sibling at the outer level. Entries that are not well-formed
// objects are skipped (the vendor emits null placeholders for offline
// devices).
func NormalizeBatch(raw map[string]interface{}) []*models.DeviceSnapshot {
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		return nil
	}

	snapshots := make([]*models.DeviceSnapshot, 0, len(data))
	for serial, v := range data {
		entry, ok := v.(map[string]interface{})
		if !ok {
			continue
		}

		metrics, _ := entry[serial].(map[string]interface{})
		if metrics == nil {
			continue
		}

		// Merge the sibling logger serial into the metric object so the
		// same extraction path serves single and batch shapes
		merged := make(map[string]interface{}, len(metrics)+1)
		for k, mv := range metrics {
			merged[k] = mv
		}
		if _, present := merged["loggerSerial"]; !present {
			if ls, ok := entry["loggerSerial"]; ok {
				merged["loggerSerial"] = ls
			}
		}

		snapshot := extractSnapshot(serial, []map[string]interface{}{merged})
		snapshot.RawPayload = marshalRaw(entry)
		snapshots = append(snapshots, snapshot)
	}
	return snapshots
}

// extractSnapshot reads the canonical fields out of the prioritized sources
func extractSnapshot(deviceSerial string, sources []map[string]interface{}) *models.DeviceSnapshot {
	return &models.DeviceSnapshot{
		DeviceSerial:    deviceSerial,
		LoggerSerial:    pickString(sources, loggerKeys...),
		DeviceTimestamp: pickString(sources, timestampKeys...),
		StatusText:      pickString(sources, statusTextKeys...),
		StatusCode:      pickString(sources, statusCodeKeys...),
		PowerW:          pickNumber(sources, powerKeys...),
		EnergyToday:     pickNumber(sources, energyTodayKeys...),
		EnergyTotal:     pickNumber(sources, energyTotalKeys...),
		TemperatureC:    pickNumber(sources, temperatureKeys...),
		FreqHz:          pickNumber(sources, frequencyKeys...),
		PVVoltage1:      pickNumber(sources, "vpv1"),
		PVCurrent1:      pickNumber(sources, "ipv1"),
		PVVoltage2:      pickNumber(sources, "vpv2"),
		PVCurrent2:      pickNumber(sources, "ipv2"),
		PVVoltage3:      pickNumber(sources, "vpv3"),
		PVCurrent3:      pickNumber(sources, "ipv3"),
	}
}

// pickValue returns the first non-missing value for the alias chain,
// checking each key across the prioritized sources
func pickValue(sources []map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		for _, src := range sources {
			if v, ok := src[key]; ok && !isMissing(v) {
				return v, true
			}
		}
	}
	return nil, false
}

// pickNumber coerces the first non-missing alias to a float. Missing or
// placeholder values stay nil; zero is a legitimate reading and is kept.
func pickNumber(sources []map[string]interface{}, keys ...string) *float64 {
	v, ok := pickValue(sources, keys...)
	if !ok {
		return nil
	}

	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	}
	return nil
}

// pickString coerces the first non-missing alias to a string pointer
func pickString(sources []map[string]interface{}, keys ...string) *string {
	v, ok := pickValue(sources, keys...)
	if !ok {
		return nil
	}

	switch t := v.(type) {
	case string:
		s := t
		return &s
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	case json.Number:
		s := t.String()
		return &s
	case bool:
		s := strconv.FormatBool(t)
		return &s
	}
	return nil
}

// isMissing implements the vendor's "no data" convention: null, empty
// string, or the two-dash placeholder
func isMissing(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		return trimmed == "" || trimmed == noDataPlaceholder
	}
	return false
}

// marshalRaw keeps the untouched vendor payload for forensic replay
func marshalRaw(raw map[string]interface{}) json.RawMessage {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return data
}
