package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadHashIsStable(t *testing.T) {
	ts := "2026-08-29 11:05:00"
	payload := []byte(`{"pac":"1500"}`)

	first := PayloadHash(7, "ABC123", &ts, payload)
	second := PayloadHash(7, "ABC123", &ts, payload)

	require.Equal(t, first, second)
	require.Len(t, first, 64) // sha256 hex
}

func TestPayloadHashDistinguishesInputs(t *testing.T) {
	ts := "2026-08-29 11:05:00"
	payload := []byte(`{"pac":"1500"}`)

	base := PayloadHash(7, "ABC123", &ts, payload)

	require.NotEqual(t, base, PayloadHash(8, "ABC123", &ts, payload))
	require.NotEqual(t, base, PayloadHash(7, "ABC124", &ts, payload))
	require.NotEqual(t, base, PayloadHash(7, "ABC123", nil, payload))
	require.NotEqual(t, base, PayloadHash(7, "ABC123", &ts, []byte(`{"pac":"1501"}`)))
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"https://api.vendor.example":      "https://api.vendor.example/v1",
		"https://api.vendor.example/":     "https://api.vendor.example/v1",
		"https://api.vendor.example///":   "https://api.vendor.example/v1",
		"https://api.vendor.example/v1":   "https://api.vendor.example/v1",
		"https://api.vendor.example/v1/":  "https://api.vendor.example/v1",
		"https://api.vendor.example/v2":   "https://api.vendor.example/v2",
		"  https://api.vendor.example  ":  "https://api.vendor.example/v1",
		"https://api.vendor.example/api":  "https://api.vendor.example/api/v1",
		"":                                "",
	}

	for input, want := range cases {
		require.Equal(t, want, NormalizeBaseURL(input), "input %q", input)
	}
}
