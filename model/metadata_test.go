package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValueAndScan(t *testing.T) {
	t.Run("Value then Scan keeps page attributes", func(t *testing.T) {
		m := Metadata{"url": "https://wiki/spaces/ENG/pages/42", "labels": []interface{}{"sso", "auth"}}

		value, err := m.Value()
		require.NoError(t, err, "Expected Value to not return an error")

		var scanned Metadata
		err = scanned.Scan(value)
		require.NoError(t, err, "Expected Scan to not return an error")
		assert.Equal(t, "https://wiki/spaces/ENG/pages/42", scanned.String("url"))
		assert.Len(t, scanned["labels"], 2, "Expected labels to survive the round trip")
	})

	t.Run("Scan nil yields empty metadata", func(t *testing.T) {
		var m Metadata
		err := m.Scan(nil)
		require.NoError(t, err)
		assert.NotNil(t, m, "Expected empty metadata instead of nil")
		assert.Empty(t, m)
	})

	t.Run("Scan accepts text columns", func(t *testing.T) {
		var m Metadata
		err := m.Scan(`{"space": "ENG"}`)
		require.NoError(t, err)
		assert.Equal(t, "ENG", m.String("space"))
	})

	t.Run("Scan rejects unsupported values", func(t *testing.T) {
		var m Metadata
		err := m.Scan(12)
		assert.Error(t, err, "Expected error when scanning an integer")
		assert.Contains(t, err.Error(), "unsupported source type int")
	})

	t.Run("Scan rejects invalid JSON", func(t *testing.T) {
		var m Metadata
		err := m.Scan([]byte("{not json"))
		assert.Error(t, err, "Expected error for invalid JSON")
	})

	t.Run("Nil metadata stores an empty object", func(t *testing.T) {
		var m Metadata
		value, err := m.Value()
		require.NoError(t, err)
		bytes, ok := value.([]byte)
		require.True(t, ok, "Expected JSON bytes")

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(bytes, &decoded))
		assert.Empty(t, decoded)
	})
}

func TestMetadataString(t *testing.T) {
	t.Run("Returns string value", func(t *testing.T) {
		m := Metadata{"url": "https://wiki/page/1"}
		assert.Equal(t, "https://wiki/page/1", m.String("url"), "Expected stored string value")
	})

	t.Run("Returns empty string for missing or non-string values", func(t *testing.T) {
		m := Metadata{"count": 3}
		assert.Equal(t, "", m.String("count"), "Expected empty string for non-string value")
		assert.Equal(t, "", m.String("missing"), "Expected empty string for missing key")

		var nilMeta Metadata
		assert.Equal(t, "", nilMeta.String("url"), "Expected empty string for nil metadata")
	})
}
