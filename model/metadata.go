package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/siherrmann/wikigraph/helper"
)

// Metadata holds free-form page or chunk attributes stored as JSONB
type Metadata map[string]interface{}

// Value stores the metadata as JSON
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan reads JSONB columns returned as bytes or text. NULL becomes empty metadata.
func (m *Metadata) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case Metadata:
		*m = v
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return helper.NewError("scan metadata", fmt.Errorf("unsupported source type %T", value))
	}

	decoded := Metadata{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return helper.NewError("scan metadata", err)
	}
	*m = decoded
	return nil
}

// String returns the string value stored under key or an empty string
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}
