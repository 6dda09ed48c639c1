package jsontemplate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Params hold eagerly loaded parameters for JSON templates and falls back to
// environment variables.
type Params struct {
	params map[string]string
}

func NewParams() *Params {
	return &Params{
		params: make(map[string]string),
	}
}

func (pl *Params) Set(key, value string) {
	pl.params[key] = value
}

// Get retrieves key's value from the params map, falling back to an
// environment variable.
func (pl *Params) Get(key string) (string, bool) {
	if pl != nil {
		value, exists := pl.params[key]
		if exists {
			return value, true
		}
	}

	value := os.Getenv("PINOT_PARAM_" + key)
	if value != "" {
		return value, true
	}

	return "", false
}

// StringVar is a JSON value that is either a literal string or a parameter
// reference like {"param": "BROKER_URL"}.
type StringVar struct {
	Value string
	Param string
}

func (v *StringVar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		v.Param = ""
		return json.Unmarshal(data, &v.Value)
	}

	var ref struct {
		Param string `json:"param"`
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return fmt.Errorf("expected a string or parameter reference: %w", err)
	}
	if ref.Param == "" {
		return fmt.Errorf("parameter reference is missing a name")
	}
	v.Value = ""
	v.Param = ref.Param
	return nil
}

// Resolve returns the literal value or looks up the referenced parameter.
func (v StringVar) Resolve(params *Params) (string, error) {
	if v.Param == "" {
		return v.Value, nil
	}
	value, found := params.Get(v.Param)
	if !found {
		return "", fmt.Errorf("parameter %q not found", v.Param)
	}
	return value, nil
}
