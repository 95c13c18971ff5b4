package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const evsesKey = "EVSEs"

var (
	errNoSettings = errors.New("settings not found or invalid in the response")
	errNoInfo     = errors.New("info not found in the response")
)

// getResponse is the envelope of /api/get.php
type getResponse struct {
	Settings  json.RawMessage `json:"settings"`
	APIErrors json.RawMessage `json:"api_errors"`
}

// parseInfo extracts settings.info and the selected EVSE from a get
// response body. Numbers are kept as json.Number.
func parseInfo(body []byte) (info map[string]any, evseKey string, evse map[string]any, err error) {
	var res getResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, "", nil, fmt.Errorf("decode response: %w", err)
	}

	if !isObject(res.Settings) {
		return nil, "", nil, errNoSettings
	}

	var settings struct {
		Info json.RawMessage `json:"info"`
	}
	if err := json.Unmarshal(res.Settings, &settings); err != nil {
		return nil, "", nil, fmt.Errorf("decode settings: %w", err)
	}
	if !isObject(settings.Info) {
		return nil, "", nil, errNoInfo
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(settings.Info, &fields); err != nil {
		return nil, "", nil, fmt.Errorf("decode info: %w", err)
	}
	if len(fields) == 0 {
		return nil, "", nil, errNoInfo
	}

	info = make(map[string]any, len(fields))
	for k, raw := range fields {
		if k == evsesKey {
			continue
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil, "", nil, fmt.Errorf("decode info %q: %w", k, err)
		}
		info[k] = v
	}

	evseKey, evse, err = firstEVSE(fields[evsesKey])
	if err != nil {
		return nil, "", nil, err
	}
	return info, evseKey, evse, nil
}

// firstEVSE returns the first entry of the EVSEs member in document order.
// A missing, null, empty object or empty array member yields no entry and no
// error. A non-empty array is keyed by the index of its first element.
func firstEVSE(raw json.RawMessage) (string, map[string]any, error) {
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return "", nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return "", nil, fmt.Errorf("decode EVSEs: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return "", nil, fmt.Errorf("decode EVSEs: expected object or array, got %v", tok)
	}
	if !dec.More() {
		return "", nil, nil
	}

	key := "0"
	if delim == '{' {
		tok, err = dec.Token()
		if err != nil {
			return "", nil, fmt.Errorf("decode EVSEs: %w", err)
		}
		key, _ = tok.(string)
	}

	var evse map[string]any
	if err := dec.Decode(&evse); err != nil {
		return "", nil, fmt.Errorf("decode EVSE %q: %w", key, err)
	}
	return key, evse, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
