package apns

import (
	"bytes"
	"encoding/json"
	"maps"
)

// forDevice returns the payload for one device. The template is never
// written to: when an override applies, the top level and aps maps are
// copied first and the override lands on the copies.
func forDevice(template map[string]any, d Device) map[string]any {
	if d.Badge <= 0 && d.Sound == "" {
		return template
	}
	out := maps.Clone(template)
	aps, _ := template["aps"].(map[string]any)
	aps = maps.Clone(aps)
	if aps == nil {
		aps = make(map[string]any, 2)
	}
	if d.Badge > 0 {
		aps["badge"] = d.Badge
	}
	if d.Sound != "" {
		aps["sound"] = d.Sound
	}
	out["aps"] = aps
	return out
}

// encodePayload writes non-ASCII text as literal UTF-8 and leaves <, > and & alone.
func encodePayload(tree map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
