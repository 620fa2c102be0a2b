package vespa

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is an untyped JSON object as returned by the backend.
type Record map[string]any

// List is a normalized collection response. The backend returns collections
// either as a bare array, as {"<resource>": [...]} or as {"results": [...]};
// all three decode to the same List.
type List struct {
	Items []Record
	// Count is the envelope's "count" or "total" when present, else len(Items).
	Count int
	// Raw is the full envelope object; nil for bare arrays.
	Raw Record
}

func decodeList(raw json.RawMessage, key string) (*List, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &List{Items: []Record{}}, nil
	}

	if trimmed[0] == '[' {
		var items []Record
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode %s list: %w", key, err)
		}
		return &List{Items: items, Count: len(items)}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", key, err)
	}

	itemsRaw, ok := fields[key]
	if !ok || key == "" {
		itemsRaw, ok = fields["results"]
	}
	if !ok {
		return nil, fmt.Errorf("decode %s list: response has neither %q nor \"results\"", key, key)
	}

	items := []Record{}
	if err := json.Unmarshal(itemsRaw, &items); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", key, err)
	}
	if items == nil {
		items = []Record{}
	}

	var envelope Record
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", key, err)
	}

	list := &List{Items: items, Count: len(items), Raw: envelope}
	for _, countKey := range []string{"count", "total"} {
		if n, ok := envelope[countKey].(float64); ok {
			list.Count = int(n)
			break
		}
	}
	return list, nil
}

// unwrapRecord decodes an object response, returning the nested object under
// key when the backend wraps it ({"customer": {...}}).
func unwrapRecord(raw json.RawMessage, key string) (Record, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if key == "" {
		return rec, nil
	}
	if inner, ok := rec[key].(map[string]any); ok {
		return Record(inner), nil
	}
	return rec, nil
}

// decodeRecord decodes an object response as-is.
func decodeRecord(raw json.RawMessage) (Record, error) {
	return unwrapRecord(raw, "")
}
