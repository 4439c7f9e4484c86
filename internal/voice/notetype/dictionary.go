package notetype

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Category is one named group of canonical terms in a domain dictionary.
type Category struct {
	Name  string
	Terms []string
}

// Dictionary maps category names to canonical terms, preserving the order
// the categories appear in the configuration file.
type Dictionary []Category

// Len returns the total number of terms across all categories.
func (d Dictionary) Len() int {
	n := 0
	for _, c := range d {
		n += len(c.Terms)
	}
	return n
}

// UnmarshalJSON decodes a JSON object of category -> []term keeping key order.
// Non-list values are skipped, matching how loosely these files get edited by hand.
func (d *Dictionary) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("domains: expected object, got %v", tok)
	}

	var out Dictionary
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("domains: unexpected key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("domains.%s: %w", name, err)
		}

		var terms []string
		if err := json.Unmarshal(raw, &terms); err != nil {
			continue
		}
		out = append(out, Category{Name: name, Terms: terms})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*d = out
	return nil
}

// MarshalJSON encodes the dictionary as a JSON object in category order.
func (d Dictionary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		terms := c.Terms
		if terms == nil {
			terms = []string{}
		}
		val, err := json.Marshal(terms)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
