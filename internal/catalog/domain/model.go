package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Story is one catalog entry. Raw holds the catalog object exactly as
// received so enrichment can return every field untouched.
type Story struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price *int64          `json:"price,omitempty"`
	Raw   json.RawMessage `json:"raw"`
}

// NewStory parses a catalog object. Price is read from "price" when present
// as an integer or integral number/string.
func NewStory(raw json.RawMessage) (*Story, error) {
	var head struct {
		ID    json.RawMessage `json:"id"`
		Name  string          `json:"name"`
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStory, err)
	}
	id := scalarString(head.ID)
	if id == "" {
		return nil, ErrInvalidStory
	}

	story := &Story{
		ID:   id,
		Name: strings.TrimSpace(head.Name),
		Raw:  append(json.RawMessage(nil), raw...),
	}
	if price, ok := parsePrice(head.Price); ok {
		story.Price = &price
	}
	return story, nil
}

// EnrichedStory is a catalog story with the caller's entitlement flag.
type EnrichedStory struct {
	Story
	Paid bool
}

// MarshalJSON emits the catalog fields in their original order followed by
// "paid".
func (e EnrichedStory) MarshalJSON() ([]byte, error) {
	raw := bytes.TrimSpace(e.Raw)
	if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' {
		return json.Marshal(map[string]any{"id": e.ID, "name": e.Name, "paid": e.Paid})
	}

	spans, err := topLevelValueSpans(raw, "paid")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(raw) + 16)
	if len(spans) > 0 {
		last := 0
		for _, span := range spans {
			buf.Write(raw[last:span[0]])
			buf.WriteString(strconv.FormatBool(e.Paid))
			last = span[1]
		}
		buf.Write(raw[last:])
		return buf.Bytes(), nil
	}

	body := bytes.TrimSpace(raw[1 : len(raw)-1])
	buf.WriteByte('{')
	if len(body) > 0 {
		buf.Write(body)
		buf.WriteByte(',')
	}
	buf.WriteString(`"paid":`)
	buf.WriteString(strconv.FormatBool(e.Paid))
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// topLevelValueSpans returns the byte ranges of every value stored under key
// in the top-level JSON object raw.
func topLevelValueSpans(raw []byte, key string) ([][2]int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var spans [][2]int
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if name, _ := tok.(string); name == key {
			end := int(dec.InputOffset())
			spans = append(spans, [2]int{end - len(value), end})
		}
	}
	return spans, nil
}

type ListStoriesRequest struct {
	Page     int
	Size     int
	Location bool
}

func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func parsePrice(raw json.RawMessage) (int64, bool) {
	value := scalarString(raw)
	if value == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, n > 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
