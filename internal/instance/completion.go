package instance

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"strconv"
)

// Activities is the completion-activity set: activity id to completed flag.
type Activities map[int64]bool

// EncodeActivities produces the stored form: the activity map as JSON with
// decimal-string keys, base64 wrapped. Empty and nil maps encode to "".
func EncodeActivities(a Activities) string {
	if len(a) == 0 {
		return ""
	}
	doc := make(map[string]bool, len(a))
	for id, done := range a {
		doc[strconv.FormatInt(id, 10)] = done
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeActivities parses a stored completion-activity document. The parser
// is forgiving: malformed base64, malformed JSON, or non-numeric keys all
// yield an empty map rather than an error.
func DecodeActivities(encoded string) Activities {
	out := Activities{}
	if encoded == "" {
		return out
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Activities{}
	}
	var doc map[string]bool
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Activities{}
	}
	for key, done := range doc {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return Activities{}
		}
		out[id] = done
	}
	return out
}

// Incomplete lists the activity ids still flagged incomplete, in id order.
func (a Activities) Incomplete() []int64 {
	var out []int64
	for id, done := range a {
		if !done {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllComplete reports whether every activity in the set is flagged complete.
// An empty set counts as complete.
func (a Activities) AllComplete() bool {
	for _, done := range a {
		if !done {
			return false
		}
	}
	return true
}
