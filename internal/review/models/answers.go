package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	dErrors "expatdesk/pkg/domain-errors"
)

// Answer is a sealed union of the value shapes the catalog accepts.
type Answer interface {
	answer()
}

// Text answers choice and text questions.
type Text string

// Multi answers multi-select questions.
type Multi []string

// Flag answers yes/no confirmations.
type Flag bool

func (Text) answer()  {}
func (Multi) answer() {}
func (Flag) answer()  {}

// Answers maps question keys to typed answers. On the wire it is a flat
// object of string, string list or boolean values.
type Answers map[QuestionKey]Answer

// Text returns the string value for key and whether one is present.
func (a Answers) Text(key QuestionKey) (string, bool) {
	v, ok := a[key].(Text)
	return string(v), ok
}

// Multi returns the list value for key.
func (a Answers) Multi(key QuestionKey) []string {
	v, _ := a[key].(Multi)
	return v
}

// Flag returns the boolean value for key.
func (a Answers) Flag(key QuestionKey) bool {
	v, _ := a[key].(Flag)
	return bool(v)
}

// Is reports whether the string answer for key equals want.
func (a Answers) Is(key QuestionKey, want string) bool {
	v, ok := a.Text(key)
	return ok && v == want
}

// Keys returns the answered keys in sorted order.
func (a Answers) Keys() []QuestionKey {
	keys := make([]QuestionKey, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clone deep-copies the answers.
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	out := make(Answers, len(a))
	for k, v := range a {
		if m, ok := v.(Multi); ok {
			v = append(Multi(nil), m...)
		}
		out[k] = v
	}
	return out
}

// Validate checks every key against the catalog and every value against
// its question kind.
func (a Answers) Validate() error {
	for _, k := range a.Keys() {
		q, ok := LookupQuestion(k)
		if !ok {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown question %q", k))
		}
		if !kindAccepts(q.Kind, a[k]) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("question %q expects a %s answer", k, q.Kind))
		}
	}
	return nil
}

func kindAccepts(kind AnswerKind, v Answer) bool {
	switch v.(type) {
	case Text:
		return kind == KindChoice || kind == KindText
	case Multi:
		return kind == KindMulti
	case Flag:
		return kind == KindFlag
	default:
		return false
	}
}

func (a Answers) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(a))
	for k, v := range a {
		switch tv := v.(type) {
		case Text:
			flat[string(k)] = string(tv)
		case Multi:
			if tv == nil {
				tv = Multi{}
			}
			flat[string(k)] = []string(tv)
		case Flag:
			flat[string(k)] = bool(tv)
		}
	}
	return json.Marshal(flat)
}

func (a *Answers) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Answers{}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "form_data must be an object")
	}
	out := make(Answers, len(raw))
	for name, msg := range raw {
		key := QuestionKey(name)
		q, ok := LookupQuestion(key)
		if !ok {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown question %q", name))
		}
		if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			continue
		}
		v, err := decodeRaw(q.Kind, msg)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("question %q expects a %s answer", name, q.Kind))
		}
		out[key] = v
	}
	*a = out
	return nil
}

func decodeRaw(kind AnswerKind, msg json.RawMessage) (Answer, error) {
	switch kind {
	case KindChoice, KindText:
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, err
		}
		return Text(s), nil
	case KindMulti:
		var l []string
		if err := json.Unmarshal(msg, &l); err != nil {
			return nil, err
		}
		return Multi(l), nil
	case KindFlag:
		var b bool
		if err := json.Unmarshal(msg, &b); err != nil {
			return nil, err
		}
		return Flag(b), nil
	}
	return nil, fmt.Errorf("unsupported kind %s", kind)
}

// AnswersFromValues converts loosely typed values, as produced by YAML or
// JSON decoding into map[string]any, into typed answers.
func AnswersFromValues(values map[string]any) (Answers, error) {
	out := make(Answers, len(values))
	for name, raw := range values {
		key := QuestionKey(name)
		q, ok := LookupQuestion(key)
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown question %q", name))
		}
		if raw == nil {
			continue
		}
		v, ok := convertValue(q.Kind, raw)
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("question %q expects a %s answer", name, q.Kind))
		}
		out[key] = v
	}
	return out, nil
}

func convertValue(kind AnswerKind, raw any) (Answer, bool) {
	switch kind {
	case KindChoice, KindText:
		switch v := raw.(type) {
		case string:
			return Text(v), true
		case time.Time:
			return Text(v.Format(time.DateOnly)), true
		}
	case KindMulti:
		switch v := raw.(type) {
		case []string:
			return Multi(append([]string(nil), v...)), true
		case []any:
			l := make(Multi, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, false
				}
				l = append(l, s)
			}
			return l, true
		}
	case KindFlag:
		if b, ok := raw.(bool); ok {
			return Flag(b), true
		}
	}
	return nil, false
}
