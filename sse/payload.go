package sse

import "github.com/tidwall/gjson"

// Payload is a sealed interface over the payload shapes a data event can
// carry. The unexported marker method prevents external implementations.
type Payload interface {
	payload()
	Delta() string
}

// ContentPayload is {"content": "..."}.
type ContentPayload struct{ Text string }

func (ContentPayload) payload()        {}
func (p ContentPayload) Delta() string { return p.Text }

// ChoiceDeltaPayload is {"choices": [{"delta": {"content": "..."}}]}.
type ChoiceDeltaPayload struct{ Text string }

func (ChoiceDeltaPayload) payload()        {}
func (p ChoiceDeltaPayload) Delta() string { return p.Text }

// TextPayload is {"text": "..."}.
type TextPayload struct{ Text string }

func (TextPayload) payload()        {}
func (p TextPayload) Delta() string { return p.Text }

// RawPayload is anything else, passed through verbatim.
type RawPayload struct{ Text string }

func (RawPayload) payload()        {}
func (p RawPayload) Delta() string { return p.Text }

// Interface compliance checks.
var (
	_ Payload = ContentPayload{}
	_ Payload = ChoiceDeltaPayload{}
	_ Payload = TextPayload{}
	_ Payload = RawPayload{}
)

// Extract decodes a non-sentinel data payload. JSON objects are probed in
// fixed order, first match wins: "content", "choices.0.delta.content",
// "text". A field matches when it holds a non-empty string, a non-zero
// number or true. Objects with no match, other JSON values and non-JSON
// text all fall back to the raw payload. Extract never fails.
func Extract(raw string) Payload {
	if !gjson.Valid(raw) {
		return RawPayload{Text: raw}
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return RawPayload{Text: raw}
	}
	if s, ok := truthy(doc.Get("content")); ok {
		return ContentPayload{Text: s}
	}
	if s, ok := truthy(doc.Get("choices.0.delta.content")); ok {
		return ChoiceDeltaPayload{Text: s}
	}
	if s, ok := truthy(doc.Get("text")); ok {
		return TextPayload{Text: s}
	}
	return RawPayload{Text: raw}
}

// ExtractDelta returns the content delta of a data payload.
func ExtractDelta(raw string) string {
	return Extract(raw).Delta()
}

func truthy(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.String:
		return r.Str, r.Str != ""
	case gjson.Number:
		return r.String(), r.Num != 0
	case gjson.True:
		return "true", true
	default:
		return "", false
	}
}
