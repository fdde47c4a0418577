// Package sanitize recovers structured data from free-form backend responses
// and normalizes the recovered entities into well-formed values.
package sanitize

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jackzampolin/primer/internal/types"
)

// Strategy names the recovery step that produced a parse.
type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyFenced    Strategy = "fenced"
	StrategyExtracted Strategy = "extracted"
	StrategyRepaired  Strategy = "repaired"
	StrategyFallback  Strategy = "fallback"
)

// Response is the recovered top-level envelope of a backend response.
// The four sections are always present; a fallback has them all empty.
type Response struct {
	LogicalBlockInfo types.LogicalBlockInfo
	Theory           []gjson.Result
	Questions        []gjson.Result
	Tasks            []gjson.Result

	// Strategy records which recovery step succeeded.
	Strategy Strategy
	// Raw is the recovered JSON document, empty for a fallback.
	Raw string
}

// IsFallback reports whether nothing could be recovered.
func (r *Response) IsFallback() bool {
	return r.Strategy == StrategyFallback
}

// JSON renders the envelope with its four top-level keys.
func (r *Response) JSON() string {
	var b strings.Builder
	b.WriteString(`{"logicalBlockInfo":{"suggestedEndLine":`)
	b.WriteString(strconv.Itoa(r.LogicalBlockInfo.SuggestedEndLine))
	b.WriteString(`},"theory":`)
	writeArray(&b, r.Theory)
	b.WriteString(`,"questions":`)
	writeArray(&b, r.Questions)
	b.WriteString(`,"tasks":`)
	writeArray(&b, r.Tasks)
	b.WriteString("}")
	return b.String()
}

func writeArray(b *strings.Builder, items []gjson.Result) {
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(item.Raw)
	}
	b.WriteByte(']')
}

// Fallback returns the envelope used when a response is irrecoverable.
func Fallback() *Response {
	return &Response{
		LogicalBlockInfo: types.LogicalBlockInfo{SuggestedEndLine: types.NoSuggestedEnd},
		Theory:           []gjson.Result{},
		Questions:        []gjson.Result{},
		Tasks:            []gjson.Result{},
		Strategy:         StrategyFallback,
	}
}

// Sanitize recovers the {logicalBlockInfo, theory, questions, tasks} envelope
// from text. It never fails: irrecoverable input yields Fallback().
func Sanitize(text string) *Response {
	root, strategy := recoverJSON(text, true)
	if strategy == StrategyFallback || !root.IsObject() {
		return Fallback()
	}

	return &Response{
		LogicalBlockInfo: logicalBlock(root.Get("logicalBlockInfo")),
		Theory:           objects(root.Get("theory")),
		Questions:        objects(root.Get("questions")),
		Tasks:            objects(root.Get("tasks")),
		Strategy:         strategy,
		Raw:              root.Raw,
	}
}

// Items recovers a list of entity objects. The response may be a bare array or
// an object holding the list under key.
func Items(text, key string) ([]gjson.Result, Strategy) {
	root, strategy := recoverJSON(text, false)
	if strategy == StrategyFallback {
		return nil, strategy
	}
	if root.IsArray() {
		return objects(root), strategy
	}
	if list := root.Get(key); list.Exists() {
		return objects(list), strategy
	}
	return nil, StrategyFallback
}

// Object recovers a single entity object. When the response wraps it in a list
// under key, the first element is returned.
func Object(text, key string) (gjson.Result, Strategy) {
	root, strategy := recoverJSON(text, false)
	if strategy == StrategyFallback {
		return gjson.Result{}, strategy
	}
	if root.IsArray() {
		if list := objects(root); len(list) > 0 {
			return list[0], strategy
		}
		return gjson.Result{}, StrategyFallback
	}
	if list := root.Get(key); list.IsArray() {
		if items := objects(list); len(items) > 0 {
			return items[0], strategy
		}
	}
	return root, strategy
}

// recoverJSON applies the layered recovery: direct parse, fenced block,
// outermost bracket extraction, then repairs. The first success wins.
func recoverJSON(text string, objectOnly bool) (gjson.Result, Strategy) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return gjson.Result{}, StrategyFallback
	}

	if r, ok := parse(trimmed); ok {
		return r, StrategyDirect
	}

	base := trimmed
	if fenced := stripCodeFences(trimmed); fenced != "" {
		if r, ok := parse(fenced); ok {
			return r, StrategyFenced
		}
		base = fenced
	}

	candidate := extractJSONCandidate(base, objectOnly)
	if candidate != "" {
		if r, ok := parse(candidate); ok {
			return r, StrategyExtracted
		}
	} else {
		candidate = base
	}

	repaired := stripTrailingCommas(escapeControlChars(candidate))
	if r, ok := parse(repaired); ok {
		return r, StrategyRepaired
	}
	return gjson.Result{}, StrategyFallback
}

func parse(s string) (gjson.Result, bool) {
	if !gjson.Valid(s) {
		return gjson.Result{}, false
	}
	r := gjson.Parse(s)
	if !r.IsObject() && !r.IsArray() {
		return gjson.Result{}, false
	}
	return r, true
}

// objects returns the object elements of v. A lone object is treated as a
// one-element list; anything else yields an empty list.
func objects(v gjson.Result) []gjson.Result {
	out := []gjson.Result{}
	switch {
	case v.IsArray():
		for _, item := range v.Array() {
			if item.IsObject() {
				out = append(out, item)
			}
		}
	case v.IsObject():
		out = append(out, v)
	}
	return out
}

func logicalBlock(v gjson.Result) types.LogicalBlockInfo {
	info := types.LogicalBlockInfo{SuggestedEndLine: types.NoSuggestedEnd}
	if !v.IsObject() {
		return info
	}
	if n, ok := number(v.Get("suggestedEndLine")); ok && n >= 0 {
		info.SuggestedEndLine = int(n)
	}
	info.Reason = strings.TrimSpace(v.Get("reason").String())
	return info
}
