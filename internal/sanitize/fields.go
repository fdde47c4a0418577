package sanitize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/jackzampolin/primer/internal/types"
)

// newID generates an identifier for an entity that arrived without one.
func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// id returns the entity's id as a string, generating one when absent or blank.
func id(v gjson.Result, prefix string) string {
	switch v.Type {
	case gjson.String:
		if s := strings.TrimSpace(v.Str); s != "" {
			return s
		}
	case gjson.Number:
		return v.Raw
	}
	return newID(prefix)
}

// str returns a trimmed scalar as a string, or def when blank or not scalar.
func str(v gjson.Result, def string) string {
	switch v.Type {
	case gjson.String:
		if s := strings.TrimSpace(v.Str); s != "" {
			return s
		}
	case gjson.Number, gjson.True, gjson.False:
		return v.Raw
	}
	return def
}

// text returns a string field verbatim (no trimming), or def when blank.
// Used for code where leading indentation matters.
func text(v gjson.Result, def string) string {
	if v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
		return v.Str
	}
	return def
}

// strList normalizes v into a list of non-empty strings. Scalars are stringified,
// a single string becomes a one-element list, and objects are kept as compact JSON
// only when keepObjects is set.
func strList(v gjson.Result, keepObjects bool) []string {
	out := []string{}
	add := func(item gjson.Result) {
		switch {
		case item.Type == gjson.String:
			if s := strings.TrimSpace(item.Str); s != "" {
				out = append(out, s)
			}
		case item.Type == gjson.Number, item.Type == gjson.True, item.Type == gjson.False:
			out = append(out, item.Raw)
		case keepObjects && item.IsObject():
			out = append(out, compact(item.Raw))
		}
	}
	if v.IsArray() {
		for _, item := range v.Array() {
			add(item)
		}
		return out
	}
	add(v)
	return out
}

// compact strips insignificant whitespace from a JSON fragment.
func compact(raw string) string {
	var b strings.Builder
	inString, escaped := false, false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if isSpace(c) {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// number reads a numeric value, accepting numeric strings.
func number(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, !math.IsNaN(v.Num) && !math.IsInf(v.Num, 0)
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Clamp rounds a rating into [MinRating, MaxRating].
func Clamp(f float64) int {
	f = math.Max(types.MinRating, math.Min(types.MaxRating, f))
	return int(math.Round(f))
}

// rating reads a 1..10 rating, defaulting non-numeric input to DefaultRating.
func rating(v gjson.Result) int {
	f, ok := number(v)
	if !ok {
		return types.DefaultRating
	}
	return Clamp(f)
}

// minutes reads a positive time estimate. Strings such as "45 minutes" use
// their leading number.
func minutes(v gjson.Result) int {
	if f, ok := number(v); ok {
		if f >= 1 && f < math.MaxInt32 {
			return int(math.Round(f))
		}
		return types.DefaultTimeEstimate
	}
	if v.Type == gjson.String {
		s := strings.TrimSpace(v.Str)
		end := 0
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		if n, err := strconv.Atoi(s[:end]); err == nil && n > 0 {
			return n
		}
	}
	return types.DefaultTimeEstimate
}

// first returns the first of the named fields that exists on v.
func first(v gjson.Result, names ...string) gjson.Result {
	for _, name := range names {
		if f := v.Get(name); f.Exists() && f.Type != gjson.Null {
			return f
		}
	}
	return gjson.Result{}
}
