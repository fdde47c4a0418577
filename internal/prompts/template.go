package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
)

// variablePattern matches field references inside template actions, such as
// {{.Text}}, {{ .Chunk }} or {{if .Focus}}.
var variablePattern = regexp.MustCompile(`\{\{-?\s*(?:if\s+|with\s+|range\s+)?\.([a-zA-Z_][a-zA-Z0-9_.]*)`)

// ExtractVariables returns the sorted, de-duplicated field names a template references.
func ExtractVariables(text string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, match := range variablePattern.FindAllStringSubmatch(text, -1) {
		if name := match[1]; !seen[name] {
			seen[name] = true
			vars = append(vars, name)
		}
	}
	sort.Strings(vars)
	return vars
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
