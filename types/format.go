package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// NormalizeVerdict maps arbitrary interpreter output onto the closed verdict
// set. Anything that is not exactly "confirmed" (case-insensitive, trimmed)
// counts as a rejection so that ambiguous replies never advance the flow.
func NormalizeVerdict(raw string) Verdict {
	if strings.EqualFold(strings.TrimSpace(raw), string(VerdictConfirmed)) {
		return VerdictConfirmed
	}
	return VerdictRejected
}

// FieldSet is the opaque attribute map produced by the document extractor.
// The extractor owns its structure; the rest of the system only renders it.
type FieldSet map[string]any

// Empty reports whether no fields were extracted.
func (f FieldSet) Empty() bool {
	return len(f) == 0
}

// Render produces a deterministic "key: value" listing suitable for
// embedding in composer prompts and confirmation messages.
func (f FieldSet) Render() string {
	if len(f) == 0 {
		return "(no fields)"
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(renderValue(f[k]))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		if s, err := sonic.MarshalString(val); err == nil {
			return s
		}
		return fmt.Sprintf("%v", val)
	}
}
