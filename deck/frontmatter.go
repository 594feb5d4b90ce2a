package deck

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bolt-foundry/gambit/gambiterr"
)

// frontMatterDelim is the line that opens and closes a front-matter block
// (spec.md §4.1 step 1).
const frontMatterDelim = "+++"

// splitFrontMatter separates a deck source's front matter from its body.
// Front matter is delimited by +++ on its own line; absent front matter
// yields an empty attribute map (spec.md §4.1 step 1).
func splitFrontMatter(source string) (attrs map[string]any, body string, err error) {
	lines := strings.Split(source, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontMatterDelim {
		return map[string]any{}, source, nil
	}
	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelim {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return nil, "", gambiterr.New(gambiterr.FrontMatterParseError, "unterminated front matter block: missing closing +++")
	}

	raw := strings.Join(lines[1:closeIdx], "\n")
	parsed := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := yaml.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, "", gambiterr.NewWithCause(gambiterr.FrontMatterParseError, "invalid front matter YAML", err)
		}
	}
	body = strings.Join(lines[closeIdx+1:], "\n")
	return normalizeYAMLMap(parsed), body, nil
}

// normalizeYAMLMap recursively converts map[string]interface{} values that
// yaml.v3 may produce with non-string keys (map[interface{}]interface{} in
// older decoders; v3 already normalizes to string keys for mappings, but
// nested sequences of maps still need walking) into plain
// map[string]any/[]any so downstream code never has to special-case YAML
// node types.
func normalizeYAMLMap(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = normalizeYAMLValue(val)
	}
	return out
}

func normalizeYAMLValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeYAMLMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAMLValue(item)
		}
		return out
	default:
		return val
	}
}

// legacyAliases maps deprecated front-matter keys to their canonical
// replacement, per spec.md §4.1 step 3.
var legacyAliases = map[string]string{
	"inputSchema":  "contextSchema",  // deck; contextFragment for cards, resolved by caller
	"outputSchema": "responseSchema", // deck; responseFragment for cards
	"actionDecks":  "actions",
	"testDecks":    "scenarios",
	"graderDecks":  "graders",
}

// applyLegacyAliases rewrites deprecated keys to their canonical form
// in-place and returns the set of legacy keys that were rewritten, so the
// caller can emit exactly one warning per legacy key per deck path
// (spec.md §8 scenario 8: "idempotence of warning").
func applyLegacyAliases(attrs map[string]any) []string {
	var used []string
	for legacy, canonical := range legacyAliases {
		if v, ok := attrs[legacy]; ok {
			if _, already := attrs[canonical]; !already {
				attrs[canonical] = v
			}
			delete(attrs, legacy)
			used = append(used, legacy)
		}
	}
	if handlers, ok := attrs["handlers"].(map[string]any); ok {
		if v, ok := handlers["onInterval"]; ok {
			if _, already := handlers["onBusy"]; !already {
				handlers["onBusy"] = v
			}
			delete(handlers, "onInterval")
			used = append(used, "handlers.onInterval")
		}
		for _, key := range []string{"onBusy", "onIdle", "onError"} {
			spec, ok := handlers[key].(map[string]any)
			if !ok {
				continue
			}
			if v, ok := spec["intervalMs"]; ok {
				if _, already := spec["repeatMs"]; !already {
					spec["repeatMs"] = v
				}
				delete(spec, "intervalMs")
				used = append(used, "handlers."+key+".intervalMs")
			}
		}
	}
	return used
}
