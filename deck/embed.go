package deck

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bolt-foundry/gambit/gambiterr"
)

// embedPattern matches a markdown image literal used as an embed directive
// (spec.md §4.1 step 2): ![alt](target).
var embedPattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]*)\)`)

// embedResult is what expanding a single embed directive produces: text to
// splice into the body, plus any side effects on the owning document
// (respond/allowEnd flags, nested card references to merge).
type embedResult struct {
	replacement string
	respond     bool
	allowEnd    bool
	card        *Card
}

// expandBody walks every embed directive in body and returns the expanded
// text plus the side effects collected along the way. stack is the chain of
// resolved paths currently being expanded, used for cycle detection
// (spec.md §4.1 step 2: "pushing the resolved path onto the cycle-detection
// stack; on re-entry emit EmbedCycle with the full chain").
func (l *Loader) expandBody(body, ownerPath string, stack []string) (string, []*Card, bool, bool, error) {
	var cards []*Card
	var respond, allowEnd bool
	var expandErr error

	out := embedPattern.ReplaceAllStringFunc(body, func(match string) string {
		if expandErr != nil {
			return match
		}
		groups := embedPattern.FindStringSubmatch(match)
		target := groups[2]

		res, err := l.expandEmbed(target, ownerPath, stack)
		if err != nil {
			expandErr = err
			return match
		}
		if res.respond {
			respond = true
		}
		if res.allowEnd {
			allowEnd = true
		}
		if res.card != nil {
			cards = append(cards, res.card)
		}
		return res.replacement
	})
	if expandErr != nil {
		return "", nil, false, false, expandErr
	}
	return out, cards, respond, allowEnd, nil
}

// expandEmbed resolves one embed target per spec.md §4.1 step 2.
func (l *Loader) expandEmbed(target, ownerPath string, stack []string) (embedResult, error) {
	switch target {
	case "gambit://respond":
		return embedResult{replacement: RespondText, respond: true}, nil
	case "gambit://init":
		return embedResult{replacement: InitText}, nil
	case "gambit://end":
		return embedResult{replacement: EndText, allowEnd: true}, nil
	}

	if IsVirtualPath(target) {
		uri := splitVirtualTarget(target)
		if strings.HasPrefix(uri, "cards/") || strings.HasPrefix(uri, "snippets/") {
			content, ok := l.assets.Asset(uri)
			if !ok {
				return embedResult{}, gambiterr.Errorf(gambiterr.FrontMatterParseError, "bundled asset %q not found", target)
			}
			for _, prior := range stack {
				if prior == target {
					chain := append(append([]string{}, stack...), target)
					return embedResult{}, gambiterr.Errorf(gambiterr.EmbedCycle, "embed cycle detected: %s", strings.Join(chain, " -> "))
				}
			}
			card, err := l.loadCardFromSource(target, content, append(stack, target))
			if err != nil {
				return embedResult{}, err
			}
			return embedResult{replacement: card.Body, card: card}, nil
		}
		return embedResult{}, gambiterr.Errorf(gambiterr.UnsupportedFeature, "unsupported virtual embed target %q", target)
	}

	// Regular path, relative to the current file.
	resolved := filepath.Clean(filepath.Join(filepath.Dir(ownerPath), target))
	for _, prior := range stack {
		if prior == resolved {
			chain := append(append([]string{}, stack...), resolved)
			return embedResult{}, gambiterr.Errorf(gambiterr.EmbedCycle, "embed cycle detected: %s", strings.Join(chain, " -> "))
		}
	}
	content, err := l.fs.ReadFile(resolved)
	if err != nil {
		return embedResult{}, fmt.Errorf("read embedded card %s: %w", resolved, err)
	}
	card, err := l.loadCardFromSource(resolved, content, append(stack, resolved))
	if err != nil {
		return embedResult{}, err
	}
	return embedResult{replacement: card.Body, card: card}, nil
}
