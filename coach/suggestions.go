package coach

import (
	"regexp"
	"strings"
)

// Suggestions is the parsed shape of a generated numbered-list answer:
// the best reply plus up to five alternatives.
type Suggestions struct {
	Best         string
	Alternatives []string
}

const debugFooterSeparator = "\n—\nDebug:"

var (
	leadingDecorationRe = regexp.MustCompile(`^[\s\-–—•\d).]+`)
	sectionHeadRe       = regexp.MustCompile(`^\s*(\d)\)\s*(.*)$`)
	bulletRe            = regexp.MustCompile(`^(-|—|–|•|\d+[.)]|\*)\s+`)
)

// CleanText normalizes user- or model-supplied text: strips carriage
// returns and leading list decoration, trims whitespace.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = leadingDecorationRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseSuggestions extracts best + alternatives from the generated
// numbered-list text. Generation output is free text, so parsing is
// defensive: section 1's first line is the best reply, section 2's
// bullet lines are alternatives (continuation lines fold into the
// previous bullet), and with no parseable structure the first
// non-empty line wins. Nothing extractable at all is ErrEmptyInput.
func ParseSuggestions(text string) (Suggestions, error) {
	cleaned := strings.ReplaceAll(text, "\r", "")
	if i := strings.Index(cleaned, debugFooterSeparator); i >= 0 {
		cleaned = cleaned[:i]
	}

	var best string
	var alts []string

	section := 0
	var altLines []string
	for _, line := range strings.Split(cleaned, "\n") {
		if m := sectionHeadRe.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "1":
				section = 1
				if best == "" {
					best = CleanText(m[2])
				}
				continue
			case "2":
				section = 2
				if rest := strings.TrimSpace(m[2]); rest != "" {
					altLines = append(altLines, rest)
				}
				continue
			default:
				section = 3
				continue
			}
		}
		switch section {
		case 1:
			// Only the first line of section 1 is the best reply.
			if best == "" && strings.TrimSpace(line) != "" {
				best = CleanText(line)
			}
		case 2:
			if strings.TrimSpace(line) != "" {
				altLines = append(altLines, strings.TrimSpace(line))
			}
		}
	}

	for _, line := range altLines {
		if bulletRe.MatchString(line) {
			alts = append(alts, CleanText(line))
		} else if len(alts) > 0 {
			alts[len(alts)-1] = strings.TrimSpace(alts[len(alts)-1] + " " + line)
		} else {
			alts = append(alts, CleanText(line))
		}
	}
	filtered := alts[:0]
	for _, alt := range alts {
		if alt != "" {
			filtered = append(filtered, alt)
		}
	}
	alts = filtered
	if len(alts) > 5 {
		alts = alts[:5]
	}

	if best == "" {
		for _, line := range strings.Split(cleaned, "\n") {
			if strings.TrimSpace(line) != "" {
				best = CleanText(line)
				break
			}
		}
	}
	if best == "" {
		return Suggestions{}, ErrEmptyInput
	}
	return Suggestions{Best: best, Alternatives: alts}, nil
}
