package coach

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is the user-authored portrait rendered into every prompt. It
// lives in persona.yaml under the state dir; absent fields fall back to
// the defaults.
type Persona struct {
	Bio        string `yaml:"bio"`
	Vibe       string `yaml:"vibe"`
	Boundaries string `yaml:"boundaries"`
	DoNotSay   string `yaml:"do_not_say"`
	Signature  string `yaml:"signature"`
	Age        string `yaml:"age"`
	City       string `yaml:"city"`
	Interests  string `yaml:"interests"`
	Intent     string `yaml:"intent"`
	Goal       string `yaml:"goal"`
	Tone       string `yaml:"tone"`
}

func DefaultPersona() Persona {
	return Persona{
		Bio:        "Calm, confident, no posturing. Enjoys lively conversation and a sense of humor.",
		Vibe:       "confident with light irony, grown-up, short sentences, unhurried",
		Boundaries: "no pressure, no crudeness, no manipulation; respectful but never pleading",
		DoNotSay:   "no 'hey beautiful' openers, no negging, no jealousy, no whining, no excuses",
		Signature:  "short sentences, light irony, an occasional 🙂 or 😉, no emoji overload",
		Age:        "25+",
		City:       "unspecified",
		Interests:  "business, self-improvement, media, music, style, travel",
		Intent:     "easy conversation → interest → meeting, no games or drama",
		Goal:       "conversation → meeting",
		Tone:       "confident, lightly ironic",
	}
}

// LoadPersona reads persona.yaml from path. A missing file yields the
// defaults; blank fields in an existing file are filled from them.
func LoadPersona(path string) (Persona, error) {
	p := DefaultPersona()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("read persona %s: %w", path, err)
	}
	var loaded Persona
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return p, fmt.Errorf("decode persona %s: %w", path, err)
	}
	mergePersona(&p, loaded)
	return p, nil
}

func mergePersona(base *Persona, override Persona) {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&base.Bio, override.Bio)
	set(&base.Vibe, override.Vibe)
	set(&base.Boundaries, override.Boundaries)
	set(&base.DoNotSay, override.DoNotSay)
	set(&base.Signature, override.Signature)
	set(&base.Age, override.Age)
	set(&base.City, override.City)
	set(&base.Interests, override.Interests)
	set(&base.Intent, override.Intent)
	set(&base.Goal, override.Goal)
	set(&base.Tone, override.Tone)
}

func (p Persona) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Age: %s\n", p.Age)
	fmt.Fprintf(&b, "City: %s\n", p.City)
	fmt.Fprintf(&b, "Interests/tags: %s\n", p.Interests)
	fmt.Fprintf(&b, "Intent/positioning: %s\n\n", p.Intent)
	fmt.Fprintf(&b, "Short bio: %s\n", p.Bio)
	fmt.Fprintf(&b, "Vibe/manner: %s\n", p.Vibe)
	fmt.Fprintf(&b, "Boundaries: %s\n", p.Boundaries)
	fmt.Fprintf(&b, "Do not say: %s\n", p.DoNotSay)
	fmt.Fprintf(&b, "Signature delivery: %s", p.Signature)
	return b.String()
}
