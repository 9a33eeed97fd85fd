// Package rules rewrites finished transcripts before they are sent as
// prompts: spoken fillers removed, misheard names corrected.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultMaxPasses = 10

// File is the YAML layout of a rules file.
//
//	max_passes: 10
//	prefix: "Answer in two sentences. "
//	rules:
//	  - say: gee pee tee
//	    write: GPT
//	  - pattern: '\b(um+|uh+)\b'
//	    write: ""
type File struct {
	MaxPasses int        `yaml:"max_passes"`
	Prefix    string     `yaml:"prefix"`
	Rules     []RuleSpec `yaml:"rules"`
}

// RuleSpec is one substitution. Exactly one of Say or Pattern is set.
type RuleSpec struct {
	Say     string `yaml:"say"`
	Pattern string `yaml:"pattern"`
	Write   string `yaml:"write"`
}

// Set applies substitutions repeatedly until the text stops changing.
type Set struct {
	rules     []rule
	prefix    string
	maxPasses int
}

type rule struct {
	re      *regexp.Regexp
	replace string
}

var extraSpace = regexp.MustCompile(`[ \t]{2,}`)

// Load reads a rules file. A blank path or a missing file yields an empty set.
func Load(path string) (*Set, error) {
	if strings.TrimSpace(path) == "" {
		return &Set{maxPasses: defaultMaxPasses}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Set{maxPasses: defaultMaxPasses}, nil
		}
		return nil, fmt.Errorf("reading rules file %q: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rules file %q: %w", path, err)
	}

	set, err := Compile(file)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return set, nil
}

// Compile builds a Set from a parsed file.
func Compile(file File) (*Set, error) {
	set := &Set{prefix: file.Prefix, maxPasses: file.MaxPasses}
	if set.maxPasses <= 0 {
		set.maxPasses = defaultMaxPasses
	}

	for i, spec := range file.Rules {
		compiled, err := compileRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		set.rules = append(set.rules, compiled)
	}
	return set, nil
}

func compileRule(spec RuleSpec) (rule, error) {
	say := strings.TrimSpace(spec.Say)
	switch {
	case say != "" && spec.Pattern != "":
		return rule{}, errors.New("set either say or pattern, not both")
	case say != "":
		// Spoken phrases match whole words, ignoring case.
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(say) + `\b`)
		if err != nil {
			return rule{}, err
		}
		return rule{re: re, replace: spec.Write}, nil
	case spec.Pattern != "":
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return rule{}, fmt.Errorf("invalid pattern: %w", err)
		}
		return rule{re: re, replace: spec.Write}, nil
	default:
		return rule{}, errors.New("rule needs say or pattern")
	}
}

// Len reports the number of substitutions.
func (s *Set) Len() int {
	return len(s.rules)
}

// Apply rewrites text. It fails when the rules keep changing the text after
// the configured number of passes, which means two rules undo each other.
func (s *Set) Apply(text string) (string, error) {
	result := text
	settled := len(s.rules) == 0
	for pass := 0; pass < s.maxPasses && !settled; pass++ {
		settled = true
		for _, r := range s.rules {
			next := r.re.ReplaceAllString(result, r.replace)
			if next != result {
				result = next
				settled = false
			}
		}
	}
	if !settled {
		return text, fmt.Errorf("rules still changing text after %d passes", s.maxPasses)
	}

	if len(s.rules) > 0 {
		result = strings.TrimSpace(extraSpace.ReplaceAllString(result, " "))
	}
	return s.prefix + result, nil
}
