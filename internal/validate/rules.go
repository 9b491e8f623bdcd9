package validate

import (
	"fmt"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// Rule is one global property rule. An empty Pattern only requires the
// property to be present; otherwise the whole value must match.
type Rule struct {
	Name    string
	Pattern string
}

// GlobalRules keeps rules in file order.
type GlobalRules []Rule

// UnmarshalYAML decodes either a mapping of name to pattern (null meaning
// no pattern) or a sequence of names.
func (g *GlobalRules) UnmarshalYAML(node *yaml.Node) error {
	var rules GlobalRules
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: pattern for rule %q must be a string", v.Line, k.Value)
			}
			pattern := v.Value
			if v.Tag == "!!null" {
				pattern = ""
			}
			rules = append(rules, Rule{Name: k.Value, Pattern: pattern})
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected rule name", item.Line)
			}
			rules = append(rules, Rule{Name: item.Value})
		}
	case 0:
	default:
		return fmt.Errorf("line %d: global_rules must be a mapping or a list", node.Line)
	}
	*g = rules
	return nil
}

// MarshalYAML writes the rules as an ordered mapping.
func (g GlobalRules) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, r := range g {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: r.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: r.Pattern})
	}
	return node, nil
}

// Exemptions lists, per target, the rule and check names the target is
// exempt from.
type Exemptions struct {
	Libraries   map[string][]string `yaml:"libraries,omitempty" json:"libraries,omitempty"`
	Parts       map[string][]string `yaml:"parts,omitempty" json:"parts,omitempty"`
	FPLibraries map[string][]string `yaml:"fp_libraries,omitempty" json:"fp_libraries,omitempty"`
	Footprints  map[string][]string `yaml:"footprints,omitempty" json:"footprints,omitempty"`
}

// RuleSet is the validator configuration.
type RuleSet struct {
	GlobalRules  GlobalRules         `yaml:"global_rules"`
	LibraryRules map[string][]string `yaml:"library_rules"`
	Exemptions   Exemptions          `yaml:"exemptions"`

	compiled map[string]*regexp.Regexp
}

// LoadRules reads a rule set from a YAML (or JSON) file.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a rule set and compiles its patterns.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := rs.Compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Compile checks every pattern. Patterns are anchored at both ends.
func (rs *RuleSet) Compile() error {
	rs.compiled = make(map[string]*regexp.Regexp)
	for _, r := range rs.GlobalRules {
		if r.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(`^(?:` + r.Pattern + `)$`)
		if err != nil {
			return fmt.Errorf("invalid pattern for rule %q: %w", r.Name, err)
		}
		rs.compiled[r.Name] = re
	}
	return nil
}

func (rs *RuleSet) pattern(r Rule) (*regexp.Regexp, error) {
	if rs.compiled == nil {
		rs.compiled = make(map[string]*regexp.Regexp)
	}
	if re, ok := rs.compiled[r.Name]; ok {
		return re, nil
	}
	re, err := regexp.Compile(`^(?:` + r.Pattern + `)$`)
	if err != nil {
		return nil, err
	}
	rs.compiled[r.Name] = re
	return re, nil
}

// PartExempt reports whether rule is waived for library or for the part
// library:name.
func (rs *RuleSet) PartExempt(library, name, rule string) bool {
	return slices.Contains(rs.Exemptions.Libraries[library], rule) ||
		slices.Contains(rs.Exemptions.Parts[library+":"+name], rule)
}

// FootprintExempt reports whether check is waived for the footprint
// library or for lib:footprint.
func (rs *RuleSet) FootprintExempt(library, name, check string) bool {
	return slices.Contains(rs.Exemptions.FPLibraries[library], check) ||
		slices.Contains(rs.Exemptions.Footprints[library+":"+name], check)
}
