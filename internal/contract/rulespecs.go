package contract

import "github.com/kontra-dev/kontra/internal/rules"

// ToRuleSpecs converts the contract's YAML-shaped rule entries into
// internal/rules.Spec values, preserving contract order (spec.md §4.1
// determinism: "rule order from contract is preserved throughout").
func (c *Contract) ToRuleSpecs() []rules.Spec {
	out := make([]rules.Spec, len(c.Rules))
	for i, r := range c.Rules {
		out[i] = rules.Spec{Name: r.Name, ID: r.ID, Params: r.Params, Severity: r.Severity}
	}
	return out
}
