package tools

import (
	"context"
	"strings"

	"loom/config"
)

// Policy is a model's per-provider tool policy. A non-empty allow-list wins
// over the deny-list: explicit enable beats explicit disable.
type Policy struct {
	Enabled  []string
	Disabled []string
}

// Resolution is the aggregated view of every surviving provider: a flat tool
// list in provider order and the concatenated instruction string.
type Resolution struct {
	Tools        []Tool
	Instructions string
}

// Lookup returns the tool with the given name. When two providers expose
// same-named tools the later registration wins, matching call-time
// semantics.
func (r Resolution) Lookup(name string) (Tool, bool) {
	for i := len(r.Tools) - 1; i >= 0; i-- {
		if r.Tools[i].Name == name {
			return r.Tools[i], true
		}
	}
	return Tool{}, false
}

// Resolve aggregates providers into one tool set and instruction string for
// a turn. base holds the profile/system instructions that precede provider
// instructions. Provider failures contribute nothing and never abort the
// resolution.
func Resolve(ctx context.Context, policy Policy, base string, providers []Provider) Resolution {
	var res Resolution
	sections := make([]string, 0, len(providers)+1)
	if base != "" {
		sections = append(sections, base)
	}

	for _, p := range providers {
		if !p.Connected() {
			continue
		}
		if !policy.allows(p.ID()) {
			continue
		}

		toolList, err := p.Tools(ctx)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Registry] provider %s tools failed: %v", p.ID(), err)
			}
			continue
		}

		res.Tools = append(res.Tools, toolList...)
		if instr := p.Instructions(); instr != "" {
			sections = append(sections, instr)
		}
	}

	res.Instructions = strings.Join(sections, "\n\n")
	return res
}

func (p Policy) allows(providerID string) bool {
	if len(p.Enabled) > 0 {
		for _, id := range p.Enabled {
			if id == providerID {
				return true
			}
		}
		return false
	}
	for _, id := range p.Disabled {
		if id == providerID {
			return false
		}
	}
	return true
}
