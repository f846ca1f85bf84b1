// Package plan reads run plans: YAML files naming gates, each selecting a set of
// suites and tag filters. A gate may inherit the selection of other gates.
package plan

import (
	"fmt"
	"os"
	"slices"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// Plan is the parsed content of a plan file.
type Plan struct {
	Gates []Gate `yaml:"gates"`
}

// Gate is a named selection of suites and tags
type Gate struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Inherits    []string `yaml:"inherits,omitempty"`
	// Suites lists suite names to run. An empty list selects every registered suite.
	Suites  []string `yaml:"suites,omitempty"`
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Filter returns the tag filter of the gate.
func (g Gate) Filter() types.Filter {
	return types.Filter{
		Include: slices.Clone(g.Include),
		Exclude: slices.Clone(g.Exclude),
	}
}

// Selects reports whether the gate runs the suite called name.
func (g Gate) Selects(name string) bool {
	return len(g.Suites) == 0 || slices.Contains(g.Suites, name)
}

// Load reads and validates the plan file at path.
func Load(path string) (*Plan, error) {
	log.Debug("Reading plan file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a plan, checks its gates and resolves inheritance.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}
	if err := p.resolve(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Gate returns the gate with the given ID.
func (p *Plan) Gate(id string) (Gate, bool) {
	for _, g := range p.Gates {
		if g.ID == id {
			return g, true
		}
	}
	return Gate{}, false
}

// GateIDs returns the IDs of every gate in file order.
func (p *Plan) GateIDs() []string {
	ids := make([]string, 0, len(p.Gates))
	for _, g := range p.Gates {
		ids = append(ids, g.ID)
	}
	return ids
}

func (p *Plan) resolve() error {
	gateMap := make(map[string]Gate, len(p.Gates))
	for _, gate := range p.Gates {
		if gate.ID == "" {
			return fmt.Errorf("gate without id")
		}
		if _, dup := gateMap[gate.ID]; dup {
			return fmt.Errorf("duplicate gate %q", gate.ID)
		}
		gateMap[gate.ID] = gate
	}

	for _, gate := range p.Gates {
		if err := checkCircularInheritance(gate.ID, gate.Inherits, gateMap, make(map[string]bool)); err != nil {
			return fmt.Errorf("circular inheritance detected: %w", err)
		}
	}

	for i := range p.Gates {
		if err := p.Gates[i].ResolveInherited(gateMap); err != nil {
			return fmt.Errorf("invalid gate inheritance: %w", err)
		}
	}
	return nil
}

// checkCircularInheritance detects circular dependencies in gate inheritance
func checkCircularInheritance(currentID string, inherits []string, gateMap map[string]Gate, visited map[string]bool) error {
	if visited[currentID] {
		return fmt.Errorf("circular inheritance detected at gate %s", currentID)
	}

	visited[currentID] = true
	defer delete(visited, currentID)

	for _, inheritedID := range inherits {
		inherited, exists := gateMap[inheritedID]
		if !exists {
			return fmt.Errorf("gate %s inherits from non-existent gate %s", currentID, inheritedID)
		}
		if err := checkCircularInheritance(inheritedID, inherited.Inherits, gateMap, visited); err != nil {
			return err
		}
	}
	return nil
}

// ResolveInherited merges the selection of every inherited gate into g, ancestors
// resolved first. The gate's own entries come first and duplicates are dropped. A
// gate that lists no suites keeps selecting every suite.
func (g *Gate) ResolveInherited(gates map[string]Gate) error {
	return g.resolveInherited(gates, make(map[string]bool))
}

func (g *Gate) resolveInherited(gates map[string]Gate, processed map[string]bool) error {
	if len(g.Inherits) == 0 {
		return nil
	}

	selectsAll := len(g.Suites) == 0
	suites := slices.Clone(g.Suites)
	include := slices.Clone(g.Include)
	exclude := slices.Clone(g.Exclude)

	for _, inheritFrom := range g.Inherits {
		if processed[inheritFrom] {
			return fmt.Errorf("circular inheritance detected for gate %q", inheritFrom)
		}
		parent, ok := gates[inheritFrom]
		if !ok {
			return fmt.Errorf("gate %q inherits from non-existent gate %q", g.ID, inheritFrom)
		}

		processed[inheritFrom] = true
		if err := parent.resolveInherited(gates, processed); err != nil {
			return fmt.Errorf("resolving inheritance for parent gate %q: %w", inheritFrom, err)
		}
		processed[inheritFrom] = false

		if len(parent.Suites) == 0 {
			selectsAll = true
		}
		suites = appendMissing(suites, parent.Suites)
		include = appendMissing(include, parent.Include)
		exclude = appendMissing(exclude, parent.Exclude)
	}

	if selectsAll {
		suites = nil
	}
	g.Suites = suites
	g.Include = include
	g.Exclude = exclude
	return nil
}

func appendMissing(dst, src []string) []string {
	for _, s := range src {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}
