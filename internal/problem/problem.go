// Package problem holds the ready-made search problems the CLI and server can run.
package problem

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/cwbudde/optimism/internal/heuristic"
	"github.com/cwbudde/optimism/internal/population"
	"github.com/cwbudde/optimism/internal/selector"
	"github.com/cwbudde/optimism/internal/stopping"
)

// Instance is everything needed to start one search.
type Instance struct {
	Name             string
	Objectives       *heuristic.ObjectiveFunction
	Heuristics       *heuristic.HeuristicMap
	Seeds            []heuristic.Design
	DesignSelector   *selector.DesignSelector
	ModifierSelector *selector.ModifierSelector
	Stop             stopping.Criterion
	// Format renders a design for reports. Defaults to fmt.Sprint.
	Format func(heuristic.Design) string
}

// FormatDesign renders a design with the instance's formatter.
func (inst *Instance) FormatDesign(d heuristic.Design) string {
	if inst.Format != nil {
		return inst.Format(d)
	}
	return fmt.Sprint(d)
}

// SetThresholds replaces the selectors' thresholds with constant
// probabilities. Nil values keep the current threshold.
func (inst *Instance) SetThresholds(design, modifier *float64) {
	if design != nil {
		inst.DesignSelector.Threshold = selector.Constant[*population.Iteration](*design)
	}
	if modifier != nil {
		inst.ModifierSelector.Threshold = selector.Constant[*heuristic.Modifier](*modifier)
	}
}

// Problem is a named, reproducible search problem.
type Problem struct {
	Name        string
	Description string
	// Build creates a fresh instance. Any randomness in the problem itself
	// must come from rng.
	Build func(rng *rand.Rand) *Instance
}

var (
	mu       sync.RWMutex
	problems = make(map[string]Problem)
)

// Register makes a problem available by name.
func Register(p Problem) {
	mu.Lock()
	defer mu.Unlock()
	problems[p.Name] = p
}

// Get looks up a problem by name.
func Get(name string) (Problem, error) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := problems[name]
	if !ok {
		return Problem{}, fmt.Errorf("unknown problem %q (available: %v)", name, namesLocked())
	}
	return p, nil
}

// Names lists the registered problems alphabetically.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	out := make([]string, 0, len(problems))
	for name := range problems {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
