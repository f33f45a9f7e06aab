package problem

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/cwbudde/optimism/internal/heuristic"
	"github.com/cwbudde/optimism/internal/selector"
	"github.com/cwbudde/optimism/internal/stopping"
)

// Flour is the kind of flour in a recipe.
type Flour int

const (
	BreadFlour Flour = iota
	AllPurposeFlour
	CakeFlour
)

func (f Flour) String() string {
	switch f {
	case BreadFlour:
		return "bread flour"
	case AllPurposeFlour:
		return "all purpose flour"
	case CakeFlour:
		return "cake flour"
	default:
		return fmt.Sprintf("flour(%d)", int(f))
	}
}

// Fat is the kind of fat in a recipe.
type Fat int

const (
	Butter Fat = iota
	Shortening
)

func (f Fat) String() string {
	if f == Shortening {
		return "shortening"
	}
	return "butter"
}

// Cookie is a chocolate chip cookie recipe.
type Cookie struct {
	Fat          Fat
	MeltFat      bool
	Flour        Flour
	FlourCups    float64
	SaltTsp      float64
	BakingSoda   float64
	BakingPowder float64
	WhiteSugar   float64
	BrownSugar   float64
	Eggs         int
	EggYolks     int
	MilkOz       float64
	ChipsCups    float64
	VanillaTsp   float64
}

// DefaultCookie returns the starting recipe.
func DefaultCookie() *Cookie {
	return &Cookie{
		Fat:        Butter,
		Flour:      BreadFlour,
		FlourCups:  2.25,
		SaltTsp:    1,
		BakingSoda: 1,
		WhiteSugar: 0.75,
		BrownSugar: 1,
		Eggs:       1,
		EggYolks:   1,
		MilkOz:     2,
		ChipsCups:  2,
		VanillaTsp: 1.5,
	}
}

func (c *Cookie) String() string {
	melted := ""
	if c.MeltFat {
		melted = "melted "
	}
	return fmt.Sprintf("1c %s%s, %.2fc %s, soda=%.2f, powder=%.2f, white=%.2f, brown=%.2f, eggs=%d, yolks=%d, milk=%.1foz",
		melted, c.Fat, c.FlourCups, c.Flour, c.BakingSoda, c.BakingPowder, c.WhiteSugar, c.BrownSugar, c.Eggs, c.EggYolks, c.MilkOz)
}

func (c *Cookie) whiteToBrownSugar() float64 {
	return c.WhiteSugar / (c.WhiteSugar + c.BrownSugar)
}

func (c *Cookie) flourProtein() float64 {
	switch c.Flour {
	case BreadFlour:
		return 1
	case AllPurposeFlour:
		return 0.5
	default:
		return 0
	}
}

// acidity rises with baking powder and brown sugar.
func (c *Cookie) acidity() float64 {
	return (c.BakingPowder + (1 - c.whiteToBrownSugar())) / 2
}

// 4oz of milk carries the protein of one egg.
func (c *Cookie) milkProteins() float64 { return c.MilkOz / 4 }

func (c *Cookie) eggProteins() float64 { return float64(c.Eggs) + float64(c.EggYolks)/2 }

func (c *Cookie) animalProteins() float64 { return c.eggProteins() + c.milkProteins() }

func (c *Cookie) dryEggProteins() float64 {
	return (float64(c.Eggs) / 2) / c.animalProteins()
}

func (c *Cookie) portionEggProteins() float64 { return c.eggProteins() / 2 }

func (c *Cookie) replaceEggWhite() {
	c.Eggs--
	c.EggYolks++
	c.MilkOz += 2
}

// Texture weights the three texture profiles a cookie search aims for.
type Texture struct {
	Chewiness  float64
	Crispiness float64
	Cakiness   float64
}

// DefaultTexture is a chewy, cakey cookie.
var DefaultTexture = Texture{Chewiness: 0.5, Cakiness: 1}

const sugarStep, leaveningStep = 0.25, 0.25

var cookies = newCookieLibrary()

func cookieFn(fn func(*Cookie) float64) func(heuristic.Design) float64 {
	return func(d heuristic.Design) float64 { return fn(d.(*Cookie)) }
}

func cookieMod(fn func(*Cookie)) func(heuristic.Design) heuristic.Design {
	return func(d heuristic.Design) heuristic.Design {
		c := d.(*Cookie)
		fn(c)
		return c
	}
}

func cloneCookie(d heuristic.Design) heuristic.Design {
	c := *d.(*Cookie)
	return &c
}

func newCookieLibrary() *heuristic.Registry {
	r := heuristic.NewRegistry("cookie texture")
	plain := heuristic.RegisterOptions{}
	inverse := heuristic.RegisterOptions{Transform: heuristic.Inverse}
	copying := heuristic.RegisterOptions{Clone: cloneCookie}
	atHalf := func(fn func(heuristic.Design) float64) func(heuristic.Design) float64 {
		return heuristic.TargetValue(0.5, 0, 1)(heuristic.Inverse(fn))
	}

	melted := cookieFn(func(c *Cookie) float64 {
		if c.MeltFat {
			return 1
		}
		return 0
	})
	r.RegisterObjective("melted_fat", melted, plain)
	r.RegisterObjective("solid_fat", melted, inverse)

	whiteToBrown := cookieFn((*Cookie).whiteToBrownSugar)
	r.RegisterObjective("white_to_brown_sugar", whiteToBrown, plain)
	r.RegisterObjective("brown_to_white_sugar", whiteToBrown, inverse)
	r.RegisterObjective("balance_sugar", whiteToBrown, heuristic.RegisterOptions{Transform: atHalf})

	protein := cookieFn((*Cookie).flourProtein)
	r.RegisterObjective("flour_protein", protein, plain)
	r.RegisterObjective("low_gluten", protein, inverse)
	r.RegisterObjective("medium_gluten", protein, heuristic.RegisterOptions{Transform: atHalf})

	acidity := cookieFn((*Cookie).acidity)
	r.RegisterObjective("acidity", acidity, plain)
	r.RegisterObjective("non_acidic_batter", acidity, inverse)

	butter := cookieFn(func(c *Cookie) float64 {
		if c.Fat == Butter {
			return 1
		}
		return 0
	})
	r.RegisterObjective("is_butter", butter, plain)
	r.RegisterObjective("is_shortening", butter, inverse)

	dryEgg := cookieFn((*Cookie).dryEggProteins)
	r.RegisterObjective("dry_egg_proteins", dryEgg, plain)
	r.RegisterObjective("wet_animal_proteins", dryEgg, inverse)

	eggPortion := cookieFn((*Cookie).portionEggProteins)
	r.RegisterObjective("portion_egg_proteins", eggPortion, plain)
	r.RegisterObjective("portion_milk_proteins", eggPortion, inverse)

	r.RegisterModifier("melt_fat", cookieMod(func(c *Cookie) { c.MeltFat = true }), copying)
	r.RegisterModifier("solidify_fat", cookieMod(func(c *Cookie) { c.MeltFat = false }), copying)
	r.RegisterModifier("increase_white_to_brown_sugar", cookieMod(func(c *Cookie) {
		// brown sugar never drops below half a cup
		if c.BrownSugar >= 0.75 {
			c.BrownSugar -= sugarStep
			c.WhiteSugar += sugarStep
		}
	}), copying)
	r.RegisterModifier("increase_brown_to_white_sugar", cookieMod(func(c *Cookie) {
		if c.WhiteSugar >= sugarStep {
			c.BrownSugar += sugarStep
			c.WhiteSugar -= sugarStep
		}
	}), copying)
	r.RegisterModifier("use_bread_flour", cookieMod(func(c *Cookie) { c.Flour = BreadFlour }), copying)
	r.RegisterModifier("use_ap_flour", cookieMod(func(c *Cookie) { c.Flour = AllPurposeFlour }), copying)
	r.RegisterModifier("use_cake_flour", cookieMod(func(c *Cookie) { c.Flour = CakeFlour }), copying)
	r.RegisterModifier("increase_leavening_acidity", cookieMod(func(c *Cookie) {
		if c.BakingSoda >= leaveningStep {
			c.BakingSoda -= leaveningStep
			c.BakingPowder += leaveningStep
		}
	}), copying)
	r.RegisterModifier("decrease_leavening_acidity", cookieMod(func(c *Cookie) {
		if c.BakingPowder >= leaveningStep {
			c.BakingSoda += leaveningStep
			c.BakingPowder -= leaveningStep
		}
	}), copying)
	r.RegisterModifier("use_butter", cookieMod(func(c *Cookie) { c.Fat = Butter }), copying)
	r.RegisterModifier("use_shortening", cookieMod(func(c *Cookie) { c.Fat = Shortening }), copying)
	r.RegisterModifier("decrease_egg_whites", cookieMod(func(c *Cookie) {
		if c.Eggs >= 1 {
			c.replaceEggWhite()
		}
	}), copying)
	r.RegisterModifier("increase_eggs", cookieMod(func(c *Cookie) {
		if c.MilkOz >= 2 {
			if c.EggYolks >= 1 {
				c.EggYolks--
				c.Eggs++
			} else {
				c.EggYolks++
			}
			c.MilkOz -= 2
		}
	}), copying)
	r.RegisterModifier("increase_milk", cookieMod(func(c *Cookie) {
		switch {
		case c.EggYolks >= 1:
			c.EggYolks--
			c.MilkOz += 2
		case c.Eggs >= 1:
			c.replaceEggWhite()
		}
	}), copying)
	return r
}

type profile map[string]map[string]float64

// Brown sugar and gluten trap moisture, butter adds water, egg whites dry the dough.
var chewy = profile{
	"brown_to_white_sugar": {"increase_brown_to_white_sugar": 1},
	"flour_protein":        {"use_ap_flour": 0.5, "use_bread_flour": 1},
	"is_butter":            {"use_butter": 1},
	"melted_fat":           {"melt_fat": 1},
	"wet_animal_proteins":  {"decrease_egg_whites": 1},
}

// Butter spreads, low acidity sets late, white sugar crisps.
var crispy = profile{
	"is_butter":             {"use_butter": 1},
	"medium_gluten":         {"use_ap_flour": 1},
	"portion_milk_proteins": {"increase_milk": 1},
	"non_acidic_batter":     {"decrease_leavening_acidity": 1, "increase_white_to_brown_sugar": 0.5},
	"white_to_brown_sugar":  {"increase_white_to_brown_sugar": 1},
}

// Shortening and acidity hold the batter up while eggs and flour protein make it rise.
var cakey = profile{
	"is_shortening":        {"use_shortening": 1},
	"low_gluten":           {"use_cake_flour": 1},
	"acidity":              {"increase_leavening_acidity": 1, "increase_brown_to_white_sugar": 0.5},
	"portion_egg_proteins": {"increase_eggs": 1},
	"balance_sugar":        {"increase_brown_to_white_sugar": 0.5, "increase_white_to_brown_sugar": 0.5},
}

// PerApplication is the per-objective modifier key the cookie search ranks by:
// the objective change a modifier has caused divided by its applications.
const PerApplication heuristic.ObjectiveModifierKey = "changes_normalize_application"

func changesPerApplication(hm *heuristic.HeuristicMap, m *heuristic.Modifier, objective string) float64 {
	s, ok := hm.Stats(m.Name)
	if !ok || s.Applications == 0 {
		return 0
	}
	return s.ObjectiveChanges[objective] / float64(s.Applications)
}

func init() {
	Register(Problem{
		Name:        "cookie",
		Description: "Tune a chocolate chip cookie recipe toward a chewy, cakey texture",
		Build: func(*rand.Rand) *Instance {
			return NewCookie(DefaultTexture)
		},
	})
}

// NewCookie builds the cookie recipe problem for a texture mix.
func NewCookie(texture Texture) *Instance {
	of := heuristic.NewObjectiveFunction()
	objectiveWeights := make(map[string]float64)
	modifierWeights := make(map[string]map[string]float64)
	var order []string

	for _, part := range []struct {
		weight  float64
		profile profile
	}{
		{texture.Chewiness, chewy},
		{texture.Crispiness, crispy},
		{texture.Cakiness, cakey},
	} {
		for _, o := range sortedKeys(part.profile) {
			if _, seen := objectiveWeights[o]; !seen {
				order = append(order, o)
				modifierWeights[o] = make(map[string]float64)
			}
			objectiveWeights[o] += part.weight
			for m, w := range part.profile[o] {
				modifierWeights[o][m] += w
			}
		}
	}

	var weights []heuristic.Weight
	for _, o := range order {
		objective, _ := cookies.Objective(o)
		of.Add(objective, objectiveWeights[o])
		for _, m := range sortedKeys(modifierWeights[o]) {
			modifier, _ := cookies.Modifier(m)
			weights = append(weights, heuristic.Weight{Modifier: modifier, Objective: o, Value: modifierWeights[o][m]})
		}
	}

	return &Instance{
		Name:           "cookie",
		Objectives:     of,
		Heuristics:     heuristic.NewHeuristicMap(weights, heuristic.WithObjectiveModifierKey(PerApplication, changesPerApplication)),
		Seeds:          []heuristic.Design{DefaultCookie()},
		DesignSelector: selector.HighestScoringDesign(nil),
		ModifierSelector: selector.NewModifierSelector("applications_to_change",
			selector.ByKeyOnMostImportantObjective(PerApplication),
			selector.Constant[*heuristic.Modifier](0.85), true),
		Stop: stopping.AtThreshold(0.7),
		Format: func(d heuristic.Design) string {
			return d.(*Cookie).String()
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
