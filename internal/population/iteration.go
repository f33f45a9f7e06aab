package population

import (
	"fmt"
	"math/rand/v2"
	"reflect"

	"github.com/cwbudde/optimism/internal/heuristic"
)

// Iteration is a unique score vector discovered during a search, together
// with every design that produced it and the statistics of the transitions
// that led into it.
type Iteration struct {
	id         int64
	score      float64
	scores     map[string]float64
	objectives []string
	importance map[string]float64

	designs  []heuristic.Design
	creation []int64
	visits   int

	scoreChanges   float64
	scoreIncreases int
	scoreDecreases int
	objChanges     map[string]float64
	objIncreases   map[string]int
	objDecreases   map[string]int
}

func newIteration(id int64, design heuristic.Design, eval heuristic.Evaluation, of *heuristic.ObjectiveFunction) *Iteration {
	it := &Iteration{
		id:           id,
		score:        eval.Score,
		scores:       eval.Scores,
		objectives:   of.Names(),
		importance:   make(map[string]float64, len(eval.Scores)),
		designs:      []heuristic.Design{design},
		creation:     []int64{id},
		visits:       1,
		objChanges:   make(map[string]float64, len(eval.Scores)),
		objIncreases: make(map[string]int, len(eval.Scores)),
		objDecreases: make(map[string]int, len(eval.Scores)),
	}

	total := 0.0
	for _, o := range it.objectives {
		w := of.Weight(o) * (1 - it.scores[o])
		it.importance[o] = w
		total += w
		it.objChanges[o] = 0
		it.objIncreases[o] = 0
		it.objDecreases[o] = 0
	}
	if total > 0 {
		for o := range it.importance {
			it.importance[o] /= total
		}
	}
	return it
}

// ID returns the creation index at which the iteration was first discovered.
// It also serves as the iteration's graph node id.
func (it *Iteration) ID() int64 { return it.id }

// Score returns the weighted scalar score.
func (it *Iteration) Score() float64 { return it.score }

// ObjectiveScore returns the raw score of one objective.
func (it *Iteration) ObjectiveScore(objective string) float64 { return it.scores[objective] }

// Scores returns a copy of the raw score vector.
func (it *Iteration) Scores() map[string]float64 {
	out := make(map[string]float64, len(it.scores))
	for o, v := range it.scores {
		out[o] = v
	}
	return out
}

// Objectives returns the objective names in objective function order.
func (it *Iteration) Objectives() []string {
	out := make([]string, len(it.objectives))
	copy(out, it.objectives)
	return out
}

// Importance returns the share of the remaining weighted shortfall owed to an
// objective. Importances sum to 1 unless every objective is perfect.
func (it *Iteration) Importance(objective string) float64 { return it.importance[objective] }

// LowestObjective returns the objective with the lowest raw score.
func (it *Iteration) LowestObjective() string {
	best := ""
	for _, o := range it.objectives {
		if best == "" || it.scores[o] < it.scores[best] {
			best = o
		}
	}
	return best
}

// MostImportantObjective returns the objective with the highest importance.
func (it *Iteration) MostImportantObjective() string {
	best := ""
	for _, o := range it.objectives {
		if best == "" || it.importance[o] > it.importance[best] {
			best = o
		}
	}
	return best
}

// Design returns the first design recorded for the iteration.
func (it *Iteration) Design() heuristic.Design { return it.designs[0] }

// RandomDesign returns one of the iteration's designs chosen with rng.
func (it *Iteration) RandomDesign(rng *rand.Rand) heuristic.Design {
	if len(it.designs) == 1 || rng == nil {
		return it.designs[0]
	}
	return it.designs[rng.IntN(len(it.designs))]
}

// Designs returns the distinct designs that produced the score vector, at
// most MaxDesigns of them.
func (it *Iteration) Designs() []heuristic.Design {
	out := make([]heuristic.Design, len(it.designs))
	copy(out, it.designs)
	return out
}

// CreationIndices returns the creation indices of every discovery, oldest first.
func (it *Iteration) CreationIndices() []int64 {
	out := make([]int64, len(it.creation))
	copy(out, it.creation)
	return out
}

// Visits returns how many times the score vector was discovered.
func (it *Iteration) Visits() int { return it.visits }

// ScoreChanges is the summed scalar change over all incoming transitions.
func (it *Iteration) ScoreChanges() float64 { return it.scoreChanges }

// ScoreIncreases counts incoming transitions that raised the scalar score.
func (it *Iteration) ScoreIncreases() int { return it.scoreIncreases }

// ScoreDecreases counts incoming transitions that lowered the scalar score.
func (it *Iteration) ScoreDecreases() int { return it.scoreDecreases }

// ObjectiveChanges is the summed change of one objective over incoming transitions.
func (it *Iteration) ObjectiveChanges(objective string) float64 { return it.objChanges[objective] }

// ObjectiveIncreases counts incoming transitions that raised one objective.
func (it *Iteration) ObjectiveIncreases(objective string) int { return it.objIncreases[objective] }

// ObjectiveDecreases counts incoming transitions that lowered one objective.
func (it *Iteration) ObjectiveDecreases(objective string) int { return it.objDecreases[objective] }

// Equal reports whether two iterations share a score vector.
func (it *Iteration) Equal(other *Iteration) bool {
	if it.score != other.score || len(it.scores) != len(other.scores) {
		return false
	}
	for o, v := range it.scores {
		ov, ok := other.scores[o]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

func (it *Iteration) merge(other *Iteration) {
	for _, d := range other.designs {
		it.addDesign(d)
	}
	it.creation = append(it.creation, other.creation...)
	it.visits += other.visits
}

// MaxDesigns bounds how many distinct designs an iteration keeps. Later
// discoveries still count as visits but their designs are dropped, which
// keeps the duplicate scan in addDesign bounded on heavily revisited
// score vectors.
const MaxDesigns = 64

func (it *Iteration) addDesign(d heuristic.Design) {
	if len(it.designs) >= MaxDesigns {
		return
	}
	for _, existing := range it.designs {
		if reflect.DeepEqual(existing, d) {
			return
		}
	}
	it.designs = append(it.designs, d)
}

func (it *Iteration) addIncoming(c *Change) {
	it.scoreChanges += c.ScoreChange
	if c.Increased() {
		it.scoreIncreases++
	}
	if c.Decreased() {
		it.scoreDecreases++
	}
	for o, v := range c.ObjectiveChanges {
		it.objChanges[o] += v
		if v > 0 {
			it.objIncreases[o]++
		}
		if v < 0 {
			it.objDecreases[o]++
		}
	}
}

func (it *Iteration) evaluation() heuristic.Evaluation {
	return heuristic.Evaluation{Score: it.score, Scores: it.scores}
}

func (it *Iteration) String() string {
	return fmt.Sprintf("I%d score=%.4f visits=%d design=%v", it.id, it.score, it.visits, it.Design())
}
