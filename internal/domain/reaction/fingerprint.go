package reaction

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	errs "github.com/turtacn/enzbench/pkg/errors"
)

const (
	// DefaultRadius is the neighborhood radius of circular features.
	DefaultRadius = 2
	// DefaultBins is the folded length of difference fingerprints.
	DefaultBins = 2048
)

// CountFingerprint maps circular feature identifiers to occurrence counts.
type CountFingerprint map[uint32]int

func hash32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Fingerprint computes Morgan-style circular features: every atom contributes
// one feature per radius from 0 to radius, each one hashing the atom's
// previous identifier with the sorted identifiers of its neighbors.
func (m *Molecule) Fingerprint(radius int) CountFingerprint {
	fp := make(CountFingerprint)
	n := len(m.Atoms)
	adj := m.neighbors()
	ids := make([]uint32, n)
	for i, a := range m.Atoms {
		ids[i] = hash32(fmt.Sprintf("%d|%s|%t|%d|%d|%d",
			m.Degree(i), a.Element, a.Aromatic, a.Charge, m.ImplicitHydrogens(i), a.Isotope))
		fp[ids[i]]++
	}
	for r := 1; r <= radius; r++ {
		next := make([]uint32, n)
		for i := range m.Atoms {
			env := make([]string, 0, len(adj[i]))
			for _, e := range adj[i] {
				env = append(env, fmt.Sprintf("%d:%d", m.Bonds[e[0]].Order, ids[e[1]]))
			}
			sort.Strings(env)
			next[i] = hash32(fmt.Sprintf("%d|%d|%s", r, ids[i], strings.Join(env, ",")))
			fp[next[i]]++
		}
		ids = next
	}
	return fp
}

// Fold accumulates the fingerprint into bins with the given sign.
func (fp CountFingerprint) Fold(vec []int, sign int) {
	for id, c := range fp {
		vec[int(id%uint32(len(vec)))] += sign * c
	}
}

// DifferenceFingerprint returns the folded product features minus the folded
// reactant features of a reaction SMILES.
func DifferenceFingerprint(rxn string, bins int) ([]int, error) {
	if bins <= 0 {
		bins = DefaultBins
	}
	r, err := SplitReaction(rxn)
	if err != nil {
		return nil, err
	}
	reactants, products, err := r.Molecules()
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeFingerprintFailed, "fingerprint failed").WithDetail(rxn)
	}
	vec := make([]int, bins)
	for _, m := range products {
		m.Fingerprint(DefaultRadius).Fold(vec, 1)
	}
	for _, m := range reactants {
		m.Fingerprint(DefaultRadius).Fold(vec, -1)
	}
	return vec, nil
}

// Tanimoto compares two signed count vectors. Bins contribute to the
// intersection only where both entries share a sign. Two empty vectors have
// similarity 0.
func Tanimoto(a, b []int) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var and, s1, s2 int
	for _, v := range a {
		s1 += abs(v)
	}
	for _, v := range b {
		s2 += abs(v)
	}
	for i := 0; i < n; i++ {
		x, y := a[i], b[i]
		if x == 0 || y == 0 || (x > 0) != (y > 0) {
			continue
		}
		and += min(abs(x), abs(y))
	}
	denom := s1 + s2 - and
	if denom == 0 {
		return 0
	}
	return float64(and) / float64(denom)
}

// Euclidean is the distance between two equal-length vectors. Extra entries
// of the longer vector are ignored.
func Euclidean(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
