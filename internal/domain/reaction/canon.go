package reaction

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	errs "github.com/turtacn/enzbench/pkg/errors"
)

// Separator between the reactant and product sides of a reaction SMILES.
const Separator = ">>"

// Reaction holds the dot-separated fragments of each side.
type Reaction struct {
	Reactants []string
	Products  []string
}

// SplitReaction splits "A.B>>C" into its fragments. Empty fragments are
// dropped. It is an error for the string to contain anything but exactly one
// separator.
func SplitReaction(s string) (Reaction, error) {
	parts := strings.Split(strings.TrimSpace(s), Separator)
	if len(parts) != 2 {
		return Reaction{}, errs.New(errs.ErrCodeInvalidReaction, "reaction must contain exactly one '>>'").WithDetail(s)
	}
	return Reaction{Reactants: fragments(parts[0]), Products: fragments(parts[1])}, nil
}

func fragments(side string) []string {
	var out []string
	for _, f := range strings.Split(side, ".") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (r Reaction) String() string {
	return strings.Join(r.Reactants, ".") + Separator + strings.Join(r.Products, ".")
}

// Molecules parses every fragment. The first parse failure is returned.
func (r Reaction) Molecules() (reactants, products []*Molecule, err error) {
	parse := func(frags []string) ([]*Molecule, error) {
		out := make([]*Molecule, 0, len(frags))
		for _, f := range frags {
			m, err := ParseSMILES(f)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}
	if reactants, err = parse(r.Reactants); err != nil {
		return nil, nil, err
	}
	if products, err = parse(r.Products); err != nil {
		return nil, nil, err
	}
	return reactants, products, nil
}

// CanonicalizeReaction rewrites every fragment in canonical form, sorts the
// fragments of each side and rejoins them. Fragments that fail to parse are
// left out and returned as dropped.
func CanonicalizeReaction(s string) (string, []string, error) {
	rxn, err := SplitReaction(s)
	if err != nil {
		return "", nil, err
	}
	var dropped []string
	side := func(frags []string) []string {
		out := make([]string, 0, len(frags))
		for _, f := range frags {
			c, err := CanonicalSMILES(f)
			if err != nil {
				dropped = append(dropped, f)
				continue
			}
			out = append(out, c)
		}
		sort.Strings(out)
		return out
	}
	canon := Reaction{Reactants: side(rxn.Reactants), Products: side(rxn.Products)}
	return canon.String(), dropped, nil
}

// CanonicalSMILES parses s and writes it back in canonical form.
func CanonicalSMILES(s string) (string, error) {
	m, err := ParseSMILES(s)
	if err != nil {
		return "", err
	}
	return m.SMILES(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Atom ranking
// ─────────────────────────────────────────────────────────────────────────────

func atomInvariant(m *Molecule, i int) string {
	a := m.Atoms[i]
	return fmt.Sprintf("%02d|%03d|%s|%t|%+d|%d|%d|%d",
		m.Degree(i), AtomicNumber(a.Element), a.Element, a.Aromatic, a.Charge,
		m.ImplicitHydrogens(i), a.Isotope, a.Class)
}

// denseRank maps keys to ranks 0..k-1 in sorted key order.
func denseRank(keys []string) ([]int, int) {
	uniq := append([]string(nil), keys...)
	sort.Strings(uniq)
	pos := make(map[string]int, len(uniq))
	for _, k := range uniq {
		if _, ok := pos[k]; !ok {
			pos[k] = len(pos)
		}
	}
	ranks := make([]int, len(keys))
	for i, k := range keys {
		ranks[i] = pos[k]
	}
	return ranks, len(pos)
}

// Ranks refines atom invariants over neighborhoods until the partition stops
// splitting. Atoms that remain equivalent keep the same rank.
func (m *Molecule) Ranks() []int {
	n := len(m.Atoms)
	keys := make([]string, n)
	for i := range m.Atoms {
		keys[i] = atomInvariant(m, i)
	}
	ranks, classes := denseRank(keys)
	adj := m.neighbors()
	for iter := 0; iter < n; iter++ {
		for i := 0; i < n; i++ {
			nb := make([]string, 0, len(adj[i]))
			for _, e := range adj[i] {
				nb = append(nb, fmt.Sprintf("%d:%06d", m.Bonds[e[0]].Order, ranks[e[1]]))
			}
			sort.Strings(nb)
			keys[i] = fmt.Sprintf("%06d/%s", ranks[i], strings.Join(nb, ","))
		}
		next, k := denseRank(keys)
		ranks = next
		if k == classes {
			break
		}
		classes = k
	}
	return ranks
}

// ─────────────────────────────────────────────────────────────────────────────
// Writer
// ─────────────────────────────────────────────────────────────────────────────

type smilesWriter struct {
	m        *Molecule
	adj      [][][2]int
	rank     []int
	visited  []bool
	children [][][2]int
	ringAt   [][]int
	isRing   []bool
	open     map[int]int
	digits   map[int]bool
	sb       strings.Builder
}

// SMILES writes the molecule as a SMILES string. Each component is written by
// a depth-first walk from its lowest ranked atom, visiting neighbors in rank
// order; components are sorted and joined with '.'.
func (m *Molecule) SMILES() string {
	n := len(m.Atoms)
	w := &smilesWriter{
		m:        m,
		adj:      m.neighbors(),
		rank:     m.Ranks(),
		visited:  make([]bool, n),
		children: make([][][2]int, n),
		ringAt:   make([][]int, n),
		isRing:   make([]bool, len(m.Bonds)),
	}
	for i := range w.adj {
		nb := w.adj[i]
		sort.SliceStable(nb, func(x, y int) bool { return w.rank[nb[x][1]] < w.rank[nb[y][1]] })
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool { return w.rank[order[x]] < w.rank[order[y]] })

	var parts []string
	for _, start := range order {
		if w.visited[start] {
			continue
		}
		w.walk(start, -1)
		w.sb.Reset()
		w.open = make(map[int]int)
		w.digits = make(map[int]bool)
		w.emit(start)
		parts = append(parts, w.sb.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ".")
}

func (w *smilesWriter) walk(a, parentBond int) {
	w.visited[a] = true
	for _, e := range w.adj[a] {
		bi, nb := e[0], e[1]
		if bi == parentBond {
			continue
		}
		if w.visited[nb] {
			if !w.isRing[bi] {
				w.isRing[bi] = true
				w.ringAt[nb] = append(w.ringAt[nb], bi)
				w.ringAt[a] = append(w.ringAt[a], bi)
			}
			continue
		}
		w.children[a] = append(w.children[a], e)
		w.walk(nb, bi)
	}
}

func (w *smilesWriter) emit(a int) {
	w.sb.WriteString(atomSymbol(w.m.Atoms[a]))
	for _, bi := range w.ringAt[a] {
		if d, ok := w.open[bi]; ok {
			w.sb.WriteString(ringDigit(d))
			delete(w.open, bi)
			delete(w.digits, d)
			continue
		}
		d := 1
		for w.digits[d] {
			d++
		}
		w.digits[d] = true
		w.open[bi] = d
		w.sb.WriteString(w.bondSymbol(bi))
		w.sb.WriteString(ringDigit(d))
	}
	kids := w.children[a]
	for i, e := range kids {
		last := i == len(kids)-1
		if !last {
			w.sb.WriteByte('(')
		}
		w.sb.WriteString(w.bondSymbol(e[0]))
		w.emit(e[1])
		if !last {
			w.sb.WriteByte(')')
		}
	}
}

func ringDigit(d int) string {
	if d < 10 {
		return strconv.Itoa(d)
	}
	return "%" + strconv.Itoa(d)
}

func (w *smilesWriter) bondSymbol(bi int) string {
	b := w.m.Bonds[bi]
	bothAromatic := w.m.Atoms[b.A].Aromatic && w.m.Atoms[b.B].Aromatic
	switch b.Order {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	case BondQuadruple:
		return "$"
	case BondAromatic:
		if bothAromatic {
			return ""
		}
		return ":"
	default:
		if bothAromatic {
			return "-"
		}
		return ""
	}
}

func atomSymbol(a Atom) string {
	sym := a.Element
	if a.Wildcard {
		sym = "*"
	}
	if a.Aromatic {
		sym = strings.ToLower(sym)
	}
	plain := a.Charge == 0 && a.Isotope == 0 && a.Class == 0 && a.HCount < 0
	if plain && (a.Wildcard || organicSubset[a.Element]) {
		if !a.Aromatic {
			return sym
		}
		if _, ok := aromaticOrganic[sym[0]]; ok && len(sym) == 1 {
			return sym
		}
	}

	var sb strings.Builder
	sb.WriteByte('[')
	if a.Isotope > 0 {
		sb.WriteString(strconv.Itoa(a.Isotope))
	}
	sb.WriteString(sym)
	if a.HCount > 0 {
		sb.WriteByte('H')
		if a.HCount > 1 {
			sb.WriteString(strconv.Itoa(a.HCount))
		}
	}
	switch {
	case a.Charge == 1:
		sb.WriteByte('+')
	case a.Charge == -1:
		sb.WriteByte('-')
	case a.Charge > 1:
		sb.WriteString("+" + strconv.Itoa(a.Charge))
	case a.Charge < -1:
		sb.WriteString(strconv.Itoa(a.Charge))
	}
	if a.Class > 0 {
		sb.WriteString(":" + strconv.Itoa(a.Class))
	}
	sb.WriteByte(']')
	return sb.String()
}
