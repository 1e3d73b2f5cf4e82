// Package reaction parses reaction SMILES into molecule graphs and derives the
// artifacts the prediction tools consume: canonical reaction strings, V2000
// molfiles, difference fingerprints and KEGG equation text.
package reaction

import (
	"strconv"
	"strings"

	errs "github.com/turtacn/enzbench/pkg/errors"
)

// BondOrder is the multiplicity of a bond. Aromatic bonds have their own order.
type BondOrder int

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
	BondQuadruple
	BondAromatic
)

// Atom is a single SMILES atom. HCount is -1 when hydrogens are implicit.
type Atom struct {
	Element  string
	Aromatic bool
	Charge   int
	HCount   int
	Isotope  int
	Class    int
	Bracket  bool
	Wildcard bool
}

// Bond joins atoms A and B, indexes into Molecule.Atoms.
type Bond struct {
	A, B  int
	Order BondOrder
}

// Molecule is an undirected atom graph. Stereo marks are accepted by the
// parser and dropped.
type Molecule struct {
	Atoms []Atom
	Bonds []Bond
}

// organic subset atoms that may appear outside brackets.
var organicSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true,
}

var aromaticOrganic = map[byte]string{
	'b': "B", 'c': "C", 'n': "N", 'o': "O", 'p': "P", 's': "S",
}

// elements lists every symbol accepted inside brackets.
var elements = map[string]int{}

func init() {
	symbols := strings.Fields(`H He Li Be B C N O F Ne Na Mg Al Si P S Cl Ar K Ca
		Sc Ti V Cr Mn Fe Co Ni Cu Zn Ga Ge As Se Br Kr Rb Sr Y Zr Nb Mo Tc Ru Rh
		Pd Ag Cd In Sn Sb Te I Xe Cs Ba La Ce Pr Nd Pm Sm Eu Gd Tb Dy Ho Er Tm Yb
		Lu Hf Ta W Re Os Ir Pt Au Hg Tl Pb Bi Po At Rn Fr Ra Ac Th Pa U Np Pu Am
		Cm Bk Cf Es Fm Md No Lr Rf Db Sg Bh Hs Mt Ds Rg Cn Nh Fl Mc Lv Ts Og`)
	for i, s := range symbols {
		elements[s] = i + 1
	}
}

// AtomicNumber returns the atomic number of a symbol, 0 for wildcards and
// unknown symbols.
func AtomicNumber(symbol string) int {
	return elements[symbol]
}

type ringOpen struct {
	atom  int
	order BondOrder
	set   bool
}

type parser struct {
	src     string
	pos     int
	mol     *Molecule
	prev    int
	bond    BondOrder
	hasBond bool
	branch  []int
	rings   map[int]ringOpen
}

func invalid(smiles, format string, args ...interface{}) error {
	return errs.Newf(errs.ErrCodeInvalidSMILES, format, args...).WithDetail(smiles)
}

// ParseSMILES parses a single SMILES string, possibly with several
// dot-separated components, into a Molecule.
func ParseSMILES(smiles string) (*Molecule, error) {
	s := strings.TrimSpace(smiles)
	if s == "" {
		return nil, invalid(smiles, "empty SMILES")
	}
	p := &parser{src: s, mol: &Molecule{}, prev: -1, rings: make(map[int]ringOpen)}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.mol, nil
}

func (p *parser) run() error {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return invalid(p.src, "branch opened before any atom at %d", p.pos)
			}
			p.branch = append(p.branch, p.prev)
			p.pos++
		case c == ')':
			if len(p.branch) == 0 {
				return invalid(p.src, "unbalanced ')' at %d", p.pos)
			}
			if p.hasBond {
				return invalid(p.src, "bond before ')' at %d", p.pos)
			}
			p.prev = p.branch[len(p.branch)-1]
			p.branch = p.branch[:len(p.branch)-1]
			p.pos++
		case c == '.':
			if p.hasBond {
				return invalid(p.src, "bond before '.' at %d", p.pos)
			}
			p.prev = -1
			p.pos++
		case c == '-' || c == '=' || c == '#' || c == '$' || c == ':' || c == '/' || c == '\\':
			if p.hasBond {
				return invalid(p.src, "consecutive bonds at %d", p.pos)
			}
			p.bond = bondFor(c)
			p.hasBond = true
			p.pos++
		case c == '%' || (c >= '0' && c <= '9'):
			if err := p.ringClosure(); err != nil {
				return err
			}
		case c == '[':
			a, err := p.bracketAtom()
			if err != nil {
				return err
			}
			p.addAtom(a)
		default:
			a, ok := p.bareAtom()
			if !ok {
				return invalid(p.src, "unexpected character %q at %d", c, p.pos)
			}
			p.addAtom(a)
		}
	}
	if len(p.branch) > 0 {
		return invalid(p.src, "unclosed branch")
	}
	if len(p.rings) > 0 {
		return invalid(p.src, "unclosed ring bond")
	}
	if p.hasBond {
		return invalid(p.src, "dangling bond")
	}
	return nil
}

func bondFor(c byte) BondOrder {
	switch c {
	case '=':
		return BondDouble
	case '#':
		return BondTriple
	case '$':
		return BondQuadruple
	case ':':
		return BondAromatic
	default:
		return BondSingle
	}
}

// implicitOrder is the order of an unmarked bond between two atoms.
func (p *parser) implicitOrder(a, b int) BondOrder {
	if p.mol.Atoms[a].Aromatic && p.mol.Atoms[b].Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *parser) addAtom(a Atom) {
	idx := len(p.mol.Atoms)
	p.mol.Atoms = append(p.mol.Atoms, a)
	if p.prev >= 0 {
		order := p.bond
		if !p.hasBond {
			order = p.implicitOrder(p.prev, idx)
		}
		p.mol.Bonds = append(p.mol.Bonds, Bond{A: p.prev, B: idx, Order: order})
	}
	p.prev = idx
	p.hasBond = false
}

func (p *parser) ringClosure() error {
	if p.prev < 0 {
		return invalid(p.src, "ring closure before any atom at %d", p.pos)
	}
	var num int
	if p.src[p.pos] == '%' {
		if p.pos+2 >= len(p.src) || !isDigit(p.src[p.pos+1]) || !isDigit(p.src[p.pos+2]) {
			return invalid(p.src, "bad %%nn ring closure at %d", p.pos)
		}
		num, _ = strconv.Atoi(p.src[p.pos+1 : p.pos+3])
		p.pos += 3
	} else {
		num = int(p.src[p.pos] - '0')
		p.pos++
	}

	open, ok := p.rings[num]
	if !ok {
		p.rings[num] = ringOpen{atom: p.prev, order: p.bond, set: p.hasBond}
		p.hasBond = false
		return nil
	}
	delete(p.rings, num)
	if open.atom == p.prev {
		return invalid(p.src, "ring bond %d closes on itself", num)
	}
	order := open.order
	switch {
	case p.hasBond && open.set && p.bond != open.order:
		return invalid(p.src, "conflicting ring bond orders for %d", num)
	case p.hasBond:
		order = p.bond
	case !open.set:
		order = p.implicitOrder(open.atom, p.prev)
	}
	p.mol.Bonds = append(p.mol.Bonds, Bond{A: open.atom, B: p.prev, Order: order})
	p.hasBond = false
	return nil
}

func (p *parser) bareAtom() (Atom, bool) {
	c := p.src[p.pos]
	switch {
	case c == '*' || c == 'R':
		p.pos++
		return Atom{Element: "*", HCount: -1, Wildcard: true}, true
	case c == 'C' && p.peek(1) == 'l', c == 'B' && p.peek(1) == 'r':
		sym := p.src[p.pos : p.pos+2]
		p.pos += 2
		return Atom{Element: sym, HCount: -1}, true
	}
	if sym, ok := aromaticOrganic[c]; ok {
		p.pos++
		return Atom{Element: sym, Aromatic: true, HCount: -1}, true
	}
	if organicSubset[string(c)] {
		p.pos++
		return Atom{Element: string(c), HCount: -1}, true
	}
	return Atom{}, false
}

func (p *parser) peek(offset int) byte {
	if p.pos+offset < len(p.src) {
		return p.src[p.pos+offset]
	}
	return 0
}

func (p *parser) bracketAtom() (Atom, error) {
	end := strings.IndexByte(p.src[p.pos:], ']')
	if end < 0 {
		return Atom{}, invalid(p.src, "unclosed '[' at %d", p.pos)
	}
	body := p.src[p.pos+1 : p.pos+end]
	start := p.pos
	p.pos += end + 1
	if body == "" {
		return Atom{}, invalid(p.src, "empty bracket atom at %d", start)
	}

	a := Atom{Bracket: true}
	i := 0
	for i < len(body) && isDigit(body[i]) {
		i++
	}
	if i > 0 {
		a.Isotope, _ = strconv.Atoi(body[:i])
	}

	sym, n := bracketSymbol(body[i:])
	if n == 0 {
		return Atom{}, invalid(p.src, "unknown element in [%s]", body)
	}
	i += n
	switch {
	case sym == "*" || sym == "R":
		a.Element, a.Wildcard = "*", true
	case sym[0] >= 'a' && sym[0] <= 'z':
		a.Element, a.Aromatic = strings.ToUpper(sym[:1])+sym[1:], true
	default:
		a.Element = sym
	}

	// chirality, including @TH1, @SP2 and friends
	chiral := i
	for i < len(body) && body[i] == '@' {
		i++
	}
	if i > chiral && i+1 < len(body) {
		switch body[i : i+2] {
		case "TH", "AL", "SP", "TB", "OH":
			i += 2
			for i < len(body) && isDigit(body[i]) {
				i++
			}
		}
	}

	if i < len(body) && body[i] == 'H' {
		i++
		j := i
		for i < len(body) && isDigit(body[i]) {
			i++
		}
		a.HCount = 1
		if i > j {
			a.HCount, _ = strconv.Atoi(body[j:i])
		}
	}

	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		ch := body[i]
		i++
		j := i
		for i < len(body) && isDigit(body[i]) {
			i++
		}
		switch {
		case i > j:
			v, _ := strconv.Atoi(body[j:i])
			a.Charge = sign * v
		default:
			a.Charge = sign
			for i < len(body) && body[i] == ch {
				a.Charge += sign
				i++
			}
		}
	}

	if i < len(body) && body[i] == ':' {
		i++
		j := i
		for i < len(body) && isDigit(body[i]) {
			i++
		}
		if i == j {
			return Atom{}, invalid(p.src, "missing atom class in [%s]", body)
		}
		a.Class, _ = strconv.Atoi(body[j:i])
	}
	if i != len(body) {
		return Atom{}, invalid(p.src, "trailing characters in [%s]", body)
	}
	return a, nil
}

// bracketSymbol reads an element symbol at the start of s and returns it with
// its length. Two-letter symbols win over one-letter ones.
func bracketSymbol(s string) (string, int) {
	if s == "" {
		return "", 0
	}
	if s[0] == '*' || s[0] == 'R' && (len(s) == 1 || !isLower(s[1])) {
		return s[:1], 1
	}
	if len(s) >= 2 {
		if _, ok := elements[s[:2]]; ok && isUpper(s[0]) {
			return s[:2], 2
		}
		switch s[:2] {
		case "se", "as", "te":
			return s[:2], 2
		}
	}
	if isUpper(s[0]) {
		if _, ok := elements[s[:1]]; ok {
			return s[:1], 1
		}
	}
	if _, ok := aromaticOrganic[s[0]]; ok {
		return s[:1], 1
	}
	return "", 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

// Degree returns the number of bonds touching atom i.
func (m *Molecule) Degree(i int) int {
	n := 0
	for _, b := range m.Bonds {
		if b.A == i || b.B == i {
			n++
		}
	}
	return n
}

// neighbors returns the adjacency list of the molecule, each entry holding the
// bond index and the other atom.
func (m *Molecule) neighbors() [][][2]int {
	adj := make([][][2]int, len(m.Atoms))
	for bi, b := range m.Bonds {
		adj[b.A] = append(adj[b.A], [2]int{bi, b.B})
		adj[b.B] = append(adj[b.B], [2]int{bi, b.A})
	}
	return adj
}

var defaultValences = map[string][]int{
	"B": {3}, "C": {4}, "N": {3, 5}, "O": {2}, "P": {3, 5}, "S": {2, 4, 6},
	"F": {1}, "Cl": {1}, "Br": {1}, "I": {1},
}

// ImplicitHydrogens returns the hydrogen count of atom i. Bracket atoms report
// their written count; organic subset atoms are filled up to the lowest
// default valence that fits.
func (m *Molecule) ImplicitHydrogens(i int) int {
	a := m.Atoms[i]
	if a.HCount >= 0 {
		return a.HCount
	}
	vals, ok := defaultValences[a.Element]
	if !ok || a.Wildcard {
		return 0
	}
	used := 0
	aromatic := 0
	for _, b := range m.Bonds {
		if b.A != i && b.B != i {
			continue
		}
		if b.Order == BondAromatic {
			aromatic++
			used++
			continue
		}
		used += int(b.Order)
	}
	if aromatic > 0 {
		used++
	}
	for _, v := range vals {
		if v >= used {
			return v - used
		}
	}
	return 0
}
