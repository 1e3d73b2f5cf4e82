package reaction

import (
	"fmt"
	"strings"
)

// molProgram is written on the second header line of generated molfiles.
const molProgram = "enzbench"

// MolBlock renders the molecule as a V2000 molfile. Coordinates are zero;
// consumers of these files only read connectivity. Charges and isotopes are
// written as M  CHG and M  ISO property lines.
func (m *Molecule) MolBlock(name string) string {
	var sb strings.Builder
	sb.WriteString(name + "\n")
	fmt.Fprintf(&sb, "  %-8s          2D\n\n", molProgram)
	fmt.Fprintf(&sb, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", len(m.Atoms), len(m.Bonds))

	var charges, isotopes [][2]int
	for i, a := range m.Atoms {
		sym := a.Element
		if a.Wildcard {
			sym = "R"
		}
		fmt.Fprintf(&sb, "%10.4f%10.4f%10.4f %-3s 0  0  0  0  0  0  0  0  0  0  0  0\n", 0.0, 0.0, 0.0, sym)
		if a.Charge != 0 {
			charges = append(charges, [2]int{i + 1, a.Charge})
		}
		if a.Isotope != 0 {
			isotopes = append(isotopes, [2]int{i + 1, a.Isotope})
		}
	}
	for _, b := range m.Bonds {
		order := int(b.Order)
		if b.Order == BondAromatic {
			order = 4
		}
		fmt.Fprintf(&sb, "%3d%3d%3d  0\n", b.A+1, b.B+1, order)
	}
	writeProperty(&sb, "CHG", charges)
	writeProperty(&sb, "ISO", isotopes)
	sb.WriteString("M  END\n")
	return sb.String()
}

// writeProperty writes atom property lines, at most eight entries per line.
func writeProperty(sb *strings.Builder, tag string, entries [][2]int) {
	for start := 0; start < len(entries); start += 8 {
		end := start + 8
		if end > len(entries) {
			end = len(entries)
		}
		fmt.Fprintf(sb, "M  %s%3d", tag, end-start)
		for _, e := range entries[start:end] {
			fmt.Fprintf(sb, " %3d %3d", e[0], e[1])
		}
		sb.WriteByte('\n')
	}
}
