package protocol

import (
	"fmt"
	"strings"
)

// Row is one occurrence of a transition within a template: Index counts
// which repetition of SubPart this is (0, 1, 2, ...), letting the builder
// shift each occurrence onto a different plate in the batch.
type Row struct {
	Index   int
	SubPart string
}

// Interleaving is a parsed overlap template: an ordered list of transition
// occurrences describing how several plates' steps should interleave on
// the shared wash/disp/B21 resources.
type Interleaving struct {
	Name string
	Rows []Row
}

// SubParts returns the set of distinct transition labels used by the
// template, e.g. {"incu -> B21", "B21 -> wash", ...}.
func (ilv Interleaving) SubParts() map[string]bool {
	out := make(map[string]bool, len(ilv.Rows))
	for _, r := range ilv.Rows {
		out[r.SubPart] = true
	}
	return out
}

// ParseInterleaving parses a template written as chained "a -> b -> c"
// lines. Adjacent arrows on the same line become transitions "a -> b"; the
// template's column position (leading whitespace) has no semantic meaning,
// only the repetition count of each transition does. Every distinct
// transition must occur the same number of times, at least twice.
//
// Grounded directly on original_source protocol.py's Interleaving.init,
// including its exact two invariants (count(>=2) and all-equal).
func ParseInterleaving(name, template string) (Interleaving, error) {
	var rows []Row
	seen := make(map[string]int)
	order := make([]string, 0)

	lines := strings.Split(strings.TrimSpace(template), "\n")
	for _, line := range lines {
		sides := strings.Split(strings.TrimSpace(line), "->")
		if len(sides) < 2 {
			continue
		}
		for i := 0; i+1 < len(sides); i++ {
			a := strings.TrimSpace(sides[i])
			b := strings.TrimSpace(sides[i+1])
			arrow := fmt.Sprintf("%s -> %s", a, b)
			if _, ok := seen[arrow]; !ok {
				order = append(order, arrow)
			}
			rows = append(rows, Row{Index: seen[arrow], SubPart: arrow})
			seen[arrow]++
		}
	}

	if len(order) == 0 {
		return Interleaving{}, fmt.Errorf("protocol: interleaving %q has no transitions", name)
	}

	target := seen[order[0]]
	if target <= 1 {
		return Interleaving{}, fmt.Errorf("protocol: interleaving %q needs at least two copies of all transitions", name)
	}
	for _, arrow := range order {
		if v := seen[arrow]; v != target {
			return Interleaving{}, fmt.Errorf("protocol: interleaving %q: %q occurred %d times, should be %d times", name, arrow, v, target)
		}
	}

	return Interleaving{Name: name, Rows: rows}, nil
}

// MustParseInterleaving panics on a malformed template; used only for the
// fixed set of built-in templates below, where a parse failure is a
// programming error, not a runtime condition.
func MustParseInterleaving(name, template string) Interleaving {
	ilv, err := ParseInterleaving(name, template)
	if err != nil {
		panic(err)
	}
	return ilv
}

// The built-in interleaving templates, one per overlap strategy. Names
// match original_source protocol.py's module-level templates exactly, since
// ProtocolConfig.Interleavings references them by these names.
var (
	Lin = MustParseInterleaving("lin", `
		incu -> B21 -> wash -> disp -> B21 -> incu
		incu -> B21 -> wash -> disp -> B21 -> incu
	`)

	June = MustParseInterleaving("june", `
		incu -> B21  -> wash
		incu -> B21
		                wash -> disp
		        B21  -> wash
		                        disp -> B21 -> incu
		incu -> B21
		                wash -> disp
		        B21  -> wash
		                        disp -> B21 -> incu
		                wash -> disp
		                        disp -> B21 -> incu
	`)

	Mix = MustParseInterleaving("mix", `
		incu -> B21 -> wash
		               wash -> disp
		incu -> B21 -> wash
		                       disp -> B21 -> incu
		               wash -> disp
		incu -> B21 -> wash
		                       disp -> B21 -> incu
		               wash -> disp
		                       disp -> B21 -> incu
	`)

	Quad = MustParseInterleaving("quad", `
		incu -> B21 -> wash
		               wash -> disp
		incu -> B21 -> wash
		                       disp -> B21
		               wash -> disp
		                               B21  -> incu
		incu -> B21 -> wash
		                       disp -> B21
		               wash -> disp
		                               B21  -> incu
		                       disp -> B21
		                               B21  -> incu
	`)

	Three = MustParseInterleaving("three", `
		incu -> B21 -> wash
		               wash -> disp
		incu -> B21 -> wash
		                       disp -> B21
		               wash -> disp
		incu -> B21 -> wash
		                               B21 -> incu
		                       disp -> B21
		               wash -> disp
		incu -> B21 -> wash
		                               B21 -> incu
		                       disp -> B21
		               wash -> disp
		                               B21 -> incu
		                       disp -> B21
		                               B21 -> incu
	`)

	WashLin = MustParseInterleaving("washlin", `
		incu -> B21 -> wash -> B21 -> incu
		incu -> B21 -> wash -> B21 -> incu
	`)

	WashJune = MustParseInterleaving("washjune", `
		incu -> B21 -> wash
		incu -> B21
		               wash -> B15
		        B21 -> wash
		                       B15 -> B21 -> incu
		incu -> B21
		               wash -> B15
		        B21 -> wash
		                       B15 -> B21 -> incu
		               wash -> B15
		                       B15 -> B21 -> incu
	`)

	FinLin = MustParseInterleaving("finlin", `
		incu -> B21 -> wash -> B21 -> out
		incu -> B21 -> wash -> B21 -> out
	`)

	FinJune = MustParseInterleaving("finjune", `
		incu -> B21
		        B21 -> wash
		incu -> B21
		               wash -> B15
		        B21 -> wash
		                       B15 -> B21 -> out
		incu -> B21
		               wash -> B15
		        B21 -> wash
		                       B15 -> B21 -> out
		               wash -> B15
		                       B15 -> B21 -> out
	`)

	// Templates indexes every built-in interleaving by name, the way
	// protocol.py's `Interleavings` module dict does.
	Templates = map[string]Interleaving{
		"lin":      Lin,
		"june":     June,
		"mix":      Mix,
		"quad":     Quad,
		"three":    Three,
		"washlin":  WashLin,
		"washjune": WashJune,
		"finlin":   FinLin,
		"finjune":  FinJune,
	}
)
