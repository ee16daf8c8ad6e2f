package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pharmbio/cellpaint/internal/symbolic"
)

// ProtocolConfig describes one cell-painting recipe: which LHC protocol
// files to run at each step, how long each incubation window is, and which
// interleaving template overlaps consecutive steps. Grounded directly on
// original_source protocol.py's ProtocolConfig dataclass.
type ProtocolConfig struct {
	StepNames     []string
	Wash          []string
	Prime         []string
	PreDisp       []string
	Disp          []string
	Incu          []symbolic.SymVar
	Interleavings []string
	Interleave    bool
	Lockstep      bool
	PrepWash      string
	PrepDisp      string
}

// Validate checks the per-step list-length invariant (every per-step slice
// has the same length as StepNames) and that every named interleaving
// resolves to a registered template.
func (p ProtocolConfig) Validate() error {
	n := len(p.StepNames)
	lists := map[string][]string{
		"wash":     p.Wash,
		"prime":    p.Prime,
		"pre_disp": p.PreDisp,
		"disp":     p.Disp,
	}
	for name, l := range lists {
		if len(l) != n {
			return fmt.Errorf("protocol: field %q has %d entries, expected %d (len(step_names))", name, len(l), n)
		}
	}
	if len(p.Incu) != n {
		return fmt.Errorf("protocol: field \"incu\" has %d entries, expected %d (len(step_names))", len(p.Incu), n)
	}
	if len(p.Interleavings) != n {
		return fmt.Errorf("protocol: field \"interleavings\" has %d entries, expected %d (len(step_names))", len(p.Interleavings), n)
	}
	for _, name := range p.Interleavings {
		if _, ok := Templates[name]; !ok {
			return fmt.Errorf("protocol: unknown interleaving template %q", name)
		}
	}
	return nil
}

var incuDurationRe = regexp.MustCompile(`^(\d+):(\d\d)$`)

// ParseIncuEntry parses one comma-separated field of an incubation-window
// spec: "M:SS" (minutes:seconds, converted to seconds), a bare number of
// seconds, or a free-form variable name to be resolved later by the
// optimizer. Grounded on original_source protocol.py's make_v3 incu_csv
// parsing.
func ParseIncuEntry(s string) symbolic.SymVar {
	s = strings.TrimSpace(s)
	if m := incuDurationRe.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.ParseFloat(m[1], 64)
		secs, _ := strconv.ParseFloat(m[2], 64)
		return symbolic.Const(mins*60 + secs)
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return symbolic.Const(v)
	}
	return symbolic.Var(s)
}

// MakeV3Options configures MakeV3's generated ProtocolConfig.
type MakeV3Options struct {
	IncuCSV    string
	Interleave bool
	Six        bool
	Lockstep   bool
}

// MakeV3 builds the standard 5-step (Mito/PFA/Triton/Stains/Final) or
// 6-step (with an extra "Wash 1" step) cell-painting protocol, the LHC file
// lists and interleaving templates fixed by the automation_v3.1 wetlab
// recipe. Grounded directly on original_source protocol.py's make_v3.
func MakeV3(opts MakeV3Options) (ProtocolConfig, error) {
	n := 5
	if opts.Six {
		n = 6
	}

	var incu []symbolic.SymVar
	for _, part := range strings.Split(opts.IncuCSV, ",") {
		incu = append(incu, ParseIncuEntry(part))
	}
	if len(incu) == 0 {
		return ProtocolConfig{}, fmt.Errorf("protocol: empty incu_csv")
	}
	last := incu[len(incu)-1]
	for len(incu) < n {
		incu = append(incu, last)
	}
	incu = incu[:n-1]
	incu = append(incu, symbolic.Const(0))

	var interleavings []string
	switch {
	case opts.Six && opts.Interleave:
		interleavings = []string{"june", "june", "june", "june", "washjune", "finjune"}
	case opts.Six && !opts.Interleave:
		interleavings = []string{"lin", "lin", "lin", "lin", "washlin", "finlin"}
	case !opts.Six && opts.Interleave:
		interleavings = []string{"june", "june", "june", "june", "finjune"}
	default:
		interleavings = []string{"lin", "lin", "lin", "lin", "finlin"}
	}

	stepNames := []string{"Mito", "PFA", "Triton", "Stains", "Wash 1", "Final"}
	if !opts.Six {
		stepNames = []string{"Mito", "PFA", "Triton", "Stains", "Final"}
	}

	wash := []string{
		"automation_v3.1/1_W-2X_beforeMito_leaves20ul.LHC",
		"automation_v3.1/3_W-3X_beforeFixation_leaves20ul.LHC",
		"automation_v3.1/5_W-3X_beforeTriton.LHC",
		"automation_v3.1/7_W-3X_beforeStains.LHC",
	}
	if opts.Six {
		wash = append(wash, "automation_v3.1/9_10_W-3X_NoFinalAspirate.LHC", "automation_v3.1/9_10_W-3X_NoFinalAspirate.LHC")
	} else {
		wash = append(wash, "automation_v3.1/9_W-5X_NoFinalAspirate.LHC")
	}

	prime := truncate([]string{
		"automation_v3.1/1_D_P1_MIX_PRIME.LHC",
		"automation_v3.1/3_D_SA_PRIME.LHC",
		"automation_v3.1/5_D_SB_PRIME.LHC",
		"automation_v3.1/7_D_P2_MIX_PRIME.LHC",
		"",
		"",
	}, n)

	preDisp := truncate([]string{
		"automation_v3.1/2_D_P1_purge_then_prime.LHC",
		"",
		"",
		"automation_v3.1/8_D_P2_purge_then_prime.LHC",
		"",
		"",
	}, n)

	disp := truncate([]string{
		"automation_v3.1/2_D_P1_40ul_mito.LHC",
		"automation_v3.1/4_D_SA_384_80ul_PFA.LHC",
		"automation_v3.1/6_D_SB_384_80ul_TRITON.LHC",
		"automation_v3.1/8_D_P2_20ul_stains.LHC",
		"",
		"",
	}, n)

	cfg := ProtocolConfig{
		StepNames:     stepNames,
		Wash:          wash,
		Prime:         prime,
		PreDisp:       preDisp,
		Disp:          disp,
		Incu:          incu,
		Interleavings: interleavings,
		Interleave:    opts.Interleave,
		Lockstep:      opts.Lockstep,
		PrepWash:      "automation_v3.1/0_W_D_PRIME.LHC",
	}
	if err := cfg.Validate(); err != nil {
		return ProtocolConfig{}, err
	}
	return cfg, nil
}

func truncate(s []string, n int) []string {
	if n > len(s) {
		n = len(s)
	}
	out := make([]string, n)
	copy(out, s[:n])
	return out
}
