package detect

// Pattern type names as they appear in reports. Order of patternPriority is
// the merge tie-break: when two rings merge, the merged ring reports the
// highest-priority pattern of the pair.
const (
	PatternCycle3     = "cycle_length_3"
	PatternCycle4     = "cycle_length_4"
	PatternCycle5     = "cycle_length_5"
	PatternFanIn      = "fan_in"
	PatternFanOut     = "fan_out"
	PatternRoundTrip  = "round_trip"
	PatternShellChain = "shell_chain"
)

var patternPriority = []string{
	PatternCycle3, PatternCycle4, PatternCycle5,
	PatternFanIn, PatternFanOut,
	PatternRoundTrip, PatternShellChain,
}

// Ring is one candidate (pre-merge) or canonical (post-merge) set of
// accounts jointly implicated by a detection pattern. Only the fields for
// the producing pattern are populated.
type Ring struct {
	RingID  string
	Members []string
	Pattern string

	// cycle_length_*
	CycleLength int

	// fan_in / fan_out
	Hub     string
	HubType string // "aggregator" | "disperser"

	// shell_chain
	ChainLength         int
	ShellIntermediaries []string
	ChainSource         string
	ChainDestination    string

	// round_trip
	ForwardAmount float64
	ReverseAmount float64
	Similarity    float64

	// Set by the merge stage: every pattern folded into this ring.
	MergedPatterns []string
}

func priorityOf(pattern string) int {
	for i, p := range patternPriority {
		if p == pattern {
			return i
		}
	}
	return len(patternPriority)
}
