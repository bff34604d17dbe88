package compiler

// InputStrategy decides how the matched inputs of a run are grouped into
// invocation units.
type InputStrategy interface {
	// Group partitions the sorted matched inputs into units. Each returned
	// slice becomes one Context.
	Group(inputs []string) [][]string
}

// AtomicInput treats all matched inputs as a single unit: one invocation
// sees every input at once.
type AtomicInput struct {
	// DisplayName names the combined unit; empty falls back to the first
	// input path.
	DisplayName string
}

func (s AtomicInput) Group(inputs []string) [][]string {
	if len(inputs) == 0 {
		return nil
	}
	return [][]string{inputs}
}

// IndividualInput yields one unit per matched input.
type IndividualInput struct{}

func (IndividualInput) Group(inputs []string) [][]string {
	out := make([][]string, len(inputs))
	for i, in := range inputs {
		out[i] = []string{in}
	}
	return out
}
