package analyzer

// Stats counts plan steps.
type Stats struct {
	Tabs      int
	Steps     map[Step]int
	NewGroups int
}

func ComputeStats(p Plan) Stats {
	stats := Stats{
		Tabs:      len(p.Tabs),
		Steps:     make(map[Step]int),
		NewGroups: len(p.NewGroups),
	}
	for _, tp := range p.Tabs {
		stats.Steps[tp.Step]++
	}
	return stats
}

// Changes is the number of tabs the pass would touch.
func (s Stats) Changes() int {
	return s.Tabs - s.Steps[StepSkip] - s.Steps[StepKeep]
}
