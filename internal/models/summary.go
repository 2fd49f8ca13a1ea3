package models

// BatchSummary contains aggregate counts across all inputs of a batch.
type BatchSummary struct {
	Inputs       int            `json:"inputs"`
	EmptyWindows int            `json:"empty_windows"`
	TotalRuns    int            `json:"total_runs"`
	Successes    int            `json:"successes"`
	Failures     int            `json:"failures"`
	Results      []InputSummary `json:"results"`
}

// InputSummary describes how far one project got through its version window.
type InputSummary struct {
	Project        string `json:"project"`
	LibraryPackage string `json:"library_package"`
	Tested         int    `json:"tested"`
	LastCompatible string `json:"last_compatible,omitempty"`
	BrokenAt       string `json:"broken_at,omitempty"`
}

// Summarize computes a BatchSummary from the nested aggregate results.
// Inputs with an empty window have no resolved entries, so they are
// counted but not listed.
func Summarize(results [][]TestResult) BatchSummary {
	s := BatchSummary{
		Inputs:  len(results),
		Results: make([]InputSummary, 0, len(results)),
	}

	for _, runs := range results {
		if len(runs) == 0 {
			s.EmptyWindows++
			continue
		}

		is := InputSummary{
			Project:        runs[0].Input.Project,
			LibraryPackage: runs[0].Input.LibraryPackage,
			Tested:         len(runs),
		}
		for _, r := range runs {
			s.TotalRuns++
			switch r.Status.State {
			case StateSuccess:
				s.Successes++
				is.LastCompatible = r.Input.LibraryVersion
			case StateFailure:
				s.Failures++
				is.BrokenAt = r.Input.LibraryVersion
			}
		}
		s.Results = append(s.Results, is)
	}

	return s
}
