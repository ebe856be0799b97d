package articles

import "math"

type Progress struct {
	Total         int     `json:"total"`
	Completed     int     `json:"completed"`
	Approved      int     `json:"approved"`
	CompletionPct float64 `json:"completion_pct"`
	ApprovalPct   float64 `json:"approval_pct"`
	CanApprove    bool    `json:"can_approve"`
}

// ComputeProgress derives completion and approval ratios from an article's assignments.
// Both percentages are zero when their denominator is zero.
func ComputeProgress(as []FieldAssignment) Progress {
	p := Progress{Total: len(as), CanApprove: true}
	for _, a := range as {
		if a.Completed {
			p.Completed++
			if a.Approved {
				p.Approved++
			} else {
				p.CanApprove = false
			}
		}
	}
	p.CompletionPct = percent(p.Completed, p.Total)
	p.ApprovalPct = percent(p.Approved, p.Completed)
	return p
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*10000) / 100
}
