package engine

import "sync/atomic"

func statusRank(status string) int32 {
	switch status {
	case StatusBlock:
		return 2
	case StatusWarn:
		return 1
	}
	return 0
}

func rankStatus(rank int32) string {
	switch rank {
	case 2:
		return StatusBlock
	case 1:
		return StatusWarn
	}
	return StatusCompliant
}

// Reduce folds statuses by precedence BLOCK > WARN > COMPLIANT. The result
// does not depend on order. Unknown statuses count as COMPLIANT.
func Reduce(statuses ...string) string {
	var top int32
	for _, s := range statuses {
		if r := statusRank(s); r > top {
			top = r
		}
	}
	return rankStatus(top)
}

// raise stores rank in v if it exceeds the current value.
func raise(v *atomic.Int32, rank int32) {
	for {
		cur := v.Load()
		if rank <= cur || v.CompareAndSwap(cur, rank) {
			return
		}
	}
}
