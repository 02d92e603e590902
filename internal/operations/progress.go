package operations

import (
	"fmt"
	"time"

	"zentaocli/pkg/contracts/domain"
)

// Progress checkpoints of an export run, in percent.
const (
	ProgressBrowser  = 5
	ProgressLogin    = 15
	ProgressLookup   = 30
	ProgressResolved = 40
	ProgressDone     = 100
)

// exportCheckpoints gives the progress reported before and after each
// target. Zero means nothing is reported.
var exportCheckpoints = map[domain.ExportTarget][2]int{
	domain.TargetRequirements:    {50, 70},
	domain.TargetUnclosedDefects: {80, 90},
	domain.TargetTestCases:       {95, 0},
}

// elapsedString formats a duration the way run summaries show it
func elapsedString(elapsed time.Duration) string {
	switch {
	case elapsed < time.Minute:
		return fmt.Sprintf("%.0f seconds", elapsed.Seconds())
	case elapsed < time.Hour:
		return fmt.Sprintf("%.1f minutes", elapsed.Minutes())
	default:
		return fmt.Sprintf("%.1f hours", elapsed.Hours())
	}
}
