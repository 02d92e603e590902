// Package operations runs the long-running tasks of zentaocli on background
// goroutines and streams their progress to the presentation layer.
//
// Core components:
//
// Runner: starts one worker per Kind. A second Start for a busy kind fails
// with ErrWorkerBusy. Every worker ends with exactly one Completion event,
// including on panic or cancellation.
//
// Reporter: the outbound channel of a worker. Log records written through
// Reporter.Logger go to the process logger and, at Info level and above, to
// the event channel as LogEntry events.
//
// Pipeline: the export state machine
//
//	INIT → BROWSER_READY → LOGGED_IN → ENTITY_RESOLVED →
//	EXPORTING(requirements) → EXPORTING(unclosed_defects) →
//	EXPORTING(test_cases) → DONE
//
// with FAILED reachable from every state. The browser is released once on
// every exit path.
//
// Example usage:
//
//	runner := operations.NewRunner(logger, tracer, 64)
//	pipeline := operations.NewPipeline(cfg, browser.NewChromeOpener(logger))
//
//	job, err := runner.Start(ctx, operations.KindExport,
//		func(ctx context.Context, rep *operations.Reporter) (*operations.Outcome, error) {
//			res, err := pipeline.Run(ctx, req, rep)
//			if err != nil {
//				return nil, err
//			}
//			return &operations.Outcome{Message: "All exports finished", Result: res}, nil
//		})
//
//	for ev := range job.Events() {
//		// render LogEntry, ProgressUpdate, Completion
//	}
package operations
