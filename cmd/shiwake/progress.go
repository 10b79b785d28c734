package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"shiwake/internal/organize"

	"github.com/schollz/progressbar/v3"
)

// followRun consumes the run's progress stream, drawing a bar when asked.
func followRun(w io.Writer, run *organize.Run, showBar bool) {
	if !showBar {
		for range run.Events() {
		}
		return
	}

	bar := progressbar.NewOptions(run.Total(),
		progressbar.OptionSetDescription("organizing"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	for p := range run.Events() {
		if p.CurrentResult != nil {
			bar.Describe(filepath.Base(p.CurrentResult.FilePath))
		}
		_ = bar.Set(p.ProcessedFiles)
		if p.Finished {
			if p.Cancelled {
				bar.Describe("cancelled")
			}
			_ = bar.Finish()
		}
	}
}
