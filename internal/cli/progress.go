package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"alsrag/internal/usecase"
)

// newProgress returns a progress callback that renders a bar with an ETA,
// created lazily once the total is known.
func newProgress(label string) usecase.ProgressFunc {
	var (
		bar       *progressbar.ProgressBar
		mu        sync.Mutex
		startTime time.Time
	)

	return func(processed, total int, _ string) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(processed)

		if processed > 0 {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			remaining := total - processed
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", label, formatDuration(eta)))
			}
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func printReport(report *usecase.Report) {
	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Pages processed:  %d/%d\n", report.Processed, report.Total)
	fmt.Printf("  Fetch failures:   %d\n", report.FetchFailures)
	if report.Skipped > 0 {
		fmt.Printf("  Skipped:          %d (cancelled)\n", report.Skipped)
	}
	fmt.Printf("  Chunks created:   %d\n", report.Chunks)
	fmt.Printf("  Chunks inserted:  %d\n", report.Inserted)
	if report.InsertFailures > 0 {
		fmt.Printf("  Insert failures:  %d\n", report.InsertFailures)
	}
	fmt.Printf("  Took:             %s\n", report.Duration.Round(time.Millisecond))

	if len(report.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}
