package cli

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return tick(bar, 120*time.Millisecond)
}

// startDurationProgress shows elapsed seconds of a fixed-length capture.
func startDurationProgress(enabled bool, description string, duration time.Duration) stopFunc {
	if !enabled || duration <= 0 {
		return func() {}
	}

	total := max(int64(duration/time.Second), 1)
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return tick(bar, time.Second)
}

func tick(bar *progressbar.ProgressBar, every time.Duration) stopFunc {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

// segmentProgress spins until the asset turns out to need splitting, then
// switches to a bar counting finished segments. Update may be called from
// several goroutines.
type segmentProgress struct {
	enabled     bool
	description string

	mu          sync.Mutex
	stopSpinner stopFunc
	bar         *progressbar.ProgressBar
	done        int
}

func newSegmentProgress(enabled bool, description string) *segmentProgress {
	return &segmentProgress{
		enabled:     enabled,
		description: description,
		stopSpinner: startSpinner(enabled, description),
	}
}

func (p *segmentProgress) Update(done, total int) {
	if !p.enabled {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.stopSpinner()
		p.bar = progressbar.NewOptions(
			total,
			progressbar.OptionSetDescription(p.description+" segments"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(20),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	if done > p.done {
		_ = p.bar.Add(done - p.done)
		p.done = done
	}
}

func (p *segmentProgress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopSpinner()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
