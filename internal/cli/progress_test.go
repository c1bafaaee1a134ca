package cli

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartSpinner(t *testing.T) {
	t.Parallel()

	for _, enabled := range []bool{true, false} {
		stop := startSpinner(enabled, "testing")
		require.NotNil(t, stop)
		stop()
		stop()
	}
}

func TestStartDurationProgress(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Duration{5 * time.Second, 500 * time.Millisecond, 0} {
		stop := startDurationProgress(true, "capturing", d)
		require.NotNil(t, stop)
		stop()
	}
	startDurationProgress(false, "capturing", time.Second)()
}

func TestSegmentProgressSwitchesToBar(t *testing.T) {
	t.Parallel()

	p := newSegmentProgress(true, "Transcribing")

	var wg sync.WaitGroup
	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(done int) {
			defer wg.Done()
			p.Update(done, 4)
		}(i)
	}
	wg.Wait()

	require.NotNil(t, p.bar)
	require.Equal(t, 4, p.done)
	p.Stop()
}

func TestSegmentProgressDisabledIsInert(t *testing.T) {
	t.Parallel()

	p := newSegmentProgress(false, "Transcribing")
	p.Update(1, 3)
	require.Nil(t, p.bar)
	p.Stop()
}
