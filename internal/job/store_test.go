package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelproof/design-diff-tool/internal/model"
)

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore(time.Hour)

	created := s.Create("job-1")
	assert.Equal(t, model.JobQueued, created.Status)
	assert.Equal(t, 0, created.Percent)

	got, err := s.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, model.JobQueued, got.Status)
}

func TestStore_GetUnknown(t *testing.T) {
	s := NewStore(time.Hour)
	_, err := s.Get("missing")
	require.Error(t, err)
}

func TestStore_AdvanceIsMonotonic(t *testing.T) {
	s := NewStore(time.Hour)
	s.Create("job-1")

	s.advance("job-1", 50, model.PhaseExtraction, "halfway")
	s.advance("job-1", 10, model.PhaseRendering, "late update")

	got, err := s.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Percent)
	assert.Equal(t, model.PhaseRendering, got.Phase)
	assert.Equal(t, model.JobProcessing, got.Status)
}

func TestStore_TerminalStatesAreFinal(t *testing.T) {
	s := NewStore(time.Hour)
	s.Create("job-1")

	s.fail("job-1", "render timed out")
	s.advance("job-1", 90, model.PhaseComparison, "should be ignored")
	s.complete("job-1", &model.DiffReport{}, nil)

	got, err := s.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, got.Status)
	assert.Equal(t, "render timed out", got.Error)
	assert.Nil(t, got.Result)
}

func TestStore_FailDiscardsPartialResult(t *testing.T) {
	s := NewStore(time.Hour)
	s.Create("job-1")

	s.advance("job-1", 75, model.PhaseComparison, "comparing")
	s.fail("job-1", "comparison blew up")

	got, err := s.Get("job-1")
	require.NoError(t, err)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.Responsive)
	assert.Equal(t, "comparison blew up", got.Error)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore(time.Hour)
	s.Create("job-1")

	ch, err := s.Subscribe("job-1")
	require.NoError(t, err)

	// First update is the current state.
	first := <-ch
	assert.Equal(t, model.JobQueued, first.Status)

	s.advance("job-1", 10, model.PhaseInitialization, "starting")
	update := <-ch
	assert.Equal(t, model.JobProcessing, update.Status)
	assert.Equal(t, 10, update.Percent)
	assert.Equal(t, model.PhaseInitialization, update.Phase)
}

func TestStore_SubscribeUnknown(t *testing.T) {
	s := NewStore(time.Hour)
	_, err := s.Subscribe("missing")
	require.Error(t, err)
}

func TestStore_DeleteClosesSubscribers(t *testing.T) {
	s := NewStore(time.Hour)
	s.Create("job-1")

	ch, err := s.Subscribe("job-1")
	require.NoError(t, err)
	<-ch // drain the seed update

	require.NoError(t, s.Delete("job-1"))

	_, open := <-ch
	assert.False(t, open)

	_, err = s.Get("job-1")
	require.Error(t, err)

	require.Error(t, s.Delete("job-1"))
}

func TestStore_Sweep(t *testing.T) {
	s := NewStore(20 * time.Millisecond)
	s.Create("old")
	time.Sleep(40 * time.Millisecond)
	s.Create("fresh")

	removed := s.Sweep()
	assert.Equal(t, 1, removed)

	_, err := s.Get("old")
	require.Error(t, err)
	_, err = s.Get("fresh")
	require.NoError(t, err)
}

func TestStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewStore(time.Hour)
	s.Create("job-1")

	_, err := s.Subscribe("job-1")
	require.NoError(t, err)

	// Push well past the channel buffer without ever reading; updates must
	// drop rather than deadlock.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			s.advance("job-1", i, model.PhaseExtraction, "tick")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("store blocked on a slow subscriber")
	}
}
