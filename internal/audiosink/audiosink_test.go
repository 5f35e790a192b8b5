package audiosink

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverter struct {
	pcmData []byte
	frames  int64
	err     error
}

func (f *fakeConverter) Convert(path string) ([]byte, int64, error) {
	return f.pcmData, f.frames, f.err
}

func newTestSink(conv *fakeConverter) *Sink {
	return New(DefaultConfig(), conv, func(int) {}, func() {})
}

func TestBufferTrackAppendsConvertedPCM(t *testing.T) {
	conv := &fakeConverter{pcmData: make([]byte, 4*domainBytesPerFrame()), frames: 4}
	s := newTestSink(conv)

	frames, err := s.BufferTrack("track.flac")

	require.NoError(t, err)
	assert.Equal(t, int64(4), frames)
	assert.Equal(t, uint64(len(conv.pcmData)), s.buf.AvailableRead())
}

func TestBufferTrackZeroFramesOnEmptyDecode(t *testing.T) {
	conv := &fakeConverter{pcmData: nil, frames: 0}
	s := newTestSink(conv)

	frames, err := s.BufferTrack("unreadable.flac")

	require.NoError(t, err)
	assert.Equal(t, int64(0), frames)
	assert.Equal(t, uint64(0), s.buf.AvailableRead())
}

func TestBufferTrackPropagatesConverterError(t *testing.T) {
	conv := &fakeConverter{err: errors.New("boom")}
	s := newTestSink(conv)

	_, err := s.BufferTrack("track.flac")

	assert.Error(t, err)
}

func TestWaitForGateOpenReturnsImmediatelyWhenAlreadyOpen(t *testing.T) {
	s := newTestSink(&fakeConverter{})
	s.Resume()

	done := make(chan bool, 1)
	go func() { done <- s.waitForGateOpen() }()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waitForGateOpen did not return")
	}
}

func TestWaitForGateOpenUnblocksOnRelease(t *testing.T) {
	s := newTestSink(&fakeConverter{})

	done := make(chan bool, 1)
	go func() { done <- s.waitForGateOpen() }()

	time.Sleep(10 * time.Millisecond) // let the goroutine start waiting on the gate
	close(s.stopCh)
	s.gateMu.Lock()
	s.gateCond.Broadcast()
	s.gateMu.Unlock()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waitForGateOpen did not unblock on release")
	}
}

func TestReleaseDoesNotBlockOnOutstandingGoroutines(t *testing.T) {
	s := newTestSink(&fakeConverter{})

	// Simulate a device/executor goroutine still in flight, the way the
	// real one is whenever a frames-played callback is running when the
	// Player calls Release from inside its own locked transition.
	s.wg.Add(1)
	teardownStarted := make(chan struct{})
	go func() {
		<-s.stopCh
		close(teardownStarted)
		time.Sleep(100 * time.Millisecond)
		s.wg.Done()
	}()

	released := make(chan struct{})
	go func() {
		s.Release()
		close(released)
	}()

	select {
	case <-released:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("Release blocked on an outstanding goroutine instead of returning immediately")
	}

	<-teardownStarted
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := newTestSink(&fakeConverter{})

	assert.NotPanics(t, func() {
		s.Release()
		s.Release()
	})
}

func domainBytesPerFrame() int {
	return 4 // 16-bit stereo: 2 bytes/sample * 2 channels
}
