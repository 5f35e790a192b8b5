package player

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pisarenko-net/cdpsa/internal/domain"
)

// fakeSink is a test double for Sink: no real output device, just a
// record of what the Player asked it to do.
type fakeSink struct {
	mu           sync.Mutex
	started      bool
	released     bool
	paused       bool
	bufferCalls  []string
	bufferFrames map[string]int64
}

func newFakeSink(bufferFrames map[string]int64) *fakeSink {
	return &fakeSink{bufferFrames: bufferFrames}
}

func (s *fakeSink) Start() error { s.started = true; return nil }

func (s *fakeSink) BufferTrack(path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufferCalls = append(s.bufferCalls, path)
	return s.bufferFrames[path], nil
}

func (s *fakeSink) Pause()    { s.paused = true }
func (s *fakeSink) Resume()   { s.paused = false }
func (s *fakeSink) Release()  { s.released = true }

// fakeSinkFactory records every sink it creates so tests can inspect each
// playback cycle's own sink — Player creates a fresh one per cycle.
type fakeSinkFactory struct {
	bufferFrames map[string]int64
	sinks        []*fakeSink
}

func (f *fakeSinkFactory) new(func(int), func()) (Sink, error) {
	s := newFakeSink(f.bufferFrames)
	f.sinks = append(f.sinks, s)
	return s, nil
}

func noopSinkFactory(func(int), func()) (Sink, error) {
	return nil, nil
}

func testMeta() domain.DiscMeta {
	return domain.DiscMeta{
		DiscID: "abc123",
		Title:  "Test Album",
		Artist: "Test Artist",
		Tracks: []domain.Track{
			{Artist: "Test Artist", Title: "One", DurationFrames: 1000},
			{Artist: "Test Artist", Title: "Two", DurationFrames: 2000},
		},
	}
}

func TestPlayerInitTransitionsToNoDisc(t *testing.T) {
	p := New(noopSinkFactory, nil)
	p.Init()
	assert.Equal(t, domain.PlayerNoDisc, p.State().State)
}

func TestPlayerUnknownDiscFromNoDisc(t *testing.T) {
	p := New(noopSinkFactory, nil)
	p.Init()
	p.UnknownDisc()
	assert.Equal(t, domain.PlayerUnknownDisc, p.State().State)
}

func TestPlayerStartEntersStoppedWithTrackList(t *testing.T) {
	p := New(noopSinkFactory, nil)
	p.Init()
	p.Start([]string{"a.flac", "b.flac"}, testMeta())

	state := p.State()
	assert.Equal(t, domain.PlayerStopped, state.State)
	assert.Equal(t, []string{"a.flac", "b.flac"}, state.TrackList)
	require.NotNil(t, state.DiscMeta)
	assert.Equal(t, "Test Album", state.DiscMeta.Title)
}

func TestPlayerNextInStoppedAdvancesCursorWithoutPlaying(t *testing.T) {
	p := New(noopSinkFactory, nil)
	p.Init()
	p.Start([]string{"a.flac", "b.flac"}, testMeta())

	p.Next()

	state := p.State()
	assert.Equal(t, domain.PlayerStopped, state.State)
	assert.Equal(t, 2, state.CurrentTrack)
}

func TestPlayerNextRejectedPastLastTrack(t *testing.T) {
	p := New(noopSinkFactory, nil)
	p.Init()
	p.Start([]string{"a.flac", "b.flac"}, testMeta())
	p.Next()

	p.Next() // no track 3; silently rejected

	assert.Equal(t, 2, p.State().CurrentTrack)
}

func TestPlayerPrevRejectedAtFirstTrack(t *testing.T) {
	p := New(noopSinkFactory, nil)
	p.Init()
	p.Start([]string{"a.flac", "b.flac"}, testMeta())

	p.Prev()

	assert.Equal(t, 1, p.State().CurrentTrack)
}

func TestPlayerPlayWithoutLocalFileWaitsForData(t *testing.T) {
	p := New(noopSinkFactory, nil)
	p.Init()
	// track list is empty, so no local FLAC is available yet for track 1
	p.Start(nil, testMeta())

	p.Play()

	assert.Equal(t, domain.PlayerWaitingForData, p.State().State)
}

func TestPlayerRipperUpdateMergesTrackList(t *testing.T) {
	p := New(noopSinkFactory, nil)
	p.Init()
	p.Start(nil, testMeta())

	p.RipperUpdate([]string{"a.flac"})

	assert.Equal(t, []string{"a.flac"}, p.State().TrackList)
}

func TestPlayerEjectReturnsToNoDiscFromAnyState(t *testing.T) {
	p := New(noopSinkFactory, nil)
	p.Init()
	p.Start([]string{"a.flac", "b.flac"}, testMeta())

	p.Eject()

	state := p.State()
	assert.Equal(t, domain.PlayerNoDisc, state.State)
	assert.Nil(t, state.DiscMeta)
	assert.Equal(t, 1, state.CurrentTrack)
}

func TestPlayerStateChangeCallbackFires(t *testing.T) {
	var seen []domain.PlayerStateTag
	p := New(noopSinkFactory, func(s domain.PlayerState) {
		seen = append(seen, s.State)
	})
	p.Init()
	p.UnknownDisc()

	assert.Equal(t, []domain.PlayerStateTag{domain.PlayerNoDisc, domain.PlayerUnknownDisc}, seen)
}

// --- PLAYING / sink lifecycle (spec scenarios S1, S4, S5) ---

func TestPlayerPlayEntersPlayingAndBuffersFirstTrack(t *testing.T) {
	factory := &fakeSinkFactory{bufferFrames: map[string]int64{"a.flac": 1000}}
	p := New(factory.new, nil)
	p.Init()
	p.Start([]string{"a.flac", "b.flac"}, testMeta())

	p.Play()

	state := p.State()
	assert.Equal(t, domain.PlayerPlaying, state.State)
	assert.Equal(t, int64(1000), state.TotalFrames)
	require.Len(t, factory.sinks, 1)
	assert.True(t, factory.sinks[0].started)
	assert.Equal(t, []string{"a.flac"}, factory.sinks[0].bufferCalls)
}

func TestPlayerUpdatePositionBuffersLookaheadAndCrossesBoundary(t *testing.T) {
	factory := &fakeSinkFactory{bufferFrames: map[string]int64{"a.flac": 100, "b.flac": 50}}
	p := New(factory.new, nil)
	p.Init()
	p.Start([]string{"a.flac", "b.flac"}, testMeta())
	p.Play()
	sink := factory.sinks[0]

	// totalFrames (100) is tiny next to the 30s look-ahead threshold, so
	// the very first frames-played callback already triggers pre-buffering
	// of the next track.
	p.Playing(40)

	state := p.State()
	assert.Equal(t, []string{"a.flac", "b.flac"}, sink.bufferCalls)
	require.NotNil(t, state.NextTrackFrames)
	assert.Equal(t, int64(50), *state.NextTrackFrames)
	assert.Equal(t, domain.PlayerPlaying, state.State)
	assert.Equal(t, 1, state.CurrentTrack)

	// Push current_frame past total_frames by more than the boundary
	// tolerance (half a second of frames) to cross into track two.
	p.Playing(22200 - 40)

	state = p.State()
	assert.Equal(t, domain.PlayerPlaying, state.State)
	assert.Equal(t, 2, state.CurrentTrack)
	assert.Equal(t, int64(50), state.TotalFrames)
	assert.Nil(t, state.NextTrackFrames)
	assert.Len(t, sink.bufferCalls, 2) // no redundant re-buffer on the same lookahead
}

func TestPlayerFinishWithNoNextTrackReleasesSinkAndStops(t *testing.T) {
	factory := &fakeSinkFactory{bufferFrames: map[string]int64{"a.flac": 100}}
	p := New(factory.new, nil)
	p.Init()
	p.Start([]string{"a.flac"}, domain.DiscMeta{Tracks: []domain.Track{{DurationFrames: 100}}})
	p.Play()
	sink := factory.sinks[0]

	p.Finish()

	state := p.State()
	assert.Equal(t, domain.PlayerStopped, state.State)
	assert.Equal(t, int64(0), state.TotalFrames)
	assert.True(t, sink.released)

	// Regression: once the sink is released, a later Play must be able to
	// create a fresh one rather than tripping effectStartPlayback's
	// already-started guard and getting stuck in PLAYING with no sink.
	p.Play()

	state = p.State()
	assert.Equal(t, domain.PlayerPlaying, state.State)
	require.Len(t, factory.sinks, 2)
	assert.True(t, factory.sinks[1].started)
}

func TestPlayerFinishAdvancesToWaitingWhenNextTrackHasNoLocalFile(t *testing.T) {
	factory := &fakeSinkFactory{bufferFrames: map[string]int64{"a.flac": 100}}
	p := New(factory.new, nil)
	p.Init()
	p.Start([]string{"a.flac"}, testMeta()) // testMeta names 2 tracks; only track 1 has a ripped file
	p.Play()
	sink := factory.sinks[0]

	p.Finish()

	state := p.State()
	assert.Equal(t, domain.PlayerWaitingForData, state.State)
	assert.Equal(t, 2, state.CurrentTrack)
	assert.True(t, sink.released)
}

func TestPlayerPauseAndResumeGateTheSink(t *testing.T) {
	factory := &fakeSinkFactory{bufferFrames: map[string]int64{"a.flac": 1000}}
	p := New(factory.new, nil)
	p.Init()
	p.Start([]string{"a.flac", "b.flac"}, testMeta())
	p.Play()
	sink := factory.sinks[0]

	p.Pause()
	assert.Equal(t, domain.PlayerPaused, p.State().State)
	assert.True(t, sink.paused)

	p.Play()
	assert.Equal(t, domain.PlayerPlaying, p.State().State)
	assert.False(t, sink.paused)
	assert.False(t, sink.released) // resuming reuses the same sink, no new one created
	assert.Len(t, factory.sinks, 1)
}

func TestPlayerStopReleasesSink(t *testing.T) {
	factory := &fakeSinkFactory{bufferFrames: map[string]int64{"a.flac": 1000}}
	p := New(factory.new, nil)
	p.Init()
	p.Start([]string{"a.flac", "b.flac"}, testMeta())
	p.Play()
	sink := factory.sinks[0]

	p.Stop()

	assert.Equal(t, domain.PlayerStopped, p.State().State)
	assert.True(t, sink.released)
}
