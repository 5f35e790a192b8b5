// Package player implements the Player state machine of spec.md §4.2,
// grounded line-for-line on the original implementation's
// hifi_appliance/state/player.py (a python-transitions Machine). No
// state-machine library appears anywhere in this module's dependency
// corpus, so the transition table below is hand-rolled — an explicit
// slice of (from-states, trigger, guard, effect, to-state) entries,
// exactly the shape spec.md §9's design notes prescribe, evaluated in
// declaration order with the first matching, guard-satisfying entry
// winning and everything else silently rejected.
package player

import (
	"log/slog"
	"sync"

	"github.com/pisarenko-net/cdpsa/internal/domain"
)

// Sink is the playback device the Player drives: buffer tracks into it,
// gate it open and closed, tear it down at the end of a cycle.
// *audiosink.Sink satisfies this in production; tests supply a fake so
// the state machine can be exercised without a real output device.
type Sink interface {
	Start() error
	BufferTrack(path string) (int64, error)
	Pause()
	Resume()
	Release()
}

// SinkFactory creates a fresh Audio Sink for one playback cycle. Player
// calls this exactly once per start_playback; calling it again before
// the previous Sink is released would be the "fatal programming error"
// spec.md describes, so Player refuses to overwrite a live sink.
type SinkFactory func(onFramesPlayed func(int), onPlaybackStopped func()) (Sink, error)

const (
	triggerInit         = "init"
	triggerStart        = "start"
	triggerUnknownDisc  = "unknown_disc"
	triggerPlay         = "play"
	triggerPlaying      = "playing"
	triggerStop         = "stop"
	triggerPause        = "pause"
	triggerNext         = "next"
	triggerPrev         = "prev"
	triggerFinish       = "finish"
	triggerRipperUpdate = "ripper_update"
	triggerEject        = "eject"
)

// startPayload carries §4.2's start(track_list, disc_meta) arguments.
type startPayload struct {
	trackList []string
	discMeta  domain.DiscMeta
}

type transition struct {
	from   []domain.PlayerStateTag // nil means "*" (any state)
	to     domain.PlayerStateTag   // "" means "=" (stay in the from-state)
	trigger string
	guard  func(p *Player, payload any) bool
	effect func(p *Player, payload any)
}

// Player is the gapless-playback engine of spec.md §4.2. All exported
// methods serialize on mu, standing in for the single-threaded event
// loop spec.md §5 describes; bufferingMu is the separate, explicitly
// non-reentrant try-lock spec.md §4.2's look-ahead step names.
type Player struct {
	mu sync.Mutex

	state        domain.PlayerStateTag
	trackList    []string
	discMeta     domain.DiscMeta
	hasDiscMeta  bool
	currentTrack int
	currentFrame int64
	totalFrames  int64

	nextTrackFrames    int64
	hasNextTrackFrames bool

	bufferingMu sync.Mutex
	buffering   bool // never set or read; bufferingMu.TryLock is the try-lock

	newSink SinkFactory
	sink    Sink

	afterStateChange func(domain.PlayerState)

	transitions []transition
}

// New creates a Player in state INIT. newSink is called once per
// start_playback to obtain a fresh Audio Sink.
func New(newSink SinkFactory, afterStateChange func(domain.PlayerState)) *Player {
	p := &Player{
		state:            domain.PlayerInit,
		currentTrack:     1,
		newSink:          newSink,
		afterStateChange: afterStateChange,
	}
	p.transitions = buildTransitionTable()
	return p
}

// State returns the full exported snapshot, matching the original's
// get_full_state().
func (p *Player) State() domain.PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Player) snapshotLocked() domain.PlayerState {
	trackList := make([]string, len(p.trackList))
	copy(trackList, p.trackList)

	s := domain.PlayerState{
		State:        p.state,
		TrackList:    trackList,
		CurrentTrack: p.currentTrack,
		CurrentFrame: p.currentFrame,
		TotalFrames:  p.totalFrames,
	}
	if p.hasDiscMeta {
		meta := p.discMeta.Clone()
		s.DiscMeta = &meta
	}
	if p.hasNextTrackFrames {
		v := p.nextTrackFrames
		s.NextTrackFrames = &v
	}
	return s
}

// --- External triggers ---

func (p *Player) Init()        { p.fire(triggerInit, nil) }
func (p *Player) UnknownDisc() { p.fire(triggerUnknownDisc, nil) }

func (p *Player) Start(trackList []string, meta domain.DiscMeta) {
	p.fire(triggerStart, startPayload{trackList: trackList, discMeta: meta})
}

func (p *Player) Play()  { p.fire(triggerPlay, nil) }
func (p *Player) Stop()  { p.fire(triggerStop, nil) }
func (p *Player) Pause() { p.fire(triggerPause, nil) }
func (p *Player) Next()  { p.fire(triggerNext, nil) }
func (p *Player) Prev()  { p.fire(triggerPrev, nil) }
func (p *Player) Finish() { p.fire(triggerFinish, nil) }
func (p *Player) Eject() { p.fire(triggerEject, nil) }

// RipperUpdate replaces the track list, mirroring update_track_list.
func (p *Player) RipperUpdate(trackList []string) {
	p.fire(triggerRipperUpdate, append([]string(nil), trackList...))
}

// Playing reports that frames PCM frames have been delivered to the
// device; it is the "frames-played" callback's entry point into the
// state machine, called via Sink's single-threaded executor.
func (p *Player) Playing(frames int) {
	p.fire(triggerPlaying, frames)
}

// fire evaluates the transition table against the current state, firing
// the first matching guard-satisfying entry. Unmatched triggers are
// silently rejected and logged at debug level — spec.md §4.2's stated
// contract, not an oversight.
func (p *Player) fire(trigger string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.transitions {
		if t.trigger != trigger {
			continue
		}
		if t.from != nil && !containsState(t.from, p.state) {
			continue
		}
		if t.guard != nil && !t.guard(p, payload) {
			continue
		}

		if t.effect != nil {
			t.effect(p, payload)
		}
		if t.to != "" {
			p.state = t.to
		}
		if p.afterStateChange != nil {
			p.afterStateChange(p.snapshotLocked())
		}
		return
	}

	slog.Debug("player: trigger rejected in current state", "trigger", trigger, "state", p.state)
}

func containsState(states []domain.PlayerStateTag, s domain.PlayerStateTag) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}

// --- Guards ---

func trackAvailableN(p *Player, n int) bool {
	return n >= 1 && n <= len(p.trackList)
}

func guardNotFlacAvailable(p *Player, _ any) bool { return !trackAvailableN(p, p.currentTrack) }
func guardFlacAvailable(p *Player, _ any) bool    { return trackAvailableN(p, p.currentTrack) }
func guardHasNextTrack(p *Player, _ any) bool {
	return p.hasDiscMeta && p.currentTrack < len(p.discMeta.Tracks)
}
func guardHasPrevTrack(p *Player, _ any) bool      { return p.currentTrack > 1 }
func guardNextFlacAvailable(p *Player, _ any) bool { return trackAvailableN(p, p.currentTrack+1) }
func guardPrevFlacAvailable(p *Player, _ any) bool { return trackAvailableN(p, p.currentTrack-1) }

// --- Effects ---

func effectSetDiscMeta(p *Player, payload any) {
	sp := payload.(startPayload)
	p.trackList = append([]string(nil), sp.trackList...)
	p.discMeta = sp.discMeta.Clone()
	p.hasDiscMeta = true
}

// effectStartPlayback mirrors start_playback: create a fresh Sink, reset
// the cursor, buffer the current track, and open the pause gate.
func effectStartPlayback(p *Player, _ any) {
	if p.sink != nil {
		slog.Error("player: start_playback called with an existing sink — programming error")
		return
	}

	sink, err := p.newSink(
		func(frames int) { p.Playing(frames) },
		func() { p.Finish() },
	)
	if err != nil {
		slog.Error("player: failed to create audio sink", "error", err)
		return
	}
	if err := sink.Start(); err != nil {
		slog.Error("player: failed to start audio sink", "error", err)
		return
	}
	p.sink = sink

	p.currentFrame = 0
	p.hasNextTrackFrames = false

	frames, err := sink.BufferTrack(p.trackList[p.currentTrack-1])
	if err != nil {
		slog.Error("player: buffer_track failed", "error", err, "track", p.currentTrack)
	}
	p.totalFrames = frames

	sink.Resume()
}

func effectStopPlayback(p *Player, _ any) {
	releaseSink(p)
	effectClearTrackProgress(p, nil)
}

// releaseSink tears down the current sink, if any. Every transition that
// leaves PLAYING, except PLAYING -> PAUSED (which keeps the sink so play
// can resume it), must call this — STOPPED and WAITING_FOR_DATA carry no
// Audio Sink (spec invariant), and effectStartPlayback refuses to run a
// second time over a live one.
func releaseSink(p *Player) {
	if p.sink != nil {
		p.sink.Release()
		p.sink = nil
	}
}

// effectFinishToStopped handles the natural end-of-disc underrun: the
// device loop ran dry, called onPlaybackStopped, and there is no next
// track to advance into.
func effectFinishToStopped(p *Player, payload any) {
	releaseSink(p)
	effectClearTrackProgress(p, payload)
}

// effectFinishToWaiting handles the natural end-of-track underrun when
// the next track has no local file yet.
func effectFinishToWaiting(p *Player, payload any) {
	releaseSink(p)
	effectClearTrackProgress(p, payload)
	effectNextTrack(p, payload)
}

func effectPausePlayback(p *Player, _ any) {
	if p.sink != nil {
		p.sink.Pause()
	}
}

func effectResumePlayback(p *Player, _ any) {
	if p.sink != nil {
		p.sink.Resume()
	}
}

func effectClearTrackProgress(p *Player, _ any) {
	p.currentFrame = 0
	p.totalFrames = 0
	p.hasNextTrackFrames = false
}

func effectClearInternalState(p *Player, _ any) {
	p.trackList = nil
	p.hasDiscMeta = false
	p.discMeta = domain.DiscMeta{}
	p.currentTrack = 1
	effectClearTrackProgress(p, nil)
}

func effectNextTrack(p *Player, _ any) { p.currentTrack++ }
func effectPrevTrack(p *Player, _ any) { p.currentTrack-- }

func effectUpdateTrackList(p *Player, payload any) {
	list, _ := payload.([]string)
	if list != nil {
		p.trackList = list
	}
}

// effectUpdatePosition is update_position: accumulate played frames,
// opportunistically pre-buffer the next track, and detect the track
// boundary crossing with the spec's half-second tolerance. The
// try-lock mirrors the original's non-reentrant buffering_lock: a
// concurrent call that cannot acquire it returns immediately, and the
// next callback converges on the same decision.
func effectUpdatePosition(p *Player, payload any) {
	frames, _ := payload.(int)
	p.currentFrame += int64(frames)

	if !p.bufferingMu.TryLock() {
		return
	}
	defer p.bufferingMu.Unlock()

	// current_track is still the pre-advance 1-based track number here;
	// used directly as the 0-based index of the *next* track. This
	// ordering is load-bearing — see SPEC_FULL.md §4's OQ2 resolution.
	nextTrackIndex := p.currentTrack
	nextTrackNumber := p.currentTrack + 1

	if shouldBufferNextTrack(p) && trackAvailableN(p, nextTrackNumber) && p.sink != nil {
		frames, err := p.sink.BufferTrack(p.trackList[nextTrackIndex])
		if err != nil {
			slog.Error("player: look-ahead buffer_track failed", "error", err)
		} else {
			p.nextTrackFrames = frames
			p.hasNextTrackFrames = true
		}
	}

	if trackBoundaryCrossed(p) {
		p.currentFrame -= p.totalFrames
		p.totalFrames = p.nextTrackFrames
		p.hasNextTrackFrames = false
		p.currentTrack++
	}
}

func shouldBufferNextTrack(p *Player) bool {
	if p.hasNextTrackFrames {
		return false
	}
	remaining := p.totalFrames - p.currentFrame
	return (remaining / domain.SampleRate) < domain.NextTrackBufferThresholdSeconds
}

func trackBoundaryCrossed(p *Player) bool {
	return (p.currentFrame - p.totalFrames) > domain.TrackBoundaryToleranceFrames
}

// buildTransitionTable mirrors create_player()'s add_transition calls in
// hifi_appliance/state/player.py, in the same order.
func buildTransitionTable() []transition {
	stopped := []domain.PlayerStateTag{domain.PlayerStopped}
	waiting := []domain.PlayerStateTag{domain.PlayerWaitingForData}
	stoppedWaiting := []domain.PlayerStateTag{domain.PlayerStopped, domain.PlayerWaitingForData}
	playing := []domain.PlayerStateTag{domain.PlayerPlaying}
	paused := []domain.PlayerStateTag{domain.PlayerPaused}
	playingPausedWaiting := []domain.PlayerStateTag{domain.PlayerPlaying, domain.PlayerPaused, domain.PlayerWaitingForData}
	anyDiscState := []domain.PlayerStateTag{domain.PlayerPlaying, domain.PlayerStopped, domain.PlayerPaused, domain.PlayerWaitingForData}

	return []transition{
		{from: []domain.PlayerStateTag{domain.PlayerInit}, to: domain.PlayerNoDisc, trigger: triggerInit},
		{from: []domain.PlayerStateTag{domain.PlayerNoDisc}, to: domain.PlayerUnknownDisc, trigger: triggerUnknownDisc},
		{from: []domain.PlayerStateTag{domain.PlayerNoDisc}, to: domain.PlayerStopped, trigger: triggerStart, effect: effectSetDiscMeta},

		{from: stopped, to: domain.PlayerWaitingForData, trigger: triggerPlay, guard: guardNotFlacAvailable},
		{from: stoppedWaiting, to: domain.PlayerPlaying, trigger: triggerPlay, guard: guardFlacAvailable, effect: effectStartPlayback},
		{from: paused, to: domain.PlayerPlaying, trigger: triggerPlay, effect: effectResumePlayback},
		{from: playing, to: domain.PlayerPlaying, trigger: triggerPlaying, effect: effectUpdatePosition},
		{from: playingPausedWaiting, to: domain.PlayerStopped, trigger: triggerStop, effect: effectStopPlayback},
		{from: playing, to: domain.PlayerPaused, trigger: triggerPause, effect: effectPausePlayback},

		{from: playing, to: domain.PlayerStopped, trigger: triggerFinish,
			guard:  func(p *Player, _ any) bool { return !guardHasNextTrack(p, nil) },
			effect: effectFinishToStopped},
		{from: playing, to: domain.PlayerWaitingForData, trigger: triggerFinish,
			guard:  func(p *Player, _ any) bool { return guardHasNextTrack(p, nil) && !guardNextFlacAvailable(p, nil) },
			effect: effectFinishToWaiting},

		{from: playing, to: domain.PlayerPlaying, trigger: triggerNext,
			guard: func(p *Player, _ any) bool { return guardHasNextTrack(p, nil) && guardNextFlacAvailable(p, nil) },
			effect: func(p *Player, payload any) {
				effectStopPlayback(p, payload)
				effectNextTrack(p, payload)
				effectStartPlayback(p, payload)
			}},
		{from: playing, to: domain.PlayerPlaying, trigger: triggerPrev,
			guard: guardHasPrevTrack,
			effect: func(p *Player, payload any) {
				effectStopPlayback(p, payload)
				effectPrevTrack(p, payload)
				effectStartPlayback(p, payload)
			}},

		{from: stopped, to: domain.PlayerStopped, trigger: triggerNext, guard: guardHasNextTrack, effect: effectNextTrack},
		{from: stopped, to: domain.PlayerStopped, trigger: triggerPrev, guard: guardHasPrevTrack, effect: effectPrevTrack},

		{from: paused, to: domain.PlayerStopped, trigger: triggerNext,
			guard: guardHasNextTrack,
			effect: func(p *Player, payload any) {
				effectNextTrack(p, payload)
				effectStopPlayback(p, payload)
			}},
		{from: paused, to: domain.PlayerStopped, trigger: triggerPrev,
			guard: guardHasPrevTrack,
			effect: func(p *Player, payload any) {
				effectPrevTrack(p, payload)
				effectStopPlayback(p, payload)
			}},

		{from: waiting, to: domain.PlayerPlaying, trigger: triggerNext,
			guard: func(p *Player, _ any) bool { return guardHasNextTrack(p, nil) && guardNextFlacAvailable(p, nil) },
			effect: func(p *Player, payload any) {
				effectNextTrack(p, payload)
				effectStartPlayback(p, payload)
			}},
		{from: waiting, to: domain.PlayerPlaying, trigger: triggerPrev,
			guard: func(p *Player, _ any) bool { return guardHasPrevTrack(p, nil) && guardPrevFlacAvailable(p, nil) },
			effect: func(p *Player, payload any) {
				effectPrevTrack(p, payload)
				effectStartPlayback(p, payload)
			}},
		{from: playing, to: domain.PlayerWaitingForData, trigger: triggerNext,
			guard: func(p *Player, _ any) bool { return guardHasNextTrack(p, nil) && !guardNextFlacAvailable(p, nil) },
			effect: func(p *Player, payload any) {
				effectStopPlayback(p, payload)
				effectNextTrack(p, payload)
			}},
		{from: waiting, to: domain.PlayerWaitingForData, trigger: triggerNext,
			guard:  func(p *Player, _ any) bool { return guardHasNextTrack(p, nil) && !guardNextFlacAvailable(p, nil) },
			effect: effectNextTrack},
		{from: waiting, to: domain.PlayerWaitingForData, trigger: triggerPrev,
			guard:  func(p *Player, _ any) bool { return guardHasPrevTrack(p, nil) && !guardPrevFlacAvailable(p, nil) },
			effect: effectPrevTrack},

		{from: anyDiscState, to: "", trigger: triggerRipperUpdate, effect: effectUpdateTrackList},

		{from: nil /* "*" */, to: domain.PlayerNoDisc, trigger: triggerEject,
			effect: func(p *Player, payload any) {
				effectStopPlayback(p, payload)
				effectClearInternalState(p, payload)
			}},
	}
}
