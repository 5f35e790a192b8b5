// Package audiosink is the Audio Sink of spec.md §4.1: it owns the
// output device and a FIFO PCM byte buffer, and raises frames-played and
// playback-stopped callbacks back to whoever owns it (the Player).
// Grounded on the teacher's pkg/audioplayer.Player, which already runs a
// blocking producer/consumer pair around a ring buffer and a PortAudio
// stream — the blocking portaudio.PaStream.Write call here plays the
// part of the original's pull-mode callback that "blocks inside the
// frame-producing function", which is exactly the hook spec.md requires
// for pause to take effect within one callback quantum.
package audiosink

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/pisarenko-net/cdpsa/internal/domain"
	"github.com/pisarenko-net/cdpsa/internal/pcm"
	"github.com/pisarenko-net/cdpsa/pkg/ringbuffer"
)

// Config mirrors the teacher's audioplayer.Config: device index and
// PortAudio buffer granularity are the only knobs this appliance's fixed
// 44.1kHz/stereo/16-bit format needs.
type Config struct {
	DeviceIndex     int
	FramesPerBuffer int
}

// DefaultConfig matches the teacher's defaults.
func DefaultConfig() Config {
	return Config{DeviceIndex: 1, FramesPerBuffer: 512}
}

// Sink is a single playback session's Audio Sink. Per spec.md's
// ownership rule, a new Sink is created for every PLAYING cycle and
// torn down on stop/eject — creating a second Sink while one is alive
// is the "fatal programming error" spec.md calls out. The Player guards
// against that (it refuses to create a Sink over a live one); a Sink
// itself only detects being started twice, by Start returning an error
// instead of silently leaking a stream.
type Sink struct {
	cfg       Config
	converter pcm.Converter

	buf *ringbuffer.RingBuffer

	stream   *portaudio.PaStream
	started  atomic.Bool
	released atomic.Bool

	gateOpen atomic.Bool // resume()'d == true, pause()'d == false
	gateCond *sync.Cond
	gateMu   sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup

	// onFramesPlayed and onPlaybackStopped are invoked from a dedicated
	// single-goroutine executor, never from the device goroutine itself,
	// so the Player's state mutation never races the device thread —
	// see spec.md §9 "Cyclic callback risk".
	onFramesPlayed    func(frames int)
	onPlaybackStopped func()

	executorCh chan func()
}

// New creates a Sink around the given converter (the out-of-scope
// "external converter" spec.md §4.1 delegates buffer_track's decode
// step to) and wires the two callbacks the Player observes.
func New(cfg Config, converter pcm.Converter, onFramesPlayed func(int), onPlaybackStopped func()) *Sink {
	s := &Sink{
		cfg:               cfg,
		converter:         converter,
		buf:               ringbuffer.New(256 * 1024),
		stopCh:            make(chan struct{}),
		onFramesPlayed:    onFramesPlayed,
		onPlaybackStopped: onPlaybackStopped,
		executorCh:        make(chan func(), 64),
	}
	s.gateCond = sync.NewCond(&s.gateMu)
	return s
}

// Start opens the output device and spawns the device thread and the
// callback executor. Calling Start twice on the same Sink is the fatal
// programming error spec.md §4.2 describes for start_playback.
func (s *Sink) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("audiosink: Start called on an already-started sink")
	}

	outParams := portaudio.PaStreamParameters{
		DeviceIndex:  s.cfg.DeviceIndex,
		ChannelCount: domain.Channels,
		SampleFormat: portaudio.SampleFmtInt16,
	}
	stream, err := portaudio.NewStream(outParams, float64(domain.SampleRate))
	if err != nil {
		return fmt.Errorf("audiosink: new stream: %w", err)
	}
	if err := stream.Open(s.cfg.FramesPerBuffer); err != nil {
		return fmt.Errorf("audiosink: open stream: %w", err)
	}
	if err := stream.StartStream(); err != nil {
		return fmt.Errorf("audiosink: start stream: %w", err)
	}
	s.stream = stream

	s.wg.Add(2)
	go s.executorLoop()
	go s.deviceLoop()

	return nil
}

// BufferTrack decodes path to canonical PCM via the converter and
// appends it to the FIFO buffer, returning the number of frames
// appended. Gapless playback falls out of this being a plain append:
// there is no gap marker between tracks in the buffer.
func (s *Sink) BufferTrack(path string) (int64, error) {
	pcmData, frames, err := s.converter.Convert(path)
	if err != nil {
		return 0, err
	}
	if len(pcmData) == 0 {
		// Zero-frame append: the Player treats this track as immediately
		// exhausted, per spec.md §4.1 failure semantics.
		return 0, nil
	}
	if _, err := s.buf.Write(pcmData); err != nil {
		return 0, err
	}
	return frames, nil
}

// Pause closes the play gate; the device thread observes this within
// one callback quantum.
func (s *Sink) Pause() {
	s.gateMu.Lock()
	s.gateOpen.Store(false)
	s.gateMu.Unlock()
}

// Resume opens the play gate and wakes the device thread if it is
// blocked waiting on it.
func (s *Sink) Resume() {
	s.gateMu.Lock()
	s.gateOpen.Store(true)
	s.gateCond.Broadcast()
	s.gateMu.Unlock()
}

// Release signals the device thread to exit and returns immediately — it
// does not join the device/executor goroutines itself. The Player calls
// Release from inside a state-machine transition while holding its own
// lock, and the executor goroutine's pending callback (onFramesPlayed or
// onPlaybackStopped) needs that same lock to finish: waiting here for the
// goroutines to exit before returning would deadlock the two against each
// other. The actual teardown runs on its own goroutine instead; the Sink
// is unusable as soon as Release is called, whether or not teardown has
// finished yet.
func (s *Sink) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)
	s.gateMu.Lock()
	s.gateCond.Broadcast() // unblock a paused device thread so it can see stopCh
	s.gateMu.Unlock()

	go func() {
		s.wg.Wait()
		if s.stream != nil {
			if err := s.stream.StopStream(); err != nil {
				slog.Warn("audiosink: stop stream", "error", err)
			}
			if err := s.stream.Close(); err != nil {
				slog.Warn("audiosink: close stream", "error", err)
			}
		}
	}()
}

// waitForGateOpen blocks until Resume has been called or Release fires,
// returning false in the latter case.
func (s *Sink) waitForGateOpen() bool {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	for !s.gateOpen.Load() {
		select {
		case <-s.stopCh:
			return false
		default:
		}
		s.gateCond.Wait()
	}
	select {
	case <-s.stopCh:
		return false
	default:
		return true
	}
}

// deviceLoop is the pull-mode callback of spec.md §4.1's Internals: it
// waits on the gate, pops bytes from the buffer, and either writes them
// to the device or signals playback-stopped on an empty buffer.
func (s *Sink) deviceLoop() {
	defer s.wg.Done()

	frameBytes := s.cfg.FramesPerBuffer * domain.BytesPerFrame
	chunk := make([]byte, frameBytes)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if !s.waitForGateOpen() {
			return
		}

		n, err := s.buf.Read(chunk)
		if err != nil || n == 0 {
			s.postCallback(func() { s.onPlaybackStopped() })
			return
		}

		frames := n / domain.BytesPerFrame
		if frames == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		aligned := frames * domain.BytesPerFrame

		if err := s.stream.Write(frames, chunk[:aligned]); err != nil {
			slog.Error("audiosink: stream write failed", "error", err)
			s.postCallback(func() { s.onPlaybackStopped() })
			return
		}

		framesDelivered := frames
		s.postCallback(func() { s.onFramesPlayed(framesDelivered) })
	}
}

// postCallback hands fn to the single-threaded executor goroutine. It is
// how frames-played/playback-stopped ever run off the device thread.
func (s *Sink) postCallback(fn func()) {
	select {
	case s.executorCh <- fn:
	case <-s.stopCh:
	}
}

func (s *Sink) executorLoop() {
	defer s.wg.Done()
	for {
		select {
		case fn := <-s.executorCh:
			fn()
		case <-s.stopCh:
			// Drain anything already queued before exiting so a final
			// playback-stopped callback is not lost on release.
			for {
				select {
				case fn := <-s.executorCh:
					fn()
				default:
					return
				}
			}
		}
	}
}
