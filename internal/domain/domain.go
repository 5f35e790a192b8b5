// Package domain holds the data shapes shared by the Player, Ripper and
// Commander: disc metadata, the growing track list, and the state
// snapshots each machine publishes on the bus.
package domain

import "time"

// Domain constants. One PCM frame is one stereo sample pair at SAMPLE_RATE.
// Durations are expressed in PCM frames everywhere in this codebase —
// never in raw single-channel samples — so CHANNELS never enters a
// duration calculation a second time.
const (
	SampleRate = 44100
	Channels   = 2
	SampleWidth = 2 // bytes per single-channel sample (16-bit PCM)

	// NextTrackBufferThresholdSeconds is the look-ahead margin: once fewer
	// than this many seconds of the current track remain, the next track
	// is pre-buffered into the sink.
	NextTrackBufferThresholdSeconds = 30

	// TrackBoundaryToleranceFrames absorbs one sink callback quantum
	// before a frame overrun is treated as having crossed into the next
	// track.
	TrackBoundaryToleranceFrames = SampleRate / 2

	BytesPerFrame = Channels * SampleWidth
)

// Track is one song on a disc: its metadata, not its file path. File
// paths live in the Ripper's track list, kept separately because the
// list grows independently of (and slower than) DiscMeta.
type Track struct {
	Artist          string `json:"artist"`
	Title           string `json:"title"`
	DurationFrames  int64  `json:"duration"`
}

// DiscMeta is immutable once resolved for the lifetime of a disc
// session. An absent Artist means a various-artists compilation.
type DiscMeta struct {
	DiscID         string  `json:"disc_id"`
	Title          string  `json:"title"`
	Artist         string  `json:"artist,omitempty"`
	CD             int     `json:"cd"`
	TotalCDs       int     `json:"total_cds"`
	DurationFrames int64   `json:"duration"`
	Tracks         []Track `json:"tracks"`
}

// Clone returns a deep copy so Player and Ripper can each hold their own
// value without either mutating the other's.
func (d DiscMeta) Clone() DiscMeta {
	out := d
	out.Tracks = make([]Track, len(d.Tracks))
	copy(out.Tracks, d.Tracks)
	return out
}

// VariousArtists reports whether this disc has no well-defined
// album-level artist.
func (d DiscMeta) VariousArtists() bool {
	return d.Artist == ""
}

// PlayerStateTag enumerates the Player's states.
type PlayerStateTag string

const (
	PlayerInit           PlayerStateTag = "INIT"
	PlayerNoDisc         PlayerStateTag = "NO_DISC"
	PlayerUnknownDisc    PlayerStateTag = "UNKNOWN_DISC"
	PlayerStopped        PlayerStateTag = "STOPPED"
	PlayerPlaying        PlayerStateTag = "PLAYING"
	PlayerPaused         PlayerStateTag = "PAUSED"
	PlayerWaitingForData PlayerStateTag = "WAITING_FOR_DATA"
)

// PlayerState is the full exported snapshot published on the state topic.
// Frame counters are zero-valued (and meaningless) outside an active
// playback cycle — callers must gate on State before reading them.
type PlayerState struct {
	State            PlayerStateTag `json:"state"`
	TrackList        []string       `json:"track_list"`
	DiscMeta         *DiscMeta      `json:"disc_meta,omitempty"`
	CurrentTrack     int            `json:"current_track"`
	CurrentFrame     int64          `json:"current_frame"`
	TotalFrames      int64          `json:"total_frames"`
	NextTrackFrames  *int64         `json:"next_track_frames,omitempty"`
}

// RipperStateTag enumerates the Ripper's states.
type RipperStateTag string

const (
	RipperIdle      RipperStateTag = "IDLE"
	RipperKnownDisc RipperStateTag = "KNOWN_DISC"
	RipperRipping   RipperStateTag = "RIPPING"
	RipperDone      RipperStateTag = "DONE"
)

// RipperState is the full exported snapshot published on the state topic.
type RipperState struct {
	State              RipperStateTag `json:"state"`
	DiscMeta           *DiscMeta      `json:"disc_meta,omitempty"`
	CurrentTrackIndex  int            `json:"current_track_index"`
	DestinationFolder  string         `json:"destination_folder,omitempty"`
	TrackList          []string       `json:"track_list"`
}

// FramesToDuration converts a PCM frame count to wall-clock duration.
func FramesToDuration(frames int64) time.Duration {
	return time.Duration(frames) * time.Second / SampleRate
}
