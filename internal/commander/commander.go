// Package commander implements the Commander of spec.md §4.4, grounded
// on the original implementation's hifi_appliance/commander.py. It
// translates the coarse "insert disc" / "eject" events into the
// fine-grained commands the Player and Ripper state machines
// understand, forwards playback commands untouched, and watches Ripper
// state updates to unstick a Player that is waiting on data.
package commander

import (
	"log/slog"

	"github.com/pisarenko-net/cdpsa/internal/bus"
	"github.com/pisarenko-net/cdpsa/internal/domain"
)

// Command names on the Commander's own queue, per spec.md §6.
const (
	CommandDisc  = "disc"
	CommandEject = "eject"
	CommandPlay  = "play"
	CommandStop  = "stop"
	CommandPause = "pause"
	CommandNext  = "next"
	CommandPrev  = "prev"

	// Debug commands, additive to spec.md's named command set — see
	// SPEC_FULL.md §11.
	CommandDBRebuild = "db_rebuild"
	CommandDBStat    = "db_stat"
)

// Command names sent onward to the Player and Ripper queues.
const (
	playerCmdStart        = "start"
	playerCmdUnknownDisc  = "unknown_disc"
	playerCmdPlay         = "play"
	playerCmdStop         = "stop"
	playerCmdPause        = "pause"
	playerCmdNext         = "next"
	playerCmdPrev         = "prev"
	playerCmdEject        = "eject"
	playerCmdRipperUpdate = "ripper_update"

	ripperCmdStart     = "start"
	ripperCmdKnownDisc = "known_disc"
	ripperCmdEject     = "eject"
)

// DiscReader reads the disc identifier and, when no library or online
// metadata is available, the disc's own table of contents — the
// out-of-scope optical-disc identification primitive spec.md §1 names.
type DiscReader interface {
	ReadDiscID() (discID string, ok bool)
	ReadDiscMeta(discID string) (domain.DiscMeta, bool)
}

// LibraryIndex is the on-disk library's read surface — the out-of-scope
// library rebuild scan spec.md §1 names, consulted here only for
// lookups and rebuild/stat triggers.
type LibraryIndex interface {
	HasDisc(discID string) bool
	TrackList(discID string) []string
	Rebuild()
	Count() int
}

// LocalMetadata resolves a known disc's track metadata from the on-disk
// tags — the out-of-scope tag reader spec.md §1 names.
type LocalMetadata interface {
	Query(discID string, trackList []string) (domain.DiscMeta, bool)
}

// RemoteMetadata resolves a new disc's metadata from an online
// database — the out-of-scope online metadata client spec.md §1 names.
type RemoteMetadata interface {
	Query(discID string) (domain.DiscMeta, bool)
}

// Commander is the control-plane daemon of spec.md §4.4. It owns no
// state machine of its own; it only observes Player/Ripper state and
// routes commands between them.
type Commander struct {
	discReader DiscReader
	library    LibraryIndex
	localMeta  LocalMetadata
	remoteMeta RemoteMetadata

	playbackCmd *bus.Queue
	rippingCmd  *bus.Queue

	playerState domain.PlayerStateTag
	ripperState *domain.RipperState
}

// New wires a Commander to its collaborators and the two outgoing
// command queues.
func New(discReader DiscReader, library LibraryIndex, localMeta LocalMetadata, remoteMeta RemoteMetadata, playbackCmd, rippingCmd *bus.Queue) *Commander {
	return &Commander{
		discReader:  discReader,
		library:     library,
		localMeta:   localMeta,
		remoteMeta:  remoteMeta,
		playbackCmd: playbackCmd,
		rippingCmd:  rippingCmd,
		playerState: domain.PlayerInit,
	}
}

// Run processes the command queue and the state topic on a single
// goroutine, matching spec.md §5's single-event-loop-per-process model.
// It returns when commands is closed.
func (c *Commander) Run(commands <-chan bus.Message, stateUpdates <-chan bus.Message) {
	for {
		select {
		case msg, ok := <-commands:
			if !ok {
				return
			}
			c.handleCommand(msg)
		case msg, ok := <-stateUpdates:
			if !ok {
				stateUpdates = nil
				continue
			}
			c.handleStateUpdate(msg)
		}
	}
}

func (c *Commander) handleCommand(msg bus.Message) {
	switch msg.Event {
	case CommandDisc:
		c.commandDisc()
	case CommandEject:
		c.commandEject()
	case CommandPlay:
		c.forwardPlayback(playerCmdPlay)
	case CommandStop:
		c.forwardPlayback(playerCmdStop)
	case CommandPause:
		c.forwardPlayback(playerCmdPause)
	case CommandNext:
		c.forwardPlayback(playerCmdNext)
	case CommandPrev:
		c.forwardPlayback(playerCmdPrev)
	case CommandDBRebuild:
		c.library.Rebuild()
	case CommandDBStat:
		slog.Info("commander: library index stat", "discs_indexed", c.library.Count())
	default:
		slog.Error("commander: protocol violation, unknown command", "event", msg.Event)
	}
}

// commandDisc implements spec.md §4.4's disc-insertion algorithm.
func (c *Commander) commandDisc() {
	discID, ok := c.discReader.ReadDiscID()
	if !ok {
		c.playbackCmd.Send(bus.Message{Event: playerCmdUnknownDisc})
		return
	}

	if c.library.HasDisc(discID) {
		trackList := c.library.TrackList(discID)
		meta, ok := c.localMeta.Query(discID, trackList)
		if !ok {
			c.playbackCmd.Send(bus.Message{Event: playerCmdUnknownDisc})
			return
		}

		c.playbackCmd.Send(startMessage(playerCmdStart, trackList, meta))
		c.rippingCmd.Send(bus.Message{Event: ripperCmdKnownDisc})
		return
	}

	meta, ok := c.remoteMeta.Query(discID)
	if !ok {
		meta, ok = c.discReader.ReadDiscMeta(discID)
	}
	if !ok {
		c.playbackCmd.Send(bus.Message{Event: playerCmdUnknownDisc})
		return
	}

	c.playbackCmd.Send(startMessage(playerCmdStart, nil, meta))
	c.rippingCmd.Send(startMessage(ripperCmdStart, nil, meta))
}

func (c *Commander) commandEject() {
	c.playbackCmd.Send(bus.Message{Event: playerCmdEject})
	c.rippingCmd.Send(bus.Message{Event: ripperCmdEject})
}

func (c *Commander) forwardPlayback(event string) {
	c.playbackCmd.Send(bus.Message{Event: event})
}

// handleStateUpdate mirrors update_playback_state / update_ripping_state,
// plus the republish-and-possibly-unstick behaviour spec.md §4.4's last
// paragraph describes.
func (c *Commander) handleStateUpdate(msg bus.Message) {
	update, err := decodeStateEnvelope(msg.Payload)
	if err != nil {
		slog.Error("commander: malformed state update", "error", err)
		return
	}

	switch update.component {
	case "playback":
		c.playerState = update.playerState.State
	case "ripping":
		c.ripperState = &update.ripperState
		c.playbackCmd.Send(bus.Message{
			Event:   playerCmdRipperUpdate,
			Payload: encodeTrackList(update.ripperState.TrackList),
		})
		if c.playerState == domain.PlayerWaitingForData {
			c.playbackCmd.Send(bus.Message{Event: playerCmdPlay})
		}
	}
}
