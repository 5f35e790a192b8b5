package commander

import (
	"encoding/json"
	"fmt"

	"github.com/pisarenko-net/cdpsa/internal/bus"
	"github.com/pisarenko-net/cdpsa/internal/domain"
)

// startMessage builds the JSON-payload command message spec.md §6
// describes for "start": event name plus disc metadata, optionally
// carrying a track list (the Player's start(track_list, disc_meta); the
// Ripper's start(disc_meta) leaves track list empty).
func startMessage(event string, trackList []string, meta domain.DiscMeta) bus.Message {
	payload, _ := json.Marshal(startPayload{TrackList: trackList, DiscMeta: meta})
	return bus.Message{Event: event, Payload: payload}
}

type startPayload struct {
	TrackList []string        `json:"track_list,omitempty"`
	DiscMeta  domain.DiscMeta `json:"disc_meta"`
}

// stateEnvelope is the decoded form of a state-topic message: which
// component published it (inferred from the payload itself, see
// decodeStateEnvelope; the event name is not consulted) plus whichever
// state snapshot applies.
type stateEnvelope struct {
	component   string
	playerState domain.PlayerState
	ripperState domain.RipperState
}

// decodeStateEnvelope expects payload to be either a domain.PlayerState
// or domain.RipperState snapshot; it tells the two apart by the
// presence of a ripper-only field.
func decodeStateEnvelope(payload []byte) (stateEnvelope, error) {
	var probe struct {
		DestinationFolder *string `json:"destination_folder"`
		CurrentTrackIndex *int    `json:"current_track_index"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return stateEnvelope{}, fmt.Errorf("commander: decode state envelope: %w", err)
	}

	if probe.CurrentTrackIndex != nil {
		var rs domain.RipperState
		if err := json.Unmarshal(payload, &rs); err != nil {
			return stateEnvelope{}, fmt.Errorf("commander: decode ripper state: %w", err)
		}
		return stateEnvelope{component: "ripping", ripperState: rs}, nil
	}

	var ps domain.PlayerState
	if err := json.Unmarshal(payload, &ps); err != nil {
		return stateEnvelope{}, fmt.Errorf("commander: decode player state: %w", err)
	}
	return stateEnvelope{component: "playback", playerState: ps}, nil
}

// encodeTrackList marshals a track list as the JSON payload for
// ripper_update.
func encodeTrackList(trackList []string) []byte {
	payload, _ := json.Marshal(trackList)
	return payload
}
