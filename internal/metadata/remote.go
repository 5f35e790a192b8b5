package metadata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pisarenko-net/cdpsa/internal/domain"
)

// RemoteReader satisfies commander.RemoteMetadata: it queries the
// MusicBrainz disc-ID lookup endpoint, grounded on the original
// implementation's hifi_appliance/meta/musicbrainz.py. No MusicBrainz
// client library or HTTP retry library appears anywhere in this
// module's dependency corpus, so this client is a plain net/http GET
// plus a hand-rolled bounded backoff loop — see DESIGN.md.
type RemoteReader struct {
	baseURL string
	client  *http.Client
}

// NewRemoteReader wraps the MusicBrainz REST base URL (overridable in
// tests).
func NewRemoteReader(baseURL string) *RemoteReader {
	return &RemoteReader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Query looks up discID, making up to 5 attempts in total with
// exponential backoff between them on transient failure, matching spec.md §5's "may
// exponentially retry up to 5 attempts". A definitive "disc unknown"
// response is not retried.
func (r *RemoteReader) Query(discID string) (domain.DiscMeta, bool) {
	const maxAttempts = 5
	wait := 100 * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		meta, transient, ok := r.queryOnce(discID)
		if !transient {
			return meta, ok
		}
		if attempt == maxAttempts {
			break
		}
		time.Sleep(wait)
		wait *= 2
	}
	return domain.DiscMeta{}, false
}

func (r *RemoteReader) queryOnce(discID string) (domain.DiscMeta, bool, bool) {
	url := fmt.Sprintf("%s/discid/%s?inc=artists+artist-credits+recordings&fmt=json", r.baseURL, discID)
	resp, err := r.client.Get(url)
	if err != nil {
		return domain.DiscMeta{}, true, false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.DiscMeta{}, false, false
	}
	if resp.StatusCode >= 500 {
		return domain.DiscMeta{}, true, false
	}
	if resp.StatusCode != http.StatusOK {
		return domain.DiscMeta{}, false, false
	}

	var body discIDResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.DiscMeta{}, false, false
	}

	meta, ok := mapRelease(discID, body)
	return meta, false, ok
}

// discIDResponse is the subset of MusicBrainz's disc-ID lookup JSON
// this client consumes.
type discIDResponse struct {
	Releases []struct {
		Title  string `json:"title"`
		Media  []struct {
			Format   string `json:"format"`
			Position int    `json:"position"`
			Discs    []struct {
				ID string `json:"id"`
			} `json:"discs"`
			Tracks []struct {
				Length  int64 `json:"length"`
				Recording struct {
					Title         string `json:"title"`
					ArtistCredit []struct {
						Artist struct {
							Name string `json:"name"`
						} `json:"artist"`
					} `json:"artist-credit"`
				} `json:"recording"`
			} `json:"tracks"`
		} `json:"media"`
	} `json:"releases"`
}

func mapRelease(discID string, body discIDResponse) (domain.DiscMeta, bool) {
	if len(body.Releases) == 0 {
		return domain.DiscMeta{}, false
	}
	release := body.Releases[0]

	meta := domain.DiscMeta{DiscID: discID, Title: release.Title}

	var cdCount int
	for _, medium := range release.Media {
		if medium.Format == "CD" {
			cdCount++
		}
	}
	meta.TotalCDs = cdCount

	for _, medium := range release.Media {
		matchesDisc := false
		for _, disc := range medium.Discs {
			if disc.ID == discID {
				matchesDisc = true
				break
			}
		}
		if !matchesDisc {
			continue
		}

		meta.CD = medium.Position
		for _, track := range medium.Tracks {
			artist := ""
			if len(track.Recording.ArtistCredit) > 0 {
				artist = track.Recording.ArtistCredit[0].Artist.Name
			}
			meta.Tracks = append(meta.Tracks, domain.Track{
				Artist:         artist,
				Title:          track.Recording.Title,
				DurationFrames: (track.Length / 1000) * domain.SampleRate,
			})
		}
		break
	}

	if len(meta.Tracks) == 0 {
		return domain.DiscMeta{}, false
	}

	for _, t := range meta.Tracks {
		meta.DurationFrames += t.DurationFrames
	}

	return meta, true
}
