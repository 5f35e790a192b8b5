package discio

import (
	"testing"

	"github.com/rabidaudio/audiocd"

	"github.com/stretchr/testify/assert"
)

func TestDiscIDIsStableForSameTOC(t *testing.T) {
	toc := []audiocd.TrackPosition{
		{TrackNum: 1, StartSector: 0, LengthSectors: 1000},
		{TrackNum: 2, StartSector: 1000, LengthSectors: 2000},
	}

	first := discID(toc, 3000)
	second := discID(toc, 3000)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestDiscIDChangesWithTOC(t *testing.T) {
	toc := []audiocd.TrackPosition{
		{TrackNum: 1, StartSector: 0, LengthSectors: 1000},
	}
	other := []audiocd.TrackPosition{
		{TrackNum: 1, StartSector: 0, LengthSectors: 1500},
	}

	assert.NotEqual(t, discID(toc, 1000), discID(other, 1500))
}

func TestDiscIDHasNoURLUnsafeCharacters(t *testing.T) {
	toc := []audiocd.TrackPosition{
		{TrackNum: 1, StartSector: 0, LengthSectors: 1000},
		{TrackNum: 2, StartSector: 1000, LengthSectors: 2000},
		{TrackNum: 3, StartSector: 3000, LengthSectors: 500},
	}

	id := discID(toc, 3500)

	assert.NotContains(t, id, "+")
	assert.NotContains(t, id, "/")
	assert.NotContains(t, id, "=")
}

func TestReadDiscMetaFailsClosedWithoutReadableDrive(t *testing.T) {
	r := New("/dev/null")
	// ReadDiscMeta opens the real device, which /dev/null cannot satisfy,
	// so it must fail closed rather than panic.
	_, ok := r.ReadDiscMeta("disc-1")
	assert.False(t, ok)
}
