// Package config loads the appliance's single YAML configuration file,
// grounded on the original Python implementation's
// hifi_appliance/config package (one file, merged into a flat
// namespace) and on this corpus's other YAML consumer
// (doismellburning-samoyed's tocalls.yaml loader).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors spec.md §6's recognised options. Daemon user/group are
// kept for fidelity with the original file format even though this
// module does not apply them — process lifecycle is out of scope. There
// are no PID file or log file path fields; such keys in a file are
// ignored.
type Config struct {
	// LibraryRoot is the root of the on-disk ripped-track library.
	LibraryRoot string `yaml:"library_root"`

	// DBPath is where the library index persists between restarts.
	DBPath string `yaml:"db_path"`

	// CDDevice is the optical drive device path (e.g. /dev/cdrom).
	CDDevice string `yaml:"cd_device"`

	// DaemonUser/DaemonGroup are carried from the original format but
	// unused: process privilege dropping is out of scope here.
	DaemonUser  string `yaml:"daemon_user,omitempty"`
	DaemonGroup string `yaml:"daemon_group,omitempty"`

	// Templates for the Ripper's destination path policy (spec.md §4.3).
	AlbumFolderTemplate   string `yaml:"album_folder_template"`
	VAAlbumFolderTemplate string `yaml:"va_album_folder_template"`
	TrackFileTemplate     string `yaml:"track_file_template"`

	// DBRebuildInterval controls how often the library index is
	// rebuilt from a full directory scan.
	DBRebuildInterval time.Duration `yaml:"db_rebuild_interval"`

	// Bus holds the command/state channel addressing. In this
	// in-process reimplementation these are just channel names, not
	// network endpoints, but the field names mirror spec.md §6's table.
	Bus BusConfig `yaml:"bus"`

	// MusicBrainzBaseURL lets tests point the remote metadata client at
	// a fake server.
	MusicBrainzBaseURL string `yaml:"musicbrainz_base_url,omitempty"`
}

// BusConfig names the bus channels spec.md §6 enumerates.
type BusConfig struct {
	StateTopic           string `yaml:"state_topic"`
	ErrorTopic           string `yaml:"error_topic"`
	CommandQueue         string `yaml:"command_queue"`
	CommandPlaybackQueue string `yaml:"command_playback_queue"`
	CommandRippingQueue  string `yaml:"command_ripping_queue"`
}

// Default returns the configuration used when no file is supplied,
// matching the original's folder/file naming conventions.
func Default() Config {
	return Config{
		LibraryRoot:           "/var/lib/cdpsa/music",
		DBPath:                "/var/lib/cdpsa/library.db",
		CDDevice:              "/dev/cdrom",
		AlbumFolderTemplate:   "{artist} - {title}",
		VAAlbumFolderTemplate: "{title}",
		TrackFileTemplate:     "{track_number} {artist} - {title}",
		DBRebuildInterval:     6 * time.Hour,
		Bus: BusConfig{
			StateTopic:           "state",
			ErrorTopic:           "error",
			CommandQueue:         "command",
			CommandPlaybackQueue: "command_playback",
			CommandRippingQueue:  "command_ripping",
		},
	}
}

// Load reads and parses the YAML file at path, starting from Default()
// so a partial file only overrides the keys it sets — matching the
// original's behaviour of merging recognised keys into a pre-existing
// namespace rather than requiring every key.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}
