package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/pisarenko-net/cdpsa/internal/audiosink"
	"github.com/pisarenko-net/cdpsa/internal/bus"
	"github.com/pisarenko-net/cdpsa/internal/commander"
	"github.com/pisarenko-net/cdpsa/internal/config"
	"github.com/pisarenko-net/cdpsa/internal/discio"
	"github.com/pisarenko-net/cdpsa/internal/domain"
	"github.com/pisarenko-net/cdpsa/internal/library"
	"github.com/pisarenko-net/cdpsa/internal/metadata"
	"github.com/pisarenko-net/cdpsa/internal/pcm"
	"github.com/pisarenko-net/cdpsa/internal/player"
	"github.com/pisarenko-net/cdpsa/internal/ripper"
	"github.com/pisarenko-net/cdpsa/internal/tagging"
)

// runAppliance loads configuration, wires every component to the
// in-process bus, and blocks until SIGINT/SIGTERM. component names the
// logger identity only — see the package doc for why every subcommand
// ends up running the same wiring.
func runAppliance(component string) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})).
		With("component", component)
	slog.SetDefault(logger)

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			slog.Error("failed to load config", "path", configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	slog.Info("initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	converter := pcm.NewFileConverter()
	lib := library.New(cfg.DBPath, cfg.LibraryRoot)
	stop := make(chan struct{})
	go lib.RunPeriodicRebuild(cfg.DBRebuildInterval, stop)
	defer close(stop)

	discReader := discio.New(cfg.CDDevice)
	localMeta := metadata.NewLocalReader(converter)

	var remoteMeta commander.RemoteMetadata
	if cfg.MusicBrainzBaseURL != "" {
		remoteMeta = metadata.NewRemoteReader(cfg.MusicBrainzBaseURL)
	} else {
		remoteMeta = metadata.NewRemoteReader("https://musicbrainz.org/ws/2")
	}

	stateTopic := bus.NewTopic(cfg.Bus.StateTopic)
	commandQueue := bus.NewQueue(cfg.Bus.CommandQueue, 0)
	playbackQueue := bus.NewQueue(cfg.Bus.CommandPlaybackQueue, 0)
	rippingQueue := bus.NewQueue(cfg.Bus.CommandRippingQueue, 0)

	sinkCfg := audiosink.DefaultConfig()

	pl := player.New(
		func(onFramesPlayed func(int), onPlaybackStopped func()) (player.Sink, error) {
			return audiosink.New(sinkCfg, converter, onFramesPlayed, onPlaybackStopped), nil
		},
		func(state domain.PlayerState) {
			publishState(stateTopic, state)
		},
	)
	pl.Init()

	ripCfg := ripper.Config{
		AlbumFolderTemplate:   cfg.AlbumFolderTemplate,
		VAAlbumFolderTemplate: cfg.VAAlbumFolderTemplate,
		TrackFileTemplate:     cfg.TrackFileTemplate,
		LibraryRoot:           cfg.LibraryRoot,
		CodecExt:              "flac",
	}
	rip := ripper.New(ripCfg, discReader, tagging.New(), ripper.NewOSFileMover(),
		func(state domain.RipperState) {
			publishState(stateTopic, state)
		},
	)

	cmdr := commander.New(discReader, lib, localMeta, remoteMeta, playbackQueue, rippingQueue)

	go runPlayerCommandLoop(pl, playbackQueue.Receive())
	go runRipperCommandLoop(rip, rippingQueue.Receive())
	go cmdr.Run(commandQueue.Receive(), stateTopic.Subscribe(""))

	// The remote-control thread and OS-level disc-insertion trigger
	// spec.md §5 names are hardware drivers out of this module's
	// scope; stdin lines stand in so the appliance is operable without
	// them. Recognised lines match commander.Command* names.
	go runStdinCommandReader(commandQueue)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("signal received, shutting down", "signal", sig)
}

func publishState(topic *bus.Topic, state any) {
	payload, err := json.Marshal(state)
	if err != nil {
		slog.Error("failed to marshal state snapshot", "error", err)
		return
	}
	topic.Publish(bus.Message{Event: "state", Payload: payload})
}

// runPlayerCommandLoop dispatches the Player's own command queue to its
// trigger methods, mirroring the original's per-process command-receive
// loop (spec.md §5) within this module's in-process bus.
func runPlayerCommandLoop(pl *player.Player, commands <-chan bus.Message) {
	d := bus.NewDispatcher()
	d.On("start", func(msg bus.Message) {
		trackList, meta, err := decodeStartPayload(msg.Payload)
		if err != nil {
			slog.Error("player: malformed start payload", "error", err)
			return
		}
		pl.Start(trackList, meta)
	})
	d.On("unknown_disc", func(bus.Message) { pl.UnknownDisc() })
	d.On("play", func(bus.Message) { pl.Play() })
	d.On("stop", func(bus.Message) { pl.Stop() })
	d.On("pause", func(bus.Message) { pl.Pause() })
	d.On("next", func(bus.Message) { pl.Next() })
	d.On("prev", func(bus.Message) { pl.Prev() })
	d.On("eject", func(bus.Message) { pl.Eject() })
	d.On("ripper_update", func(msg bus.Message) {
		var trackList []string
		if err := json.Unmarshal(msg.Payload, &trackList); err != nil {
			slog.Error("player: malformed ripper_update payload", "error", err)
			return
		}
		pl.RipperUpdate(trackList)
	})
	d.Run(commands)
}

// runRipperCommandLoop does the same for the Ripper.
func runRipperCommandLoop(rip *ripper.Ripper, commands <-chan bus.Message) {
	d := bus.NewDispatcher()
	d.On("start", func(msg bus.Message) {
		_, meta, err := decodeStartPayload(msg.Payload)
		if err != nil {
			slog.Error("ripper: malformed start payload", "error", err)
			return
		}
		if err := rip.Start(meta); err != nil {
			slog.Error("ripper: start failed", "error", err)
			return
		}
		// rip_track blocks on the extraction pipeline for each track, so
		// it runs on its own goroutine rather than this dispatch loop
		// (ripper.Ripper.RipTrack's doc comment).
		go driveRip(rip, len(meta.Tracks))
	})
	d.On("known_disc", func(bus.Message) {
		if err := rip.KnownDisc(); err != nil {
			slog.Error("ripper: known_disc failed", "error", err)
		}
	})
	d.On("eject", func(bus.Message) {
		if err := rip.Eject(); err != nil {
			slog.Error("ripper: eject failed", "error", err)
		}
	})
	d.Run(commands)
}

// driveRip calls RipTrack once per track then Finish, stopping early on
// the first extraction failure (eject is still observed independently,
// since fire()'s own mutex serializes against a concurrent eject).
func driveRip(rip *ripper.Ripper, trackCount int) {
	for i := 0; i < trackCount; i++ {
		if err := rip.RipTrack(); err != nil {
			slog.Error("ripper: rip_track failed, aborting rip", "error", err)
			return
		}
	}
	if err := rip.Finish(); err != nil {
		slog.Error("ripper: finish failed", "error", err)
	}
}

// runStdinCommandReader lets an operator drive the Commander manually —
// a line of input names one of commander.Command*, e.g. "disc" or
// "play". Blank lines are skipped; every other line is sent as-is, and
// the Commander logs names it does not recognise as protocol violations.
func runStdinCommandReader(commandQueue *bus.Queue) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		commandQueue.Send(bus.Message{Event: line})
	}
}

func decodeStartPayload(payload []byte) ([]string, domain.DiscMeta, error) {
	var p struct {
		TrackList []string        `json:"track_list"`
		DiscMeta  domain.DiscMeta `json:"disc_meta"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, domain.DiscMeta{}, fmt.Errorf("decode start payload: %w", err)
	}
	return p.TrackList, p.DiscMeta, nil
}
