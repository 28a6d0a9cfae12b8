// cmd/fixture/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/ble-fixture/internal/buttons"
	"github.com/tamzrod/ble-fixture/internal/config"
	"github.com/tamzrod/ble-fixture/internal/counter"
	"github.com/tamzrod/ble-fixture/internal/input"
	"github.com/tamzrod/ble-fixture/internal/ledger"
	"github.com/tamzrod/ble-fixture/internal/logger"
	"github.com/tamzrod/ble-fixture/internal/protocol"
	"github.com/tamzrod/ble-fixture/internal/session"
	"github.com/tamzrod/ble-fixture/internal/station"
	"github.com/tamzrod/ble-fixture/internal/transport"
	"github.com/tamzrod/ble-fixture/internal/transport/ble"
	"github.com/tamzrod/ble-fixture/internal/transport/sim"
	"github.com/tamzrod/ble-fixture/internal/writer"
)

// version is the fixture software version recorded in the SW_Testing column.
// Override with -ldflags "-X main.version=...".
var version = "1.0.0.0"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: fixture <settings.toml|fixture.yaml>")
		os.Exit(2)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("fixture stopped")
		closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	variant := session.VariantProducer
	if cfg.Variables.FinalTest {
		variant = session.VariantIdentity
	}

	log.Info().
		Str("version", version).
		Str("device", cfg.Resolved.Device.Name).
		Stringer("variant", variant).
		Str("driver", cfg.Transport.Driver).
		Msg("fixture starting")

	// --------------------
	// Transport
	// --------------------

	var tr transport.Transport
	switch cfg.Transport.Driver {
	case "sim":
		tr = sim.New(dryRunUnit(cfg))
		log.Warn().Msg("dry run: simulated unit, no radio")
	default:
		tr = ble.New(logger.Component(log, "ble"))
	}

	// --------------------
	// Ledger + identity counter
	// --------------------

	book := ledger.New(cfg.Ledger.Path)

	deps := session.Deps{
		Transport: tr,
		Ledger:    book,
		Log:       log,
		Hooks: session.Hooks{
			OnButtons: func(f buttons.Flags) {
				log.Debug().Int("pressed", f.Count()).Msg("buttons")
			},
		},
	}

	if variant == session.VariantIdentity {
		ids, err := counter.Open(cfg.Counter.Path, cfg.Variables.AntIDCnt)
		if err != nil {
			return err
		}
		deps.Counter = ids
		if seed, ignored := ids.SeedIgnored(); ignored {
			log.Warn().
				Int("ant_id_cnt", seed).
				Int("stored", ids.Current()).
				Str("path", ids.Path()).
				Msg("settings ant_id_cnt ignored, counter file wins; delete the file to reseed")
		}
		log.Info().Int("ant_id", ids.Current()).Str("path", ids.Path()).Msg("identity counter")
	}

	// --------------------
	// Station status (optional)
	// --------------------

	opts := station.Options{
		Device:  cfg.Resolved.Device,
		History: book,
		Log:     log,
	}

	if cfg.Status != nil {
		sw, closeStatus, err := writer.Dial(*cfg.Status)
		if err != nil {
			// The line keeps running without the PLC block.
			log.Warn().Err(err).Str("endpoint", cfg.Status.Endpoint).Msg("status writer disabled")
		} else {
			defer closeStatus()
			opts.Status = writer.NewGuardedWriter(sw, writer.BreakerConfig{
				Failures: cfg.Status.BreakerFailures,
				Cooldown: time.Duration(cfg.Status.BreakerCooldownMs) * time.Millisecond,
			}, logger.Component(log, "status"))
		}
	}

	runner, err := station.New(sessionConfig(cfg, variant), deps, opts)
	if err != nil {
		return err
	}

	// --------------------
	// Operator input
	// --------------------

	var src input.Source
	if cfg.Scanner != nil {
		s, err := input.OpenSerial(*cfg.Scanner)
		if err != nil {
			return err
		}
		src = s
	} else {
		src = input.NewLineSource(os.Stdin)
	}
	defer src.Close()

	runner.Start()
	loop(ctx, runner, src, variant, log)

	passed, failed := runner.Counts()
	log.Info().Int("passed", passed).Int("failed", failed).Msg("fixture stopped")
	return nil
}

// loop reads entries until the source ends or ctx is cancelled.
func loop(ctx context.Context, runner *station.Runner, src input.Source, variant session.Variant, log zerolog.Logger) {
	for {
		if variant == session.VariantIdentity {
			log.Info().Msg("scan or type the serial number")
		} else {
			log.Info().Msg("press Enter to start the test")
		}

		entry, err := src.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Error().Err(err).Msg("input")
			}
			return
		}

		out, err := runner.RunOnce(ctx, entry)
		switch {
		case errors.Is(err, station.ErrNoEntry):
			continue
		case out.Refused:
			log.Error().Str("serial", out.Serial).Msg("FAIL: serial refused")
		case out.Passed():
			log.Info().Str("serial", out.Serial).Int("ant_id", out.Result.AntID).Msg("PASS")
		default:
			log.Error().Stringer("reason", out.Result.Reason).Msg("FAIL")
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func sessionConfig(cfg *config.Config, variant session.Variant) session.Config {
	v := cfg.Variables
	return session.Config{
		Variant:        variant,
		DeviceName:     cfg.Resolved.Device.Name,
		MinRSSI:        v.RSSIThs,
		ScanTimeout:    v.ScanTimeout(),
		ConnectTimeout: v.ConnectTimeout(),
		PressWindow:    v.PressWindow(),
		SettleDelay:    v.SettleDelay(),
		HWVersion:      cfg.Device.HWVersion,
		Batch:          cfg.Board.Batch,
		Producer:       int(cfg.Resolved.Producer.Code),
		Manufacturer:   cfg.Resolved.Manufacturer.Name,
		SWTesting:      version,
		LogFailures:    cfg.Ledger.LogFailures,
	}
}

// dryRunUnit is a healthy simulated unit matching the configured station.
func dryRunUnit(cfg *config.Config) *sim.Unit {
	u := sim.NewUnit("5E:1A:00:00:00:01", cfg.Resolved.Device.Name, cfg.Variables.RSSIThs+10)
	u.Frames = sim.Sweep()
	u.EEPROM[protocol.Batch.ID] = int64(cfg.Board.Batch)
	u.EEPROM[protocol.Producer.ID] = int64(cfg.Resolved.Producer.Code)
	return u
}
