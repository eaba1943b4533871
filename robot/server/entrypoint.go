// Package server implements the entry point for running the robot's control loop.
package server

import (
	"context"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"github.com/frc-reefscape/reefbot/config"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/networktables"
	"github.com/frc-reefscape/reefbot/robot"
)

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,usage=robot config file, simulated hardware with defaults when empty"`
	Debug      bool   `flag:"debug"`
	Enable     bool   `flag:"enable,usage=enable the robot on start"`
	Autonomous bool   `flag:"autonomous,usage=run the configured autonomous routine on start"`
	NoWatch    bool   `flag:"no-watch,usage=do not reload tunables when the config file changes"`
	LogFile    string `flag:"log-file,usage=also write logs to this file"`
	LogMaxSize string `flag:"log-max-size,default=10MB,usage=size at which the log file is rotated"`

	// TraceCommands logs every scheduling decision without turning on debug logs elsewhere.
	TraceCommands bool `flag:"trace-commands,usage=log every command scheduling decision"`
}

const logFileMaxBackups = 3

// logFileSizeMB parses a human readable size such as "10MB" into whole megabytes, at least one.
func logFileSizeMB(size string) (int, error) {
	bytes, err := units.FromHumanSize(size)
	if err != nil {
		return 0, errors.Wrap(err, "invalid log-max-size")
	}
	return max(1, int((bytes+units.MB-1)/units.MB)), nil
}

// RunServer is an entry point to starting the control loop that can be called by main in a code
// sample or otherwise be used to initialize the robot.
func RunServer(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	if argsParsed.LogFile != "" {
		maxSizeMB, sizeErr := logFileSizeMB(argsParsed.LogMaxSize)
		if sizeErr != nil {
			return sizeErr
		}
		fileAppender := logging.NewFileAppender(argsParsed.LogFile, maxSizeMB, logFileMaxBackups)
		logger.AddAppender(fileAppender)
		defer func() {
			err = multierr.Combine(err, fileAppender.Close())
		}()
	}

	cfg, err := readConfig(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	return Serve(ctx, cfg, networktables.NewInstance(), argsParsed, logger)
}

func readConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Read(path)
	}
	cfg := config.Config{}.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Serve runs the robot until ctx is done, applying config file changes as they happen.
func Serve(
	ctx context.Context,
	cfg *config.Config,
	nt *networktables.Instance,
	args Arguments,
	logger logging.Logger,
	opts ...robot.Option,
) (err error) {
	if args.TraceCommands {
		ctx = logging.EnableDebugMode(ctx, "commands")
	}
	r, err := robot.New(ctx, cfg, nt, logger.Sublogger("robot"), opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, r.Close(context.Background()))
	}()

	if args.Enable {
		if err := r.SetEnabled(ctx, true); err != nil {
			return err
		}
	}
	if args.Autonomous {
		if _, err := r.StartAutonomous(ctx); err != nil {
			return err
		}
	}

	var watcher *config.Watcher
	if cfg.ConfigFilePath != "" && !args.NoWatch {
		watcher, err = config.NewWatcher(ctx, cfg.ConfigFilePath, config.DefaultWatchDebounce, logger.Sublogger("config"))
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, watcher.Close())
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(gctx)
	})
	if watcher != nil {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case next := <-watcher.Config():
					if err := r.Reconfigure(gctx, next); err != nil {
						logger.Errorw("cannot apply new config", "error", err)
					}
				}
			}
		})
	}

	logger.Infow("robot running", "period", cfg.Period(), "vision_mode", cfg.Vision.Mode, "enabled", r.Enabled())
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
