package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/amply/internal/party"
	"github.com/desertthunder/amply/internal/services"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/desertthunder/amply/internal/stats"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    services.TrackSearcher
	walrus     services.BlobStore
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.TrackSearcher
	Walrus     services.BlobStore
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		walrus:     opts.Walrus,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, spotifyCommand, walrusCommand, partyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configFor returns the runner's config unless the command was given an explicit --config.
func (r *Runner) configFor(cmd *cli.Command) (*shared.Config, string, error) {
	if !cmd.IsSet("config") {
		return r.config, r.configPath, nil
	}

	path := cmd.String("config")
	config, err := shared.ResolveConfig(path)
	if err != nil {
		return nil, path, err
	}
	return config, path, nil
}

// openCoordinator opens the configured database and builds a coordinator over it.
// The returned func closes the database.
func (r *Runner) openCoordinator(ctx context.Context, config *shared.Config) (*party.Coordinator, func(), error) {
	db, err := shared.OpenFromConfig(config.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := shared.RunMigrationsContext(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger := shared.WithLogger(r.logger, "component", "party")
	hub := party.NewHub(0, stats.Discard{}, logger)
	coord := party.NewCoordinator(party.NewStore(db), hub, r.spotify, party.WithLogger(logger))
	return coord, func() { db.Close() }, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
