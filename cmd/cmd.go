// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, realtime hub and party janitor",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Override the listen address (host:port)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Reload the log level when the config file changes",
				Value: true,
			},
		},
		Action: r.Serve,
	}
}

// setupCommand prepares a local install
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write config.toml from the built-in template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Create the database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// spotifyCommand handles catalog lookups
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify catalog operations",
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Search Spotify tracks",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Usage:   "Maximum number of tracks (1-50)",
						Value:   10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "query",
						UsageText: "Search terms",
					},
				},
				Action: r.SpotifySearch,
			},
			{
				Name:  "track",
				Usage: "Show one Spotify track",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "id",
						UsageText: "Spotify track ID",
					},
				},
				Action: r.SpotifyTrack,
			},
		},
	}
}

// walrusCommand handles blob storage
func walrusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "walrus",
		Usage: "Store and read Walrus blobs",
		Commands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "Upload one or more files",
				ArgsUsage: "<file> [file...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "deletable",
						Usage: "Store the blobs as deletable",
					},
					&cli.IntFlag{
						Name:  "epochs",
						Usage: "Storage duration in epochs (0 uses the configured default)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent uploads when storing several files",
						Value: 3,
					},
					&cli.StringFlag{
						Name:  "manifest",
						Usage: "Write a JSON manifest of a multi-file upload",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.WalrusPut,
			},
			{
				Name:  "get",
				Usage: "Download a blob",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (stdout when omitted)",
					},
				},
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "blob-id",
						UsageText: "Walrus blob ID",
					},
				},
				Action: r.WalrusGet,
			},
		},
	}
}

// partyCommand inspects and follows listening parties
func partyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "party",
		Usage: "Listening party operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List parties",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "status",
						Aliases: []string{"s"},
						Usage:   "Filter by status (scheduled, live, ended)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of parties",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PartyList,
			},
			{
				Name:  "show",
				Usage: "Print a party with its queue and participants",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, markdown, csv)",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "party",
						UsageText: "Party ID or invite code",
					},
				},
				Action: r.PartyShow,
			},
			{
				Name:  "open",
				Usage: "Open a party in the web client",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "print",
						Usage: "Print the link instead of opening a browser",
					},
				},
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "party",
						UsageText: "Party ID or invite code",
					},
				},
				Action: r.PartyOpen,
			},
			{
				Name:  "watch",
				Usage: "Follow a party live in the terminal",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "server",
						Usage: "Server base URL (defaults to the configured host and port)",
					},
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID to watch as",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "token-ttl",
						Usage: "Lifetime of the minted access token",
						Value: defaultTokenTTL,
					},
				},
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "party",
						UsageText: "Party ID",
					},
				},
				Action: r.PartyWatch,
			},
		},
	}
}
