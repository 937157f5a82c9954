// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/desertthunder/swiper/internal/formatter"
	"github.com/urfave/cli/v3"
)

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// serveCommand runs the gateway
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the OAuth gateway and API passthrough",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// loginCommand performs the browser login through the gateway
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in with Spotify through the gateway and store the tokens",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser to come back",
				Value: 2 * time.Minute,
			},
		},
		Action: r.Login,
	}
}

// logoutCommand removes stored tokens
func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the stored tokens",
		Action: r.Logout,
	}
}

// tokenCommand inspects and refreshes the stored token
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Inspect or refresh the stored access token",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show whether the stored token is valid, expired or absent",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.TokenStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh the access token now",
				Action: r.TokenRefresh,
			},
		},
	}
}

// tracksCommand handles recommendations and swipe verdicts
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "Recommendations and likes",
		Commands: []*cli.Command{
			{
				Name:  "recommend",
				Usage: "List recommended tracks",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Number of tracks",
						Value:   10,
					},
					&cli.StringSliceFlag{
						Name:  "genre",
						Usage: "Seed genre (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "artist",
						Usage: "Seed artist ID (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "track",
						Usage: "Seed track ID (repeatable)",
					},
					jsonFlag(),
				},
				Action: r.TracksRecommend,
			},
			{
				Name:      "like",
				Usage:     "Add a track to the liked playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.TracksLike,
			},
			{
				Name:      "dislike",
				Usage:     "Pass on a track",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.TracksDislike,
			},
		},
	}
}

// playlistsCommand handles playlist operations
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List your playlists",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist with its tracks",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, csv, markdown or json",
						Value:   formatter.FormatText,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this file (a directory with README.md and cover for markdown)",
					},
				},
				Action: r.PlaylistsShow,
			},
			{
				Name:      "export",
				Usage:     "Export playlists to files; all of them when no IDs are given",
				ArgsUsage: "[id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: text, csv, markdown or json",
						Value:   formatter.FormatJSON,
					},
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: swiper_export_{epoch})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent file writers",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "rate",
						Usage: "Playlist fetches per second",
						Value: 5,
					},
				},
				Action: r.PlaylistsExport,
			},
			{
				Name:      "create",
				Usage:     "Create a playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "description",
						Usage: "Playlist description",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Make the playlist public",
					},
					jsonFlag(),
				},
				Action: r.PlaylistsCreate,
			},
		},
	}
}

// prefsCommand reads and updates stored preferences
func prefsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "prefs",
		Aliases: []string{"preferences"},
		Usage:   "Read or update your preferences",
		Commands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Print your preferences",
				Action: r.PrefsGet,
			},
			{
				Name:  "set",
				Usage: "Update preferences; only the given fields change",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "genre",
						Usage: "Preferred genre (repeatable, replaces the list)",
					},
					&cli.StringSliceFlag{
						Name:  "artist",
						Usage: "Preferred artist ID (repeatable, replaces the list)",
					},
					&cli.StringSliceFlag{
						Name:  "track",
						Usage: "Preferred track ID (repeatable, replaces the list)",
					},
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Raw JSON object merged over your preferences",
					},
				},
				Action: r.PrefsSet,
			},
		},
	}
}

// swipeCommand launches the TUI
func swipeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "swipe",
		Aliases: []string{"tui", "ui"},
		Usage:   "Swipe through recommendations in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where the TUI writes its logs",
				Value: "./tmp/swiper-tui.log",
			},
		},
		Action: r.Swipe,
	}
}

// configCommand manages the configuration file
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file commands",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
		},
	}
}

// dbCommand manages the preferences database
func dbCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Preferences database commands",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply pending migrations",
				Action: r.DBMigrate,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the latest migration",
				Action: r.DBRollback,
			},
		},
	}
}

// apiCommand makes raw calls against the gateway
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the gateway with the stored token",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a gateway path, prints the JSON response",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "POST a JSON body to a gateway path",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}
