// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

func withOutput(flags ...cli.Flag) []cli.Flag {
	return append(flags, outputFlags()...)
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file and initialize the local cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "API base URL to store in the config, including the /api prefix",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles session management
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Log in and manage the saved session",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show whether the saved session is valid",
				Flags:  outputFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:      "login",
				Usage:     "Log in with a username and password",
				Arguments: []cli.Argument{&cli.StringArg{Name: "username"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Account password",
						Sources: cli.EnvVars("AEHX_PASSWORD"),
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "End the session and forget it",
				Action: r.AuthLogout,
			},
			{
				Name:   "me",
				Usage:  "Show the logged in user",
				Flags:  outputFlags(),
				Action: r.AuthMe,
			},
			{
				Name:  "import",
				Usage: "Adopt a browser session from a copied cURL request",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command copied from the browser dev tools",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "File containing the cURL command",
					},
				},
				Action: r.AuthImport,
			},
		},
	}
}

func feedListCommand(r *Runner, name, usage string, extra ...cli.Flag) *cli.Command {
	flags := append([]cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Items per page (default from config)",
		},
		&cli.IntFlag{
			Name:  "pages",
			Usage: "Number of pages to load",
			Value: 1,
		},
		&cli.BoolFlag{
			Name:  "cache",
			Usage: "Store the items in the local cache",
			Value: true,
		},
	}, extra...)

	return &cli.Command{
		Name:   name,
		Usage:  usage,
		Flags:  withOutput(flags...),
		Action: r.FeedList,
	}
}

func galleryArgs() []cli.Argument {
	return []cli.Argument{
		&cli.StringArg{Name: "gid"},
		&cli.StringArg{Name: "token"},
	}
}

// feedCommand handles the history and recommend feeds
func feedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Browse the history and recommend feeds",
		Commands: []*cli.Command{
			feedListCommand(r, "history", "List recently read galleries"),
			feedListCommand(r, "recommend", "List recommended galleries",
				&cli.BoolFlag{
					Name:  "shuffle",
					Usage: "Ask for a freshly jittered batch",
				},
				&cli.BoolFlag{
					Name:  "mark-seen",
					Usage: "Report the listed items as impressions",
				},
			),
			{
				Name:      "dislike",
				Usage:     "Send negative feedback for a gallery",
				Arguments: galleryArgs(),
				Flags: []cli.Flag{
					&cli.FloatFlag{
						Name:  "weight",
						Usage: "Feedback weight",
						Value: feedbackWeight,
					},
				},
				Action: r.FeedDislike,
			},
			{
				Name:      "open",
				Usage:     "Record a touch and open a gallery in the browser",
				Arguments: galleryArgs(),
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "print",
						Usage: "Print the URL instead of opening it",
					},
				},
				Action: r.FeedOpen,
			},
			{
				Name:   "clear-touches",
				Usage:  "Forget every recorded open",
				Action: r.FeedClearTouches,
			},
			{
				Name:  "reset-profile",
				Usage: "Clear the learned recommend profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm the reset",
					},
				},
				Action: r.FeedResetProfile,
			},
		},
	}
}

// searchCommand handles text search and tag completion
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the library",
		Commands: []*cli.Command{
			{
				Name:      "text",
				Usage:     "Search galleries by text",
				ArgsUsage: "<query...>",
				Flags: withOutput(
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum results (default from config)",
					},
					&cli.BoolFlag{
						Name:  "llm",
						Usage: "Let the backend rewrite the query with the LLM",
					},
					&cli.StringSliceFlag{
						Name:  "category",
						Usage: "Only include this category (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:    "tag",
						Aliases: []string{"t"},
						Usage:   "Require this tag (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "cache",
						Usage: "Store the results in the local cache",
					},
				),
				Action: r.SearchText,
			},
			{
				Name:      "tags",
				Usage:     "Suggest tags for a partial input",
				Arguments: []cli.Argument{&cli.StringArg{Name: "input"}},
				Flags: withOutput(
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum suggestions",
						Value: 8,
					},
				),
				Action: r.SearchTags,
			},
		},
	}
}

func sessionIndexArguments() []cli.Argument {
	return []cli.Argument{
		&cli.StringArg{Name: "session"},
		&cli.StringArg{Name: "index"},
	}
}

func statsFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "stats",
		Usage: "Print the reply stats",
	}
}

// chatCommand handles chat sessions
func chatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with the library assistant",
		Commands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "Send a message and stream the reply",
				ArgsUsage: "<message...>",
				Flags: withOutput(
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Session id",
						Value:   "default",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Chat mode (default from config)",
					},
					&cli.StringFlag{
						Name:  "intent",
						Usage: "auto, chat, profile, search, report or recommendation",
					},
					&cli.BoolFlag{
						Name:  "no-stream",
						Usage: "Wait for the whole reply",
					},
					statsFlag(),
				),
				Action: r.ChatSend,
			},
			{
				Name:      "regenerate",
				Aliases:   []string{"regen"},
				Usage:     "Discard a reply and ask again",
				Arguments: sessionIndexArguments(),
				Flags:     []cli.Flag{statsFlag()},
				Action:    r.ChatRegenerate,
			},
			{
				Name:      "history",
				Usage:     "Print a session transcript",
				Arguments: []cli.Argument{&cli.StringArg{Name: "session"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "txt, markdown, csv or json",
						Value:   "txt",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Read the cached copy only",
					},
				},
				Action: r.ChatHistory,
			},
			{
				Name:   "sessions",
				Usage:  "List sessions on the server",
				Flags:  outputFlags(),
				Action: r.ChatSessions,
			},
			{
				Name:      "edit",
				Usage:     "Rewrite a message",
				Arguments: sessionIndexArguments(),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "text",
						Usage:    "New message text",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "regenerate",
						Usage: "Regenerate the reply after the edited message",
					},
				},
				Action: r.ChatEdit,
			},
			{
				Name:      "delete",
				Usage:     "Delete a message",
				Arguments: sessionIndexArguments(),
				Action:    r.ChatDeleteMessage,
			},
			{
				Name:      "delete-session",
				Usage:     "Delete a session",
				Arguments: []cli.Argument{&cli.StringArg{Name: "session"}},
				Action:    r.ChatDeleteSession,
			},
		},
	}
}

// tasksCommand handles backend tasks
func tasksCommand(r *Runner) *cli.Command {
	compact := func() cli.Flag {
		return &cli.BoolFlag{
			Name:  "compact",
			Usage: "Print compact JSON",
		}
	}

	return &cli.Command{
		Name:  "tasks",
		Usage: "Inspect and control backend tasks",
		Commands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Show the backend health report",
				Flags:  []cli.Flag{compact()},
				Action: r.TasksHealth,
			},
			{
				Name:   "list",
				Usage:  "List tasks, newest first",
				Flags:  outputFlags(),
				Action: r.TasksList,
			},
			{
				Name:      "run",
				Usage:     "Start a task",
				Arguments: []cli.Argument{&cli.StringArg{Name: "task"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "args",
						Usage: "Task arguments",
					},
				},
				Action: r.TasksRun,
			},
			{
				Name:      "stop",
				Usage:     "Stop a running task",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.TasksStop,
			},
			{
				Name:   "schedule",
				Usage:  "Show the cron table",
				Flags:  []cli.Flag{compact()},
				Action: r.TasksSchedule,
			},
			{
				Name:   "watch",
				Usage:  "Follow task changes and report failures",
				Action: r.TasksWatch,
			},
		},
	}
}

// exportCommand handles bulk exports
func exportCommand(r *Runner) *cli.Command {
	outputDir := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory (default: timestamped directory)",
		}
	}
	format := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "json, csv, markdown or txt (default from config)",
		}
	}

	return &cli.Command{
		Name:  "export",
		Usage: "Export feeds and chat transcripts",
		Commands: []*cli.Command{
			{
				Name:  "feed",
				Usage: "Export the history and recommend feeds",
				Flags: []cli.Flag{
					outputDir(),
					format(),
					&cli.StringSliceFlag{
						Name:  "feed",
						Usage: "Feed to export (repeatable, default history and recommend)",
					},
					&cli.IntFlag{
						Name:  "pages",
						Usage: "Page cap per feed (default from config)",
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Page requests per second (default from config)",
					},
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Recommend depth",
						Value: 1,
					},
				},
				Action: r.ExportFeed,
			},
			{
				Name:      "chat",
				Usage:     "Export chat transcripts",
				ArgsUsage: "[session...]",
				Flags: []cli.Flag{
					outputDir(),
					format(),
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Concurrent workers",
						Value:   4,
					},
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Export cached transcripts without contacting the server",
					},
				},
				Action: r.ExportChats,
			},
		},
	}
}

// cacheCommand handles the local cache
func cacheCommand(r *Runner) *cli.Command {
	limit := func() cli.Flag {
		return &cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum rows",
			Value:   50,
		}
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the local cache",
		Commands: []*cli.Command{
			{
				Name:  "items",
				Usage: "List cached galleries",
				Flags: withOutput(
					limit(),
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Only this feed",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Only this category",
					},
					&cli.BoolFlag{
						Name:  "disliked",
						Usage: "Only disliked galleries",
					},
				),
				Action: r.CacheItems,
			},
			{
				Name:   "sessions",
				Usage:  "List cached chat sessions",
				Flags:  withOutput(limit()),
				Action: r.CacheSessions,
			},
			{
				Name:   "stats",
				Usage:  "Count cached galleries per feed",
				Flags:  outputFlags(),
				Action: r.CacheStats,
			},
			{
				Name:  "clear",
				Usage: "Remove cached galleries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Only this feed",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// apiCommand handles raw API requests
func apiCommand(r *Runner) *cli.Command {
	pathArg := func() []cli.Argument { return []cli.Argument{&cli.StringArg{Name: "path"}} }
	raw := func() cli.Flag {
		return &cli.BoolFlag{
			Name:  "json",
			Usage: "Output compact JSON",
		}
	}
	data := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "data",
			Aliases: []string{"d"},
			Usage:   "JSON request body",
		}
	}

	return &cli.Command{
		Name:  "api",
		Usage: "Send raw requests to the API",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a path relative to the base URL",
				Arguments: pathArg(),
				Flags:     []cli.Flag{raw()},
				Action:    r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "POST a JSON body",
				Arguments: pathArg(),
				Flags:     []cli.Flag{raw(), data()},
				Action:    r.APIPost,
			},
			{
				Name:      "delete",
				Usage:     "DELETE a path",
				Arguments: pathArg(),
				Flags:     []cli.Flag{raw(), data()},
				Action:    r.APIDelete,
			},
		},
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch the interactive terminal UI",
		Action: r.TUI,
	}
}
