package main

import (
	"fmt"
	"os"

	"github.com/agileteam/vpbadge/internal/annotate"
	"github.com/agileteam/vpbadge/internal/config"
	"github.com/agileteam/vpbadge/internal/history"
	"github.com/agileteam/vpbadge/internal/report"
	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/session"
	"github.com/urfave/cli/v2"
)

var version = "dev"

// siteFlags are shared by every command that scans the site.
func siteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dist",
			Aliases: []string{"d"},
			Usage:   "VitePress build output directory (default " + models.DefaultDist + ")",
		},
		&cli.StringFlag{
			Name:  "src",
			Usage: "markdown source directory, read for frontmatter when page data is missing",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "number of pages processed concurrently",
		},
		&cli.StringFlag{
			Name:  "now",
			Usage: "evaluate expiry at this time instead of the clock (e.g. 2025-08-10)",
		},
	}
}

func historyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "db",
			Usage: "run history database (default " + models.DefaultHistoryPath + ")",
		},
		&cli.BoolFlag{
			Name:  "no-history",
			Usage: "do not record this run",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "vpbadge",
		Usage:   "Add expiring NEW/UPDATED/HOT/BETA badges to a built VitePress site",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (default ./" + models.DefaultConfigFile + " when present)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only log errors and skip the summary",
			},
			&cli.StringFlag{
				Name:  "color",
				Value: "auto",
				Usage: "auto, always or never",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "annotate",
				Usage:     "Annotate every page (or the given pages) once",
				ArgsUsage: "[PAGE...]",
				Flags: append(append(siteFlags(), historyFlags()...),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "decide badges without writing pages",
					},
				),
				Action: annotate.AnnotateAction,
			},
			{
				Name:  "watch",
				Usage: "Annotate the site and keep annotating it as it is rebuilt",
				Flags: append(append(siteFlags(), historyFlags()...),
					&cli.DurationFlag{
						Name:  "settle",
						Usage: fmt.Sprintf("wait this long after a change before annotating (default %s)", session.DefaultSettleDelay),
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "serve Prometheus metrics on this address, e.g. :9464",
					},
				),
				Action: annotate.WatchAction,
			},
			{
				Name:      "report",
				Usage:     "List every marker and its expiry decision without changing anything",
				ArgsUsage: "[PAGE...]",
				Flags: append(siteFlags(),
					&cli.BoolFlag{
						Name:  "expired",
						Usage: "only list markers whose badge has expired",
					},
				),
				Action: report.ReportAction,
			},
			{
				Name:  "history",
				Usage: "Show recorded runs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Usage: "run history database"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "number of runs to list"},
				},
				Action: history.ListAction,
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "Show the badges of a run (default: latest)",
						ArgsUsage: "[RUN_ID]",
						Flags:     []cli.Flag{&cli.StringFlag{Name: "db", Usage: "run history database"}},
						Action:    history.ShowAction,
					},
					{
						Name:  "prune",
						Usage: "Delete all but the newest runs",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "db", Usage: "run history database"},
							&cli.IntFlag{Name: "keep", Value: 50, Usage: "number of runs to keep"},
						},
						Action: history.PruneAction,
					},
				},
			},
			{
				Name:  "config",
				Usage: "Manage the config file",
				Subcommands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write a starter config file",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "path", Value: models.DefaultConfigFile, Usage: "where to write the file"},
							&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
						},
						Action: config.InitAction,
					},
					{
						Name:   "show",
						Usage:  "Print the effective configuration",
						Action: config.ShowAction,
					},
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
