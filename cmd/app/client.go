package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/starford/maelstrom/internal"
	"github.com/starford/maelstrom/internal/apperr"
	"github.com/starford/maelstrom/internal/citation"
	"github.com/starford/maelstrom/internal/insight"
	"github.com/starford/maelstrom/internal/models"
	"github.com/starford/maelstrom/internal/noteservice"
)

func newClient(cmd *cli.Command) (*internal.Client, error) {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return nil, err
	}
	return internal.NewClient(cfg, internal.NewClientLogger(os.Stderr, cfg.App.LogLevel))
}

func colorOutput() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func noteCommand() *cli.Command {
	return &cli.Command{
		Name:      "note",
		Usage:     "Capture a note; it is queued locally when the server is unreachable",
		ArgsUsage: "<text...>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			text := strings.Join(cmd.Args().Slice(), " ")
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			c.Prober.Check(ctx)

			res, err := c.Capturer.Submit(ctx, text)
			if err != nil {
				return err
			}
			if res.Queued {
				fmt.Printf("Saved offline. %d note(s) waiting to sync.\n", c.Queue.PendingCount())
				return nil
			}
			fmt.Println("Saved.")
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Deliver queued notes to the server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if !c.Prober.Check(ctx) {
				fmt.Printf("Offline. %d note(s) waiting.\n", c.Queue.PendingCount())
				return nil
			}
			rep := c.Capturer.Sync(ctx)
			if rep.Skipped {
				fmt.Printf("Sync skipped. %d note(s) waiting.\n", c.Queue.PendingCount())
				return nil
			}
			fmt.Printf("Synced %d note(s), %d still waiting.\n", rep.Synced, c.Queue.PendingCount())
			return nil
		},
	}
}

func pendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "List notes waiting to sync",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "Discard every queued note"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("clear") {
				n := c.Queue.PendingCount()
				c.Queue.ClearAll()
				fmt.Printf("Discarded %d note(s).\n", n)
				return nil
			}
			pending := c.Queue.ListPending()
			if len(pending) == 0 {
				fmt.Println("Nothing waiting.")
				return nil
			}
			for _, p := range pending {
				fmt.Printf("%s  %s  %s\n", p.CreatedAt.Local().Format(time.DateTime), p.ID, p.Content)
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stay running: probe the server and sync queued notes on every reconnect",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			unsubscribe := c.Monitor.Subscribe(func(online bool) {
				if online {
					fmt.Println("Online.")
				} else {
					fmt.Println("Offline. Notes will be queued.")
				}
			})
			defer unsubscribe()

			return c.Watch(ctx, func(pending int) {
				fmt.Printf("%d note(s) waiting to sync.\n", pending)
			})
		},
	}
}

func insightCommand() *cli.Command {
	return &cli.Command{
		Name:  "insight",
		Usage: "Generate and read undercurrents",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate an undercurrent from recent notes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "timeframe",
						Aliases: []string{"t"},
						Usage:   strings.Join(insight.TimeframeNames(), ", "),
						Value:   string(insight.TimeframeAll),
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := newClient(cmd)
					if err != nil {
						return err
					}
					u, err := c.Remote.Generate(ctx, insight.ParseTimeframe(cmd.String("timeframe")))
					if err != nil {
						if errors.Is(err, apperr.ErrInsufficientData) {
							fmt.Println(insight.InsufficientDataMessage)
							return nil
						}
						return err
					}
					printInsight(*u)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List undercurrents, newest first",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := newClient(cmd)
					if err != nil {
						return err
					}
					list, err := c.Remote.Undercurrents(ctx)
					if err != nil {
						return err
					}
					color := colorOutput()
					for _, u := range list {
						summary := citation.Terminal(citation.Render(u.SummaryText, u.NotesIncluded, nil), color)
						fmt.Printf("%s  %s\n  %s\n", u.CreatedAt.Local().Format(time.DateTime), u.ID, summary)
					}
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Show an undercurrent, or the notes behind one of its citations",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "cite", Usage: "Show the notes behind citation [n]"},
					&cli.IntFlag{Name: "question", Aliases: []string{"q"}, Usage: "Resolve --cite within question n instead of the summary"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return errors.New("undercurrent id is required")
					}
					c, err := newClient(cmd)
					if err != nil {
						return err
					}
					u, err := c.Remote.Undercurrent(ctx, id)
					if err != nil {
						return err
					}
					n := int(cmd.Int("cite"))
					if n == 0 {
						printInsight(*u)
						return nil
					}
					return showCitation(ctx, c, *u, int(cmd.Int("question")), n)
				},
			},
		},
	}
}

func printInsight(u models.Undercurrent) {
	color := colorOutput()
	r := citation.RenderInsight(u, nil)

	fmt.Printf("%s  %s\n\n", u.CreatedAt.Local().Format(time.DateTime), u.ID)
	fmt.Println(citation.Terminal(r.Summary, color))
	if len(r.Questions) > 0 {
		fmt.Println()
	}
	for i, q := range r.Questions {
		fmt.Printf("%d. %s\n", i+1, citation.Terminal(q, color))
	}
	if len(u.SentimentColors) > 0 {
		fmt.Printf("\n%s\n", strings.Join(u.SentimentColors, " "))
	}
}

func showCitation(ctx context.Context, c *internal.Client, u models.Undercurrent, question, n int) error {
	var cited []string
	r := citation.RenderInsight(u, func(noteIDs []string) { cited = noteIDs })

	segments := r.Summary
	if question > 0 {
		if question > len(r.Questions) {
			return fmt.Errorf("undercurrent has %d question(s)", len(r.Questions))
		}
		segments = r.Questions[question-1]
	}
	seg, ok := citation.Find(segments, n)
	if !ok {
		return fmt.Errorf("no citation [%d]", n)
	}
	seg.Activate()

	notes, err := c.Remote.NotesByIDs(ctx, cited)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			fmt.Println(noteservice.MissingNotesMessage)
			return nil
		}
		return err
	}
	for _, note := range notes {
		fmt.Printf("%s  %s\n", note.CreatedAt.Local().Format(time.DateTime), note.Content)
	}
	return nil
}
