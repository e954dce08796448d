package cli

import (
	"context"

	"github.com/inflect-gtm/inflect/pkg/usecase/followup"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Read and write Google Calendar events",
		Commands: []*cli.Command{
			eventsListCommand(),
			eventsAddCommand(),
		},
	}
}

func eventsListCommand() *cli.Command {
	var (
		cfg        config
		maxResults int64
	)
	tools := newCollaborators()

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "max",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of upcoming events",
			Value:       3,
			Destination: &maxResults,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, googleFlags(&cfg)...)
	flags = append(flags, tools.calendar.Flags()...)

	return &cli.Command{
		Name:  "list",
		Usage: "List upcoming events",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			tools.calendar.Enable()
			set, err := tools.build(ctx, &cfg)
			if err != nil {
				return err
			}
			cal, err := set.RequireCalendar()
			if err != nil {
				return err
			}

			events, err := cal.ListUpcomingEvents(ctx, int(maxResults))
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, events)
		}),
	}
}

func eventsAddCommand() *cli.Command {
	var (
		cfg       config
		inputPath string
		attendees []string
	)
	tools := newCollaborators()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Meeting log file; stdin when omitted",
			Destination: &inputPath,
		},
		&cli.StringSliceFlag{
			Name:        "attendee",
			Aliases:     []string{"a"},
			Usage:       "Attendee email address (repeatable)",
			Destination: &attendees,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, googleFlags(&cfg)...)
	flags = append(flags, tools.calendar.Flags()...)

	return &cli.Command{
		Name:  "add",
		Usage: "Create a calendar event from a meeting log",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			log, err := readInput(inputPath, c.Root().Reader)
			if err != nil {
				return err
			}

			llm, err := cfg.newLLM(ctx)
			if err != nil {
				return err
			}
			tools.calendar.Enable()
			set, err := tools.build(ctx, &cfg)
			if err != nil {
				return err
			}
			cal, err := set.RequireCalendar()
			if err != nil {
				return err
			}

			parsed, err := followup.New(llm).ParseMeetingLog(ctx, log)
			if err != nil {
				return err
			}
			if parsed.Failed() {
				return goerr.Wrap(followup.ErrMeetingParse, parsed.Failure.Error,
					goerr.V("raw_response", parsed.Failure.RawResponse))
			}

			event, err := cal.AddEvent(ctx, parsed.Meeting, attendees)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, event)
		}),
	}
}
