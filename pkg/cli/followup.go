package cli

import (
	"context"
	"fmt"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/agent"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/tool"
	"github.com/inflect-gtm/inflect/pkg/usecase/followup"
	"github.com/inflect-gtm/inflect/pkg/usecase/gtm"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// newFollowup builds the pipeline from flags. The pipeline runs without
// retrieval when the vector store cannot be reached.
func (cfg *config) newFollowup(ctx context.Context, llm adapter.LLM, set *tool.Set, ff *followupFlags, name agent.Name) (*followup.UseCase, error) {
	opts, err := ff.options()
	if err != nil {
		return nil, err
	}

	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}
	opts = append(opts, followup.WithLocation(loc))

	if set != nil && set.Calendar != nil {
		opts = append(opts, followup.WithCalendar(set.Calendar))
	}

	store, err := cfg.openRetriever(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, followup.WithRetriever(store))
	}

	if name != "" {
		profiles, err := cfg.newProfiles()
		if err != nil {
			return nil, err
		}
		opts = append(opts, followup.WithGenerateOptions(profiles.Get(name).GenerateOptions()...))
	}

	return followup.New(llm, opts...), nil
}

func parseCommand() *cli.Command {
	var (
		cfg       config
		inputPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Meeting log file; stdin when omitted",
			Destination: &inputPath,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "parse",
		Usage: "Extract a structured record from a meeting log",
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

			var parsed *model.ParseResult
			if err := withSpinner("Parsing meeting log", func() error {
				parsed, err = followup.New(llm).ParseMeetingLog(ctx, log)
				return err
			}); err != nil {
				return err
			}

			if parsed.Failed() {
				return printJSON(c.Root().Writer, parsed.Failure)
			}
			return printJSON(c.Root().Writer, parsed.Meeting)
		}),
	}
}

func followupCommand() *cli.Command {
	var (
		cfg       config
		ff        followupFlags
		inputPath string
		asJSON    bool
		record    bool
	)
	tools := newCollaborators()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Meeting log file; stdin when omitted",
			Destination: &inputPath,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print every pipeline artifact as JSON",
			Destination: &asJSON,
		},
		&cli.BoolFlag{
			Name:        "record",
			Usage:       "Record the run in the workspace repository",
			Destination: &record,
		},
	}
	flags = append(flags, ff.flags()...)
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, repositoryFlags(&cfg)...)
	flags = append(flags, googleFlags(&cfg)...)
	flags = append(flags, tools.flags()...)

	return &cli.Command{
		Name:  "followup",
		Usage: "Draft a follow-up email from a meeting log",
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
			set, err := tools.build(ctx, &cfg)
			if err != nil {
				return err
			}
			uc, err := cfg.newFollowup(ctx, llm, set, &ff, agent.Followup)
			if err != nil {
				return err
			}

			var result *followup.Result
			if err := withSpinner("Drafting follow-up", func() error {
				result, err = uc.Run(ctx, log)
				return err
			}); err != nil {
				return goerr.Wrap(err, "follow-up pipeline failed")
			}

			if record {
				repo, closeRepo, err := cfg.newRepository(ctx)
				if err != nil {
					return err
				}
				defer closeRepo()
				if err := gtm.New(llm, repo).RecordRun(ctx, result); err != nil {
					return err
				}
			}

			if asJSON {
				return printJSON(c.Root().Writer, result)
			}

			if result.Degraded() {
				logging.From(ctx).Warn("follow-up drafted with partial context",
					"parse_failed", result.ParseFailure != nil,
					"calendar_error", result.CalendarError)
			}
			fmt.Fprintln(c.Root().Writer, result.Response)
			return nil
		}),
	}
}
