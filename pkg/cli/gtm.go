package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/inflect-gtm/inflect/pkg/agent"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/usecase/gtm"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// gtmDeps bundles what every GTM agent command builds
type gtmDeps struct {
	uc    *gtm.UseCase
	close func()
}

func (cfg *config) newGTM(ctx context.Context, tools *collaborators, opts ...gtm.Option) (*gtmDeps, error) {
	llm, err := cfg.newLLM(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := cfg.newProfiles()
	if err != nil {
		return nil, err
	}
	repo, closeRepo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, err
	}

	base := []gtm.Option{gtm.WithProfiles(profiles)}
	if tools != nil {
		set, err := tools.build(ctx, cfg)
		if err != nil {
			closeRepo()
			return nil, err
		}
		base = append(base, gtm.WithTools(set))
	}

	return &gtmDeps{
		uc:    gtm.New(llm, repo, append(base, opts...)...),
		close: closeRepo,
	}, nil
}

func customersCommand() *cli.Command {
	return &cli.Command{
		Name:  "customers",
		Usage: "Manage the customer list",
		Commands: []*cli.Command{
			customersFetchCommand(),
		},
	}
}

func customersFetchCommand() *cli.Command {
	var (
		cfg         config
		spreadsheet string
		rng         string
	)
	tools := newCollaborators()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "sheet",
			Aliases:     []string{"s"},
			Usage:       "Spreadsheet ID or title",
			Value:       "customer_info",
			Sources:     cli.EnvVars("INFLECT_CUSTOMER_SHEET"),
			Destination: &spreadsheet,
		},
		&cli.StringFlag{
			Name:        "range",
			Aliases:     []string{"r"},
			Usage:       "A1 range including the header row",
			Value:       "A1:F100",
			Sources:     cli.EnvVars("INFLECT_CUSTOMER_RANGE"),
			Destination: &rng,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, repositoryFlags(&cfg)...)
	flags = append(flags, googleFlags(&cfg)...)

	return &cli.Command{
		Name:  "fetch",
		Usage: "Load customers from Google Sheets into the workspace",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			tools.sheets.Enable()
			deps, err := cfg.newGTM(ctx, tools)
			if err != nil {
				return err
			}
			defer deps.close()

			customers, err := deps.uc.FetchCustomers(ctx, spreadsheet, rng)
			if err != nil {
				return err
			}

			for _, cust := range customers {
				fmt.Fprintf(c.Root().Writer, "%s\t%s\n", cust.ID, cust.Name())
			}
			fmt.Fprintf(c.Root().Writer, "Fetched %d customers\n", len(customers))
			return nil
		}),
	}
}

func segmentCommand() *cli.Command {
	var (
		cfg       config
		policyDir string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Directory of Rego segment policies; the LLM picks segments without it",
			Sources:     cli.EnvVars("INFLECT_SEGMENT_POLICY"),
			Destination: &policyDir,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, repositoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "segment",
		Usage: "Segment customers and draft a strategy per segment",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			engine, err := cfg.newPolicy(ctx, policyDir)
			if err != nil {
				return err
			}
			deps, err := cfg.newGTM(ctx, nil, gtm.WithPolicy(engine))
			if err != nil {
				return err
			}
			defer deps.close()

			var seg *model.Segmentation
			if err := withSpinner("Segmenting customers", func() error {
				seg, err = deps.uc.Segment(ctx)
				return err
			}); err != nil {
				return err
			}

			for _, s := range seg.Segments {
				fmt.Fprintf(c.Root().Writer, "[%s] %d customers\n  %s\n", s.Name, len(s.CustomerIDs), s.Strategy)
			}
			return nil
		}),
	}
}

func onboardCommand() *cli.Command {
	var (
		cfg     config
		publish bool
	)
	tools := newCollaborators()

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "publish",
			Usage:       "Create each document in Google Docs",
			Sources:     cli.EnvVars("INFLECT_PUBLISH_DOCS"),
			Destination: &publish,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, repositoryFlags(&cfg)...)
	flags = append(flags, googleFlags(&cfg)...)

	return &cli.Command{
		Name:  "onboard",
		Usage: "Write an onboarding document for every segment",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			if publish {
				tools.docs.Enable()
			}
			deps, err := cfg.newGTM(ctx, tools, gtm.WithPublishDocs(publish))
			if err != nil {
				return err
			}
			defer deps.close()

			var docs []*model.OnboardingDoc
			if err := withSpinner("Writing onboarding documents", func() error {
				docs, err = deps.uc.WriteOnboardingDocs(ctx)
				return err
			}); err != nil {
				return err
			}

			for _, doc := range docs {
				if doc.URL != "" {
					fmt.Fprintf(c.Root().Writer, "%s: %s\n", doc.Title, doc.URL)
					continue
				}
				fmt.Fprintf(c.Root().Writer, "## %s\n\n%s\n\n", doc.Title, doc.Body)
			}
			return nil
		}),
	}
}

func postDemoCommand() *cli.Command {
	var (
		cfg       config
		ff        followupFlags
		inputPath string
		to        []string
		dryRun    bool
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
			Name:        "to",
			Usage:       "Recipient address overriding the calendar attendees (repeatable)",
			Destination: &to,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Draft the email without sending it",
			Destination: &dryRun,
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
		Name:  "postdemo",
		Usage: "Draft and send the follow-up email after a product demo",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			log, err := readInput(inputPath, c.Root().Reader)
			if err != nil {
				return err
			}

			tools.calendar.Enable()
			if !dryRun {
				tools.gmail.Enable()
			}
			llm, err := cfg.newLLM(ctx)
			if err != nil {
				return err
			}
			set, err := tools.build(ctx, &cfg)
			if err != nil {
				return err
			}
			pipeline, err := cfg.newFollowup(ctx, llm, set, &ff, "")
			if err != nil {
				return err
			}

			deps, err := cfg.newGTM(ctx, nil, gtm.WithTools(set), gtm.WithFollowup(pipeline))
			if err != nil {
				return err
			}
			defer deps.close()

			var result *gtm.PostDemoResult
			if err := withSpinner("Drafting post-demo email", func() error {
				result, err = deps.uc.PostDemo(ctx, log, gtm.PostDemoInput{To: to, DryRun: dryRun})
				return err
			}); err != nil {
				return err
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "To: %s\nSubject: %s\n\n%s\n", strings.Join(result.To, ", "), result.Email.Subject, result.Email.Body)
			if result.Sent != nil {
				fmt.Fprintf(w, "\nSent (message %s)\n", result.Sent.MessageID)
			}
			return nil
		}),
	}
}

func statusCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, repositoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "status",
		Usage: "Summarize onboarding progress",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			deps, err := cfg.newGTM(ctx, nil)
			if err != nil {
				return err
			}
			defer deps.close()

			var summary string
			if err := withSpinner("Summarizing", func() error {
				summary, err = deps.uc.Status(ctx)
				return err
			}); err != nil {
				return err
			}

			fmt.Fprintln(c.Root().Writer, summary)
			return nil
		}),
	}
}

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, repositoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Ask the root agent about onboarding progress",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			deps, err := cfg.newGTM(ctx, nil)
			if err != nil {
				return err
			}
			defer deps.close()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdout:          c.Root().Writer,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start prompt")
			}
			defer rl.Close()

			session := deps.uc.NewSession()
			fmt.Fprintf(c.Root().Writer, "Chat session started with the %s agent. Type 'exit' to quit.\n", agent.Root)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "exit" {
					break
				}
				if message == "" {
					continue
				}

				answer, err := session.Send(ctx, message)
				if err != nil {
					return goerr.Wrap(err, "failed to send message")
				}
				fmt.Fprintf(c.Root().Writer, "%s\n", answer)
			}

			fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
			return nil
		}),
	}
}
