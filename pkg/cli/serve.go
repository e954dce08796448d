package cli

import (
	"context"

	"github.com/inflect-gtm/inflect/pkg/agent"
	"github.com/inflect-gtm/inflect/pkg/service/mcp"
	"github.com/inflect-gtm/inflect/pkg/usecase/followup"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg       config
		ff        followupFlags
		transport string
		addr      string
	)
	tools := newCollaborators()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "transport",
			Aliases:     []string{"t"},
			Usage:       "MCP transport (stdio, http)",
			Value:       string(mcp.TransportStdio),
			Sources:     cli.EnvVars("INFLECT_MCP_TRANSPORT"),
			Destination: &transport,
		},
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address for the http transport",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("INFLECT_MCP_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, ff.flags()...)
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, googleFlags(&cfg)...)
	flags = append(flags, tools.flags()...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Expose retrieval and follow-up drafting as an MCP server",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
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

			store, err := cfg.openRetriever(ctx)
			if err != nil {
				return err
			}
			var retriever followup.Retriever
			if store != nil {
				retriever = store
			}

			logging.From(ctx).Info("starting MCP server",
				"transport", transport,
				"addr", addr,
				"search", retriever != nil)
			return mcp.NewServer(uc, retriever).Run(ctx, mcp.Transport(transport), addr)
		}),
	}
}
