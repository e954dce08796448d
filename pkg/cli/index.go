package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/vectorstore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Manage the document vector store",
		Commands: []*cli.Command{
			indexAddCommand(),
			indexQueryCommand(),
			indexClearCommand(),
			indexStatsCommand(),
		},
	}
}

func indexAddCommand() *cli.Command {
	var (
		cfg      config
		filePath string
		source   string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "YAML batch of documents to add",
			Destination: &filePath,
		},
		&cli.StringFlag{
			Name:        "source",
			Usage:       "Value of the source metadata field for documents given as arguments",
			Destination: &source,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:      "add",
		Usage:     "Embed and append documents",
		ArgsUsage: "[text...]",
		Flags:     flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			var docs []model.Document
			if filePath != "" {
				f, err := os.Open(filePath)
				if err != nil {
					return goerr.Wrap(err, "failed to open document batch", goerr.V("path", filePath))
				}
				defer f.Close()

				batch, err := vectorstore.LoadBatch(f)
				if err != nil {
					return goerr.Wrap(err, "failed to load document batch", goerr.V("path", filePath))
				}
				docs = append(docs, batch...)
			}

			for _, text := range c.Args().Slice() {
				if strings.TrimSpace(text) == "" {
					continue
				}
				doc := model.Document{Text: text}
				if source != "" {
					doc.Metadata = map[string]any{"source": source}
				}
				docs = append(docs, doc)
			}

			if len(docs) == 0 {
				return goerr.New("no documents given, pass texts or --file")
			}

			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			if err := store.AddDocuments(ctx, docs); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Added %d documents (total %d)\n", len(docs), store.Len())
			return nil
		}),
	}
}

func indexQueryCommand() *cli.Command {
	var (
		cfg  config
		topK int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Aliases:     []string{"k"},
			Usage:       "Number of documents to return",
			Value:       3,
			Destination: &topK,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:      "query",
		Usage:     "Find documents similar to a text",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return goerr.New("query text is required")
			}

			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}

			docs, err := store.Query(ctx, text, int(topK))
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, docs)
		}),
	}
}

func indexClearCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every document from the vector store",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}
			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			// A corrupted pair can still be cleared
			store, err := vectorstore.New(embedder, storage)
			if err != nil {
				return err
			}
			if err := store.Clear(ctx); err != nil {
				return err
			}

			fmt.Fprintln(c.Root().Writer, "Vector store cleared")
			return nil
		}),
	}
}

func indexStatsCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Show vector store statistics",
		Flags: flags,
		Action: action(&cfg, func(ctx context.Context, c *cli.Command) error {
			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}

			return printJSON(c.Root().Writer, map[string]any{
				"documents":       store.Len(),
				"dimension":       vectorstore.Dimension,
				"embedding_model": store.Model(),
			})
		}),
	}
}
