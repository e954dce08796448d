package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const defaultEnvFile = ".env"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	if err := loadEnvFile(argv); err != nil {
		return &Error{Code: 1, Message: err.Error()}
	}

	cmd := &cli.Command{
		Name:  "inflect",
		Usage: "Go-to-market agents and meeting follow-up drafting",
		Commands: []*cli.Command{
			indexCommand(),
			parseCommand(),
			eventsCommand(),
			followupCommand(),
			customersCommand(),
			segmentCommand(),
			onboardCommand(),
			postDemoCommand(),
			statusCommand(),
			chatCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// loadEnvFile reads --env-file (or ./.env when present) into the process
// environment before flag sources are resolved. Existing variables win.
func loadEnvFile(argv []string) error {
	path, explicit := "", false
	for i, arg := range argv {
		switch {
		case arg == "--env-file" && i+1 < len(argv):
			path, explicit = argv[i+1], true
		case strings.HasPrefix(arg, "--env-file="):
			path, explicit = strings.TrimPrefix(arg, "--env-file="), true
		}
	}

	if !explicit {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		return goerr.Wrap(err, "failed to load env file", goerr.V("path", path))
	}
	return nil
}

// action sets up logging from cfg before running fn
func action(cfg *config, fn cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		ctx, err := cfg.setupLogger(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, c)
	}
}

// withSpinner shows progress on stderr while fn runs
func withSpinner(message string, fn func() error) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	s.Start()
	defer s.Stop()
	return fn()
}

// readInput returns the content of path, or stdin when path is empty or "-"
func readInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", goerr.Wrap(err, "failed to read input", goerr.V("path", path))
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", goerr.New("input is empty", goerr.V("path", path))
	}
	return text, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to write JSON output")
	}
	return nil
}
