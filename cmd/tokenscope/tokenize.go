package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokenscope/internal/logger"
	"github.com/samcharles93/tokenscope/internal/session"
)

func tokenizeCmd() *cli.Command {
	var (
		source  string
		asJSON  bool
		showRaw bool
	)

	return &cli.Command{
		Name:      "tokenize",
		Usage:     "Tokenize text and print each token",
		ArgsUsage: "TEXT...",
		Flags: []cli.Flag{
			sourceFlag(&source),
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the result as JSON",
				Destination: &asJSON,
			},
			&cli.BoolFlag{
				Name:        "raw",
				Usage:       "include the raw vocabulary token in the table",
				Value:       true,
				Destination: &showRaw,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applySourceConfig(cmd, configFromContext(ctx), &source)

			text := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("no text given")
			}

			a, err := newApp(log, true)
			if err != nil {
				return err
			}
			if _, err := a.ctrl.LoadTokenizer(ctx, resolveSource(source)); err != nil {
				return fmt.Errorf("%s", session.Message(err))
			}
			res, err := a.ctrl.Tokenize(ctx, text)
			if err != nil {
				return fmt.Errorf("%s", session.Message(err))
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printResult(os.Stdout, res, showRaw)
		},
	}
}

func printResult(w io.Writer, res *session.Result, showRaw bool) error {
	if _, err := fmt.Fprintf(w, "decoded: %q\n", res.Decoded); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if showRaw {
		_, _ = fmt.Fprintln(tw, "#\tID\tRAW\tDECODED")
	} else {
		_, _ = fmt.Fprintln(tw, "#\tID\tDECODED")
	}
	for i, tok := range res.Tokens {
		if showRaw {
			_, _ = fmt.Fprintf(tw, "%d\t%d\t%q\t%q\n", i, tok.ID, tok.Raw, tok.Decoded)
		} else {
			_, _ = fmt.Fprintf(tw, "%d\t%d\t%q\n", i, tok.ID, tok.Decoded)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "total tokens: %d  total length: %d\n", len(res.Tokens), res.InputLength)
	return err
}
