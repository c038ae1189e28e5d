package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokenscope/internal/logger"
	"github.com/samcharles93/tokenscope/internal/session"
)

func replCmd() *cli.Command {
	var source string

	return &cli.Command{
		Name:  "repl",
		Usage: "Load a tokenizer once and tokenize each input line",
		Flags: []cli.Flag{sourceFlag(&source)},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applySourceConfig(cmd, configFromContext(ctx), &source)

			a, err := newApp(log, true)
			if err != nil {
				return err
			}
			if _, err := a.ctrl.LoadTokenizer(ctx, resolveSource(source)); err != nil {
				return fmt.Errorf("%s", session.Message(err))
			}
			prompt := ""
			if isTerminal(os.Stdin) {
				prompt = "> "
				_, _ = fmt.Fprintln(os.Stdout, "Enter text to tokenize. :load <source> switches tokenizer, :quit exits.")
			}
			return runREPL(ctx, a.ctrl, os.Stdin, os.Stdout, prompt)
		},
	}
}

func runREPL(ctx context.Context, ctrl *session.Controller, in io.Reader, out io.Writer, prompt string) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for {
		_, _ = fmt.Fprint(out, prompt)
		if !sc.Scan() {
			return sc.Err()
		}
		line := sc.Text()
		switch cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " "); cmd {
		case ":quit", ":q":
			return nil
		case ":load":
			if _, err := ctrl.LoadTokenizer(ctx, arg); err != nil {
				_, _ = fmt.Fprintln(out, session.Message(err))
				continue
			}
			_, _ = fmt.Fprintf(out, "loaded %s\n", strings.TrimSpace(arg))
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		res, err := ctrl.Tokenize(ctx, line)
		if err != nil {
			_, _ = fmt.Fprintln(out, session.Message(err))
			continue
		}
		if err := printResult(out, res, true); err != nil {
			return err
		}
	}
}
