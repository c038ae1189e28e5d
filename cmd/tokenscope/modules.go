package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokenscope/internal/binding"
	"github.com/samcharles93/tokenscope/internal/bootstrap"
)

func modulesCmd() *cli.Command {
	return &cli.Command{
		Name:  "modules",
		Usage: "List tokenizer modules and the detected load strategy",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("strategy: %s\n", bootstrap.Detect())
			for _, name := range binding.Names() {
				mod, err := binding.Lookup(name)
				if err != nil {
					return err
				}
				artifact := mod.Artifact()
				if artifact == "" {
					artifact = "(built in)"
				}
				marker := " "
				if name == moduleName {
					marker = "*"
				}
				fmt.Printf("%s %-10s %s\n", marker, name, artifact)
			}
			return nil
		},
	}
}
