package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const shellHelp = "Available commands: help, domains, domain add|rm, add, rm, get, default, types, unlock, exit"

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run an interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.repl(cmd)
		},
	}
}

// repl runs the interactive shell loop. Each line is run as a client command
// against the already loaded model.
func (a *app) repl(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Type 'help' for a list of commands.")

	for {
		line, ok, err := a.console.ReadLine("credkeeper> ")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out)
			return nil
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "help":
			fmt.Fprintln(out, shellHelp)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye")
			return nil
		case "shell":
			fmt.Fprintln(out, "Already in the shell.")
		default:
			sub := newRootCmd(a)
			sub.SetOut(out)
			sub.SetErr(out)
			sub.SetArgs(args)
			if err := sub.ExecuteContext(cmd.Context()); err != nil {
				fmt.Fprintln(out, "Error:", err)
			}
		}

		if err := cmd.Context().Err(); err != nil {
			return nil
		}
	}
}
