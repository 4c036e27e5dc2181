package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Read tasks from stdin, recording one trajectory per task",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		env, err := setup(ctx)
		if err != nil {
			return err
		}
		defer env.shutdown()

		fmt.Println("Enter a task per line. Type 'exit' or press Ctrl-D to quit.")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			task := strings.TrimSpace(scanner.Text())
			if task == "" {
				continue
			}
			if task == "exit" || task == "quit" {
				break
			}

			result, err := env.runTask(ctx, task)
			if result != nil && result.TrajectoryTarget != "" {
				fmt.Printf("trajectory saved to %s\n", result.TrajectoryTarget)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(os.Stderr, "task failed: %v\n", err)
				continue
			}
			fmt.Println(result.FinalResult)
		}
		return scanner.Err()
	},
}
