// Command smemo is the CLI front end for a single smemo node: it joins a
// room, performs one operation against it, and exits. Each invocation is
// its own short-lived gossip participant rather than a background daemon.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "smemo",
	Short: "Shared memory overlay for collaborating agents",
}

func init() {
	rootCmd.AddCommand(ticketCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(leaveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(publishSkillCmd)
	rootCmd.AddCommand(searchSkillsCmd)
	rootCmd.AddCommand(voteSkillCmd)
	rootCmd.AddCommand(delegateCmd)
	rootCmd.AddCommand(tasksCmd)
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
