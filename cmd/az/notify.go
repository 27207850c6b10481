package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/azedarach/azedarach/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify <event> <task-id>",
	Short: "Write a signal file informing the running coordinator of an event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return notify.Write(args[1], args[0], time.Now())
	},
}
