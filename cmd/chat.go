package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rag-chatbot/internal/helper"
)

// writerSink prints fragments as they stream in.
type writerSink struct {
	w io.Writer
}

func (s writerSink) Context(grounded bool) error {
	if !grounded {
		_, err := fmt.Fprintln(s.w, "(no matching documents; answering from general knowledge)")
		return err
	}
	return nil
}

func (s writerSink) Fragment(text string) error {
	_, err := io.WriteString(s.w, text)
	return err
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question grounded in the owner's documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if _, err := a.rag.Ask(cmd.Context(), ownerID, strings.Join(args, " "), writerSink{w: out}); err != nil {
			return err
		}
		_, err = fmt.Fprintln(out)
		return err
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show an owner's chat history, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		turns, err := a.store.ListTurns(cmd.Context(), ownerID, historyLimit)
		if err != nil {
			return err
		}
		helper.PrettyPrint(cmd.OutOrStdout(), turns)
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize an owner's chat history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.store.TurnStats(cmd.Context(), ownerID)
		if err != nil {
			return err
		}
		helper.PrettyPrint(cmd.OutOrStdout(), stats)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete [chat-id]",
	Short: "Delete one chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q", args[0])
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.DeleteTurn(cmd.Context(), ownerID, id); err != nil {
			return err
		}
		cmd.Printf("Deleted chat %d\n", id)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete an owner's whole chat history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.ClearTurns(cmd.Context(), ownerID)
		if err != nil {
			return err
		}
		cmd.Printf("Deleted %d chats\n", n)
		return nil
	},
}

func init() {
	requireOwner(askCmd)

	historyCmd.PersistentFlags().StringVarP(&ownerID, "owner", "o", "", "owner (user) id")
	_ = historyCmd.MarkPersistentFlagRequired("owner")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum number of chats")
	historyCmd.AddCommand(historyStatsCmd, historyDeleteCmd, historyClearCmd)

	rootCmd.AddCommand(askCmd, historyCmd)
}
