package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Upload and index documents for an owner",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		uploads := make([]ingest.Upload, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			uploads = append(uploads, ingest.Upload{Filename: path, Data: data})
		}

		results, err := a.docs.IngestMany(cmd.Context(), ownerID, uploads)
		if err != nil {
			return err
		}
		helper.PrettyPrint(cmd.OutOrStdout(), results)

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(results))
		}
		return nil
	},
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List an owner's documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.docs.List(cmd.Context(), ownerID)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			cmd.Println("No documents.")
			return nil
		}
		for _, d := range docs {
			cmd.Printf("%s  %-8s  %4d chunks  %s\n", d.ID, d.Status, d.TotalChunks, d.Filename)
		}
		return nil
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document, its stored file and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.docs.Delete(cmd.Context(), ownerID, args[0]); err != nil {
			return err
		}
		cmd.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	requireOwner(ingestCmd)
	documentsCmd.PersistentFlags().StringVarP(&ownerID, "owner", "o", "", "owner (user) id")
	_ = documentsCmd.MarkPersistentFlagRequired("owner")
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(ingestCmd, documentsCmd)
}
