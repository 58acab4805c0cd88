package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ragCmd = &cobra.Command{
	Use:   "rag",
	Short: "Maintain the RAG store",
}

var ragPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune stale entries from the RAG store",
	RunE:  runRAGPrune,
}

var ragResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the RAG store, discarding all indexed content",
	RunE:  runRAGReset,
}

func init() {
	ragCmd.AddCommand(ragPruneCmd, ragResetCmd)
}

func runRAGPrune(cmd *cobra.Command, args []string) error {
	if err := rag.Prune(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("RAG store pruned")
	return nil
}

func runRAGReset(cmd *cobra.Command, args []string) error {
	if err := rag.ResetAll(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("RAG store reset")
	return nil
}
