package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <user>",
	Short: "Deduplicate near-identical memories for a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runConsolidate(args[0])
	},
}

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run one confidence-decay pass over every memory",
	Run: func(cmd *cobra.Command, args []string) {
		runDecay()
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete memories whose confidence has decayed below the prune threshold",
	Run: func(cmd *cobra.Command, args []string) {
		runPrune()
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <user>",
	Short: "Show a user's static profile and dynamic context",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runContext(args[0])
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph-wide node/edge statistics",
	Run: func(cmd *cobra.Command, args []string) {
		runStats()
	},
}

func init() {
	rootCmd.AddCommand(consolidateCmd, decayCmd, pruneCmd, contextCmd, statsCmd)
}

func runConsolidate(userID string) {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	merged, err := eng.ConsolidateMemories(ctx, userID)
	if err != nil {
		fatalf("consolidating: %v", err)
	}
	fmt.Printf("Merged %d duplicate memories for %s\n", merged, userID)
}

func runDecay() {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	updated, err := eng.ProcessDecay(ctx)
	if err != nil {
		fatalf("running decay: %v", err)
	}
	fmt.Printf("Decayed %d memories\n", updated)
}

func runPrune() {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	pruned, err := eng.PruneMemories(ctx)
	if err != nil {
		fatalf("pruning: %v", err)
	}
	fmt.Printf("Pruned %d memories below the confidence threshold\n", pruned)
}

func runContext(userID string) {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	uc, err := eng.GetUserContext(ctx, userID)
	if err != nil {
		fatalf("fetching context: %v", err)
	}

	fmt.Printf("Static profile (%d facts):\n", len(uc.Static))
	for _, m := range uc.Static {
		fmt.Printf("  - %s\n", m.Content)
	}
	fmt.Printf("\nDynamic context (%d items):\n", len(uc.Dynamic))
	for _, m := range uc.Dynamic {
		fmt.Printf("  - %s\n", m.Content)
	}
}

func runStats() {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	stats, err := eng.GetStats(ctx)
	if err != nil {
		fatalf("fetching stats: %v", err)
	}
	fmt.Printf("Nodes:          %d\n", stats.NodeCount)
	fmt.Printf("Edges:          %d\n", stats.EdgeCount)
	fmt.Printf("Mean out-degree: %.2f\n", stats.MeanOutDegree)
}
