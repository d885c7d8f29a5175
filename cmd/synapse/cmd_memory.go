package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synapsegraph/synapse/internal/store"
	"github.com/synapsegraph/synapse/pkg/synapse"
)

var (
	addUserID      string
	addImportance  float64
	addTags        []string
	addContainers  []string
	searchUserID   string
	searchLimit    int
	searchTags     []string
	updateContent  string
	updateImp      float64
	updateImpIsSet bool
)

var addCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Store a new memory",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAdd(strings.Join(args, " "))
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run hybrid retrieval over a user's memories",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSearch(strings.Join(args, " "))
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a memory by id",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runGet(args[0])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's memories",
	Run: func(cmd *cobra.Command, args []string) {
		runList()
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a memory's content or importance",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runUpdate(args[0])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft-delete a memory (sets confidence to 0; a later prune removes it)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runDelete(args[0])
	},
}

func init() {
	rootCmd.AddCommand(addCmd, searchCmd, getCmd, listCmd, updateCmd, deleteCmd)

	addCmd.Flags().StringVar(&addUserID, "user", "", "owning user id (required)")
	addCmd.Flags().Float64Var(&addImportance, "importance", 0.5, "importance in [0,1]")
	addCmd.Flags().StringSliceVar(&addTags, "entities", nil, "comma-separated entities")
	addCmd.Flags().StringSliceVar(&addContainers, "tags", nil, "comma-separated container tags")
	addCmd.MarkFlagRequired("user")

	searchCmd.Flags().StringVar(&searchUserID, "user", "", "owning user id (required)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().StringSliceVar(&searchTags, "tags", nil, "filter by container tags")
	searchCmd.MarkFlagRequired("user")

	listCmd.Flags().StringVar(&searchUserID, "user", "", "owning user id (required)")
	listCmd.MarkFlagRequired("user")

	updateCmd.Flags().StringVar(&updateContent, "content", "", "new content (re-embeds if changed)")
	updateCmd.Flags().Float64Var(&updateImp, "importance", 0, "new importance in [0,1]")
}

func runAdd(content string) {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	m, err := eng.Add(ctx, synapse.AddOptions{
		UserID:        addUserID,
		Content:       content,
		Importance:    addImportance,
		Entities:      addTags,
		ContainerTags: addContainers,
		Source:        store.SourceUserInput,
	})
	if err != nil {
		fatalf("storing memory: %v", err)
	}

	fmt.Printf("Stored memory %s\n", m.ID)
	fmt.Printf("  content:    %s\n", m.Content)
	fmt.Printf("  static:     %v\n", m.IsStatic)
	fmt.Printf("  importance: %.2f\n", m.Importance)
}

func runSearch(query string) {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	results, err := eng.Search(ctx, synapse.SearchOptions{
		UserID:        searchUserID,
		Query:         query,
		Limit:         searchLimit,
		ContainerTags: searchTags,
	})
	if err != nil {
		fatalf("searching: %v", err)
	}

	if len(results) == 0 {
		fmt.Println("No matching memories.")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s\n", i+1, r.Score, r.Memory.Content)
		fmt.Printf("   id: %s | static: %v | last accessed: %s\n", r.Memory.ID, r.Memory.IsStatic, r.Memory.LastAccessed.Format("2006-01-02 15:04"))
	}
}

func runGet(id string) {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	m, err := eng.Get(ctx, id)
	if err != nil {
		fatalf("fetching memory: %v", err)
	}

	fmt.Printf("id:            %s\n", m.ID)
	fmt.Printf("content:       %s\n", m.Content)
	fmt.Printf("confidence:    %.3f\n", m.Confidence)
	fmt.Printf("importance:    %.2f\n", m.Importance)
	fmt.Printf("static:        %v\n", m.IsStatic)
	fmt.Printf("latest:        %v\n", m.IsLatest)
	fmt.Printf("access count:  %d\n", m.AccessCount)
	fmt.Printf("created:       %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
	if len(m.Entities) > 0 {
		fmt.Printf("entities:      %s\n", strings.Join(m.Entities, ", "))
	}
}

func runList() {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	memories, err := eng.ListByUser(ctx, searchUserID)
	if err != nil {
		fatalf("listing memories: %v", err)
	}

	fmt.Printf("%d memories for %s\n\n", len(memories), searchUserID)
	for i, m := range memories {
		fmt.Printf("%d. %s\n", i+1, m.Content)
		fmt.Printf("   id: %s | static: %v | confidence: %.2f\n", m.ID, m.IsStatic, m.Confidence)
	}
}

func runUpdate(id string) {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	opts := synapse.UpdateOptions{ID: id, Content: updateContent}
	if updateImp > 0 {
		opts.Importance = &updateImp
	}

	m, err := eng.Update(ctx, opts)
	if err != nil {
		fatalf("updating memory: %v", err)
	}
	fmt.Printf("Created %s as an update to %s\n", m.ID, id)
	fmt.Printf("  content:    %s\n", m.Content)
	fmt.Printf("  importance: %.2f\n", m.Importance)
}

func runDelete(id string) {
	ctx := context.Background()
	eng, _, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(ctx)

	if err := eng.Delete(ctx, id); err != nil {
		fatalf("deleting memory: %v", err)
	}
	fmt.Printf("Soft-deleted memory %s (confidence set to 0)\n", id)
}
