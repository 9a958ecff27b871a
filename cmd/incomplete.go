package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wegman-software/osm-relation-assembler/internal/report"
)

var incompleteCmd = &cobra.Command{
	Use:   "incomplete <report-file>",
	Short: "Summarize a report written by \"assemble --report-file\"",
	Long: `Read an Arrow IPC report produced by a prior assemble run and print
the end-of-run memory stats, the number of relations that never completed,
and up to 50 of them, those with the most missing members first.`,
	Args: cobra.ExactArgs(1),
	Run:  runIncomplete,
}

func init() {
	rootCmd.AddCommand(incompleteCmd)
}

func runIncomplete(cmd *cobra.Command, args []string) {
	stats, rows, err := report.Read(args[0])
	if err != nil {
		exitWithError("failed to read report", err)
	}

	fmt.Println("Run stats:")
	for _, key := range []string{
		"relation_count",
		"member_meta_nodes",
		"member_meta_ways",
		"member_meta_relations",
		"relation_arena_bytes",
		"members_arena_bytes",
	} {
		if v, ok := stats[key]; ok {
			fmt.Printf("  %-22s %s\n", key+":", v)
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].NeedMembers > rows[j].NeedMembers })

	fmt.Printf("\nIncomplete relations: %d\n", len(rows))
	if len(rows) == 0 {
		return
	}
	fmt.Printf("%-15s %s\n", "relation_id", "still_missing")
	limit := len(rows)
	if limit > 50 {
		limit = 50
	}
	for _, row := range rows[:limit] {
		fmt.Printf("%-15d %d\n", row.RelationID, row.NeedMembers)
	}
	if len(rows) > limit {
		fmt.Printf("... and %d more\n", len(rows)-limit)
	}
}
