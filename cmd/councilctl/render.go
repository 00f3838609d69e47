package main

import (
	"fmt"
	"io"

	"github.com/llmcouncil/councilgo/pkg/models"
)

// printStages renders the per-model intermediate results that precede the
// final answer.
func printStages(w io.Writer, stage1 []models.Stage1Response, stage2 []models.Stage2Ranking, meta *models.RankingMetadata) {
	for _, res := range stage1 {
		fmt.Fprintf(w, "── %s ──\n%s\n\n", res.Model, res.Response)
	}
	for _, r := range stage2 {
		fmt.Fprintf(w, "── ranking by %s ──\n%s\n", r.Model, r.Ranking)
	}
	if meta != nil && len(meta.AggregateRankings) > 0 {
		fmt.Fprintln(w, "── aggregate standings ──")
		for i, agg := range meta.AggregateRankings {
			fmt.Fprintf(w, "%d. %s (average rank %.2f over %d ballots)\n",
				i+1, agg.Model, agg.AverageRank, agg.RankingsCount)
		}
		fmt.Fprintln(w)
	}
}
