package stub

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/llmcouncil/councilgo/pkg/models"
)

const titleMaxLen = 40

// Script fabricates a deterministic council run for a prompt. The same
// prompt always yields the same stages, so CLI output and tests are
// reproducible without any model provider.
type Script struct {
	Members  []string
	Chairman string

	// Delay is the pause before each emitted stage on the streaming
	// endpoint. Zero means no pause.
	Delay time.Duration
}

// DefaultScript mirrors the hosted council's default member roster.
func DefaultScript() *Script {
	return &Script{
		Members:  []string{"openai/gpt-5", "google/gemini-3-pro-preview"},
		Chairman: "google/gemini-3-pro-preview",
		Delay:    200 * time.Millisecond,
	}
}

// Stage1 produces one canned answer per council member.
func (s *Script) Stage1(prompt string) []models.Stage1Response {
	out := make([]models.Stage1Response, 0, len(s.Members))
	for i, m := range s.Members {
		out = append(out, models.Stage1Response{
			Model: m,
			Response: fmt.Sprintf("Considering %q, my take is option %d: %s",
				excerpt(prompt), i+1, cannedAnalysis(prompt, i)),
		})
	}
	return out
}

// Stage2 has every member rank the anonymized stage-1 answers. The winner
// rotates with the prompt length so different prompts produce different
// standings, but the run stays deterministic.
func (s *Script) Stage2(prompt string, stage1 []models.Stage1Response) ([]models.Stage2Ranking, models.RankingMetadata) {
	labels := make([]string, len(stage1))
	labelToModel := make(map[string]string, len(stage1))
	for i, res := range stage1 {
		labels[i] = "Response " + string(rune('A'+i))
		labelToModel[labels[i]] = res.Model
	}

	winner := len([]rune(prompt)) % len(labels)
	order := append([]string{labels[winner]}, removeAt(labels, winner)...)

	rankings := make([]models.Stage2Ranking, 0, len(s.Members))
	for _, m := range s.Members {
		rankings = append(rankings, models.Stage2Ranking{
			Model:         m,
			Ranking:       rankingText(order),
			ParsedRanking: append([]string(nil), order...),
		})
	}

	meta := models.RankingMetadata{
		LabelToModel:      labelToModel,
		AggregateRankings: aggregate(rankings, labelToModel),
	}
	return rankings, meta
}

// Stage3 is the chairman's synthesized final answer.
func (s *Script) Stage3(prompt string, stage1 []models.Stage1Response) models.Stage3Response {
	return models.Stage3Response{
		Model: s.Chairman,
		Response: fmt.Sprintf(
			"Having weighed %d council answers to %q, the consensus view is:\n\n%s",
			len(stage1), excerpt(prompt), cannedAnalysis(prompt, len(s.Members))),
	}
}

// Title derives a conversation title from the first message, mirroring the
// hosted service's short-title behavior.
func (s *Script) Title(content string) string {
	t := strings.Join(strings.Fields(content), " ")
	if t == "" {
		return models.DefaultTitle
	}
	r := []rune(t)
	if len(r) > titleMaxLen {
		t = strings.TrimSpace(string(r[:titleMaxLen-1])) + "…"
	}
	return t
}

func rankingText(order []string) string {
	var b strings.Builder
	b.WriteString("Comparing the responses on accuracy and depth of insight.\n\nFINAL RANKING:\n")
	for i, label := range order {
		fmt.Fprintf(&b, "%d. %s\n", i+1, label)
	}
	return b.String()
}

// aggregate computes per-model average positions across all ballots, best
// average first.
func aggregate(rankings []models.Stage2Ranking, labelToModel map[string]string) []models.AggregateRanking {
	positions := make(map[string][]int)
	for _, r := range rankings {
		for pos, label := range r.ParsedRanking {
			if model, ok := labelToModel[label]; ok {
				positions[model] = append(positions[model], pos+1)
			}
		}
	}

	out := make([]models.AggregateRanking, 0, len(positions))
	for model, ps := range positions {
		sum := 0
		for _, p := range ps {
			sum += p
		}
		out = append(out, models.AggregateRanking{
			Model:         model,
			AverageRank:   float64(sum) / float64(len(ps)),
			RankingsCount: len(ps),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageRank != out[j].AverageRank {
			return out[i].AverageRank < out[j].AverageRank
		}
		return out[i].Model < out[j].Model
	})
	return out
}

func removeAt(s []string, i int) []string {
	out := make([]string, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

func excerpt(prompt string) string {
	t := strings.Join(strings.Fields(prompt), " ")
	if t == "" {
		return "the attached material"
	}
	r := []rune(t)
	if len(r) > 60 {
		t = string(r[:60]) + "…"
	}
	return t
}

func cannedAnalysis(prompt string, seed int) string {
	themes := []string{
		"the key trade-off is between simplicity and flexibility, and simplicity should win here.",
		"start from the constraints, not the features, and the design follows naturally.",
		"the evidence points both ways, but the stronger case favors the incremental approach.",
		"this hinges on one assumption worth validating before committing either way.",
	}
	return themes[(len(prompt)+seed)%len(themes)]
}
