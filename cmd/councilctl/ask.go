package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/llmcouncil/councilgo/pkg/attachment"
	"github.com/llmcouncil/councilgo/pkg/client"
	"github.com/llmcouncil/councilgo/pkg/turn"
)

var (
	askConversation string
	askAttach       []string
	askNoStream     bool
	askStages       bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the council a question",
	Long: `Submit one turn to the council and print the chairman's final answer.

With no --conversation the question starts a new conversation; pass an id
to continue an earlier one. Attach images or documents with --attach.

Examples:
  councilctl ask "Is a heat pump worth it in a cold climate?"
  councilctl ask --attach report.pdf "Summarize the attached report"
  councilctl ask --attach chart.png
  councilctl ask -c 3f2a91d0 "And what about maintenance cost?"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "Continue this conversation instead of starting a new one")
	askCmd.Flags().StringArrayVarP(&askAttach, "attach", "a", nil, "Attach a file (repeatable)")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "Wait for the finished turn instead of streaming progress")
	askCmd.Flags().BoolVar(&askStages, "stages", false, "Print per-model stage results before the final answer")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	content := ""
	if len(args) > 0 {
		content = args[0]
	}

	atts := make([]*attachment.Attachment, 0, len(askAttach))
	for _, path := range askAttach {
		att, err := attachment.New(path)
		if err != nil {
			return err
		}
		atts = append(atts, att)
	}

	req, err := client.BuildTurn(ctx, content, atts)
	if err != nil {
		if errors.Is(err, client.ErrEmptyTurn) {
			return errors.New("nothing to ask: pass a question, an attachment, or both")
		}
		return err
	}

	conversationID := askConversation
	if conversationID == "" {
		userID, err := currentUserID()
		if err != nil {
			return err
		}
		conv, err := api.CreateConversation(ctx, userID)
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		conversationID = conv.ID
		fmt.Fprintf(cmd.ErrOrStderr(), "Conversation %s\n", conversationID)
	}

	if askNoStream {
		resp, err := api.SendMessage(ctx, conversationID, req)
		if err != nil {
			return conversationError(conversationID, err)
		}
		out := cmd.OutOrStdout()
		if askStages {
			printStages(out, resp.Stage1, resp.Stage2, resp.Metadata)
		}
		if resp.Stage3 != nil {
			fmt.Fprintln(out, resp.Stage3.Response)
		}
		return nil
	}

	snapshots, err := api.StreamMessage(ctx, conversationID, req)
	if err != nil {
		var terr *client.TransportError
		if errors.As(err, &terr) && terr.Status == http.StatusNotFound {
			return fmt.Errorf("conversation %s not found", conversationID)
		}
		return err
	}

	progress := newProgressPrinter(cmd.ErrOrStderr())
	var last turn.State
	for st := range snapshots {
		progress.Update(st)
		last = st
	}

	switch last.Status {
	case turn.StatusComplete:
		out := cmd.OutOrStdout()
		if askStages {
			printStages(out, last.Stage1, last.Stage2, last.Metadata)
		}
		fmt.Fprintln(out, last.Stage3.Response)
		return nil
	case turn.StatusFailed:
		return fmt.Errorf("council turn failed: %w", last.Err)
	default:
		// The snapshot channel closed without a terminal state, which
		// only happens when the context was cancelled.
		return ctx.Err()
	}
}

// progressPrinter writes one line per council phase as snapshots arrive.
// Each line prints once no matter how many snapshots repeat the phase.
type progressPrinter struct {
	w    io.Writer
	seen map[string]bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, seen: make(map[string]bool)}
}

func (p *progressPrinter) Update(st turn.State) {
	if st.Waiting(turn.Stage1) {
		p.step("stage1_start", "• Council members drafting answers...")
	}
	if st.Stage1 != nil {
		p.step("stage1", fmt.Sprintf("✓ %d answers in", len(st.Stage1)))
	}
	if st.Waiting(turn.Stage2) {
		p.step("stage2_start", "• Council ranking the anonymized answers...")
	}
	if st.Stage2 != nil {
		p.step("stage2", "✓ Rankings in")
	}
	if st.Waiting(turn.Stage3) {
		p.step("stage3_start", "• Chairman synthesizing the final answer...")
	}
}

func (p *progressPrinter) step(key, line string) {
	if p.seen[key] {
		return
	}
	p.seen[key] = true
	fmt.Fprintln(p.w, line)
}
