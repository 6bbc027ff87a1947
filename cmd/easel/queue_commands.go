package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the generation queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		prompt         string
		refIDs         []int64
		inlineRefs     []string
		googleSearch   bool
		safetyOverride bool
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enqueue a generation request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("--prompt is required")
			}
			client, err := ctx.resolveClient()
			if err != nil {
				return err
			}

			resp, err := client.Enqueue(enqueuePayload{
				PromptJSON:           promptToJSON(prompt),
				ReferencePhotoIDs:    refIDs,
				InlineReferencePaths: inlineRefs,
				GoogleSearch:         googleSearch,
				SafetyOverride:       safetyOverride,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued item %d (generation %d)\n", resp.Item.ID, resp.Item.GenerationID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt text or a raw JSON payload")
	cmd.Flags().Int64SliceVar(&refIDs, "ref", nil, "Reference photo IDs (repeatable)")
	cmd.Flags().StringSliceVar(&inlineRefs, "inline-ref", nil, "Inline reference image paths (repeatable)")
	cmd.Flags().BoolVar(&googleSearch, "google-search", false, "Allow the model to ground on web search")
	cmd.Flags().BoolVar(&safetyOverride, "safety-override", false, "Relax model safety filters")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a summary line")
	return cmd
}

// promptToJSON passes raw JSON payloads through and wraps plain text in a
// minimal prompt object.
func promptToJSON(prompt string) json.RawMessage {
	trimmed := strings.TrimSpace(prompt)
	if json.Valid([]byte(trimmed)) && (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(map[string]string{"prompt": trimmed})
	return wrapped
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses   []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.resolveClient()
			if err != nil {
				return err
			}
			items, err := client.List(statuses)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					item.Status,
					formatTime(&item.CreatedAt),
					formatTime(item.CompletedAt),
					promptPreview(item.PromptJSON),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Status", "Created", "Completed", "Prompt"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a queue item and its generation outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.resolveClient()
			if err != nil {
				return err
			}
			detail, err := client.Describe(id)
			if err != nil {
				return err
			}
			return writeJSON(cmd, detail)
		},
	}
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show queue position for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.resolveClient()
			if err != nil {
				return err
			}
			snapshot, err := client.QueueStatus(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case snapshot.Position == nil:
				fmt.Fprintln(out, "Item is finished")
			case *snapshot.Position == 0:
				fmt.Fprintln(out, "Item is generating now")
			default:
				fmt.Fprintf(out, "Position %d of %d queued\n", *snapshot.Position, snapshot.Queued)
			}
			fmt.Fprintf(out, "Active: %d, queued: %d\n", snapshot.Active, snapshot.Queued)
			return nil
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"cancel"},
		Short:   "Cancel a queued or in-flight item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.resolveClient()
			if err != nil {
				return err
			}
			if err := client.Remove(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed item %d\n", id)
			return nil
		},
	}
}

func parseItemID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid queue item id %q", arg)
	}
	return id, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// promptPreview flattens a prompt payload into one short line for tables.
func promptPreview(raw json.RawMessage) string {
	const maxLen = 48

	preview := strings.Join(strings.Fields(string(raw)), " ")
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil {
		if prompt, ok := payload["prompt"].(string); ok && prompt != "" {
			preview = prompt
		} else if subject, ok := payload["subject"].(string); ok && subject != "" {
			preview = subject
		}
	}
	if len(preview) > maxLen {
		preview = preview[:maxLen-1] + "…"
	}
	return preview
}
