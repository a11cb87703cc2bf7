package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/invex/internal/llmcall"
	"github.com/jackzampolin/invex/internal/output"
)

var callsFilter struct {
	session   string
	model     string
	extractor string
	failed    bool
	since     time.Duration
	limit     int
}

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Inspect the model call log (api_calls.jsonl)",
}

var callsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded model calls, most recent last",
	RunE: func(cmd *cobra.Command, args []string) error {
		calls, err := queryCalls(callsFilter.limit)
		if err != nil {
			return err
		}
		if structured() {
			return output.Write(cmd.OutOrStdout(), format, calls)
		}
		records := make([][]string, len(calls))
		for i, c := range calls {
			status := "ok"
			if !c.Success {
				status = c.ErrorKind
			}
			records[i] = []string{
				c.Timestamp.Local().Format(time.DateTime),
				c.ID,
				shortID(c.Session),
				c.Model,
				c.Extractor,
				strconv.Itoa(c.Run + 1),
				strconv.Itoa(c.Attempts),
				fmt.Sprintf("%d/%d", c.InputTokens, c.OutputTokens),
				strconv.FormatInt(c.LatencyMs, 10),
				status,
			}
		}
		output.WriteRecords(cmd.OutOrStdout(),
			[]string{"Time", "ID", "Session", "Model", "Extractor", "Run", "Attempts", "Tokens In/Out", "Latency Ms", "Status"},
			records)
		return nil
	},
}

var callsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one call with its raw response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		call, err := llmcall.NewStore(e.home.CallLogPath()).Get(args[0])
		if err != nil {
			return err
		}
		if call == nil {
			return fmt.Errorf("call %s not found", args[0])
		}
		f := format
		if f == output.FormatTable {
			f = output.FormatYAML
		}
		return output.Write(cmd.OutOrStdout(), f, call)
	},
}

var callsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Calls, failures and token usage per model and extractor",
	RunE: func(cmd *cobra.Command, args []string) error {
		calls, err := queryCalls(0)
		if err != nil {
			return err
		}
		groups := llmcall.SummarizeGroups(calls)
		if structured() {
			return output.Write(cmd.OutOrStdout(), format, groups)
		}
		rows := lo.Map(groups, func(g llmcall.Group, _ int) []string {
			return summaryRow(g.Model, g.Extractor, g.Summary)
		})
		rows = append(rows, summaryRow("total", "", llmcall.Summarize(calls)))
		output.WriteRecords(cmd.OutOrStdout(),
			[]string{"Model", "Extractor", "Calls", "Failed", "Input Tokens", "Output Tokens"},
			rows)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{callsListCmd, callsStatsCmd} {
		f := c.Flags()
		f.StringVar(&callsFilter.session, "session", "", "only calls from this session")
		f.StringVar(&callsFilter.model, "model", "", "only calls to this model key")
		f.StringVar(&callsFilter.extractor, "extractor", "", "only calls made by this extractor")
		f.BoolVar(&callsFilter.failed, "failed", false, "only failed calls")
		f.DurationVar(&callsFilter.since, "since", 0, "only calls newer than this, e.g. 24h")
	}
	callsListCmd.Flags().IntVar(&callsFilter.limit, "limit", 20, "most recent calls to show (0 = all)")

	callsCmd.AddCommand(callsListCmd)
	callsCmd.AddCommand(callsShowCmd)
	callsCmd.AddCommand(callsStatsCmd)
	rootCmd.AddCommand(callsCmd)
}

// queryCalls applies the shared filter flags; limit 0 returns every match.
func queryCalls(limit int) ([]llmcall.Call, error) {
	e, err := loadEnv()
	if err != nil {
		return nil, err
	}
	filter := llmcall.QueryFilter{
		Session:   callsFilter.session,
		Model:     callsFilter.model,
		Extractor: callsFilter.extractor,
		Limit:     limit,
	}
	if callsFilter.failed {
		ok := false
		filter.Success = &ok
	}
	if callsFilter.since > 0 {
		after := time.Now().Add(-callsFilter.since)
		filter.After = &after
	}
	return llmcall.NewStore(e.home.CallLogPath()).List(filter)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func summaryRow(model, extractor string, sum llmcall.Summary) []string {
	return []string{
		model,
		extractor,
		strconv.Itoa(sum.Calls),
		strconv.Itoa(sum.Failed),
		strconv.Itoa(sum.InputTokens),
		strconv.Itoa(sum.OutputTokens),
	}
}
