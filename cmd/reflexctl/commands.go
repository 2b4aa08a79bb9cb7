package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/service"
	"github.com/spf13/cobra"
)

type clientFunc func() *apiClient

type thoughtList struct {
	Thoughts []domain.Thought `json:"thoughts"`
	Count    int              `json:"count"`
}

type ruleList struct {
	Rules []domain.Rule `json:"rules"`
	Count int           `json:"count"`
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printThoughts(w io.Writer, thoughts []domain.Thought) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tPRIORITY\tCONTENT")
	for _, th := range thoughts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", shortID(th.ID), th.Type, th.Status, th.Metadata.Priority, th.Content)
	}
	return tw.Flush()
}

func printRules(w io.Writer, rules []domain.Rule) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRIORITY\tBELIEF\tSOURCE\tPATTERN\tACTION")
	for _, r := range rules {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%s\t%s\t%s\n", shortID(r.ID), r.Metadata.Priority, r.Belief.Score(), r.Metadata.Source, r.Pattern, r.Action)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newThoughtCmd(opts *cliOptions, client clientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "thought",
		Aliases: []string{"thoughts", "t"},
		Short:   "Manage thoughts",
	}

	var (
		typ      string
		parentID string
		priority float64
	)
	add := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a thought; text is parsed as a term when possible",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"type": typ, "text": args[0], "parent_id": parentID, "priority": priority}
			var th domain.Thought
			if err := client().do(http.MethodPost, "/v1/thoughts", nil, body, &th); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), th)
			}
			fmt.Fprintln(cmd.OutOrStdout(), th.ID)
			return nil
		},
	}
	add.Flags().StringVar(&typ, "type", string(domain.ThoughtInput), "thought type")
	add.Flags().StringVar(&parentID, "parent", "", "parent thought id")
	add.Flags().Float64Var(&priority, "priority", 0, "scheduling priority")

	var status, listType, root string
	list := &cobra.Command{
		Use:   "list",
		Short: "List thoughts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if listType != "" {
				q.Set("type", listType)
			}
			if root != "" {
				q.Set("root", root)
			}
			var res thoughtList
			if err := client().do(http.MethodGet, "/v1/thoughts", q, nil, &res); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printThoughts(cmd.OutOrStdout(), res.Thoughts)
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().StringVar(&listType, "type", "", "filter by type")
	list.Flags().StringVar(&root, "root", "", "filter by root thought id")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one thought; id may be a unique prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var th domain.Thought
			if err := client().do(http.MethodGet, "/v1/thoughts/"+url.PathEscape(args[0]), nil, nil, &th); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), th)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a thought",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().do(http.MethodDelete, "/v1/thoughts/"+url.PathEscape(args[0]), nil, nil, nil)
		},
	}

	explain := &cobra.Command{
		Use:   "explain <id>",
		Short: "Show which rules match a thought and the action that would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res struct {
				Matches []struct {
					Rule     domain.Rule       `json:"rule"`
					Bindings map[string]string `json:"bindings"`
					Action   string            `json:"action"`
				} `json:"matches"`
				Action string `json:"action"`
			}
			if err := client().do(http.MethodGet, "/v1/thoughts/"+url.PathEscape(args[0])+"/matches", nil, nil, &res); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			if len(res.Matches) == 0 {
				fmt.Fprintln(out, "no rule matches; the fallback handler will run")
				return nil
			}
			for i, m := range res.Matches {
				marker := " "
				if i == 0 {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  %s => %s  (priority %.2f, belief %.2f)\n",
					marker, shortID(m.Rule.ID), m.Rule.Pattern, m.Action, m.Rule.Metadata.Priority, m.Rule.Belief.Score())
			}
			return nil
		},
	}

	cmd.AddCommand(add, list, get, del, explain)
	return cmd
}

func newRuleCmd(opts *cliOptions, client clientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rule",
		Aliases: []string{"rules", "r"},
		Short:   "Manage rules",
	}

	var priority float64
	var description string
	add := &cobra.Command{
		Use:   "add <pattern> <action>",
		Short: "Add a rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.RuleSpec{Pattern: args[0], Action: args[1], Priority: priority, Description: description}
			var r domain.Rule
			if err := client().do(http.MethodPost, "/v1/rules", nil, req, &r); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), r)
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.ID)
			return nil
		},
	}
	add.Flags().Float64Var(&priority, "priority", 1, "rule priority")
	add.Flags().StringVar(&description, "description", "", "what the rule is for")

	var source string
	list := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if source != "" {
				q.Set("source", source)
			}
			var res ruleList
			if err := client().do(http.MethodGet, "/v1/rules", q, nil, &res); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printRules(cmd.OutOrStdout(), res.Rules)
		},
	}
	list.Flags().StringVar(&source, "source", "", "filter by source (bootstrap, api, tool, file)")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().do(http.MethodDelete, "/v1/rules/"+url.PathEscape(args[0]), nil, nil, nil)
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

func newEngineCmd(opts *cliOptions, client clientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Control the scheduler",
	}

	printStatus := func(cmd *cobra.Command, st service.EngineStatus) error {
		if opts.asJSON {
			return printJSON(cmd.OutOrStdout(), st)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "running=%t thoughts=%d pending=%d active=%d waiting=%d rules=%d\n",
			st.Running, st.Thoughts, st.PendingCount, st.ActiveCount, st.WaitingCount, st.Rules)
		return nil
	}

	simple := func(use, short, method, path string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				var st service.EngineStatus
				if err := client().do(method, path, nil, nil, &st); err != nil {
					return err
				}
				return printStatus(cmd, st)
			},
		}
	}

	step := &cobra.Command{
		Use:   "step",
		Short: "Run one scheduling step and wait for it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res struct {
				Dispatched int                  `json:"dispatched"`
				Status     service.EngineStatus `json:"status"`
			}
			if err := client().do(http.MethodPost, "/v1/engine/step", nil, nil, &res); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dispatched %d\n", res.Dispatched)
			return printStatus(cmd, res.Status)
		},
	}

	cmd.AddCommand(
		simple("start", "Start the scheduler loop", http.MethodPost, "/v1/engine/start"),
		simple("pause", "Stop dispatching new work", http.MethodPost, "/v1/engine/pause"),
		simple("status", "Show engine counters", http.MethodGet, "/v1/engine/status"),
		step,
	)
	return cmd
}

func newTaskCmd(client clientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Pause or resume every thought under a root",
	}
	for _, action := range []string{"pause", "resume"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action + " <root-id>",
			Short: "Mark the task " + action + "d",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var th domain.Thought
				if err := client().do(http.MethodPost, "/v1/tasks/"+url.PathEscape(args[0])+"/"+action, nil, nil, &th); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", shortID(th.ID), th.Metadata.TaskStatus)
				return nil
			},
		})
	}
	return cmd
}

func newRespondCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "respond <prompt-id> <text>",
		Short: "Answer a pending user prompt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"text": args[1]}
			if err := client().do(http.MethodPost, "/v1/prompts/"+url.PathEscape(args[0])+"/respond", nil, body, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "accepted")
			return nil
		},
	}
}

func newMemoryCmd(opts *cliOptions, client clientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Store and search long-term memory",
	}

	add := &cobra.Command{
		Use:   "add <content>",
		Short: "Store a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().do(http.MethodPost, "/v1/memory", nil, map[string]string{"content": args[0]}, nil)
		},
	}

	var k int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Find memories similar to the query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"query": {args[0]}, "k": {strconv.Itoa(k)}}
			var res struct {
				Results []domain.MemorySearchResult `json:"results"`
			}
			if err := client().do(http.MethodGet, "/v1/memory/search", q, nil, &res); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			for _, r := range res.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "%.4f  %s\n", r.Score, r.Content)
			}
			return nil
		},
	}
	search.Flags().IntVarP(&k, "limit", "k", 5, "number of results")

	cmd.AddCommand(add, search)
	return cmd
}
