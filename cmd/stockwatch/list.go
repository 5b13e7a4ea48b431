package main

import (
	"fmt"

	"github.com/fwojciec/stockwatch"
	"github.com/fwojciec/stockwatch/watch"
	"github.com/jedib0t/go-pretty/v6/table"
)

// maxURLWidth is the widest URL shown in the table.
const maxURLWidth = 60

// Run executes the list command.
func (c *ListCmd) Run(deps *Dependencies) error {
	statuses, err := deps.Service.ListTargets(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", stockwatch.ErrorMessage(err))
		return err
	}

	if len(statuses) == 0 {
		fmt.Fprintln(deps.Stdout, "No targets found. Use 'stockwatch add' to watch one.")
		return nil
	}

	if c.Check {
		for i, st := range statuses {
			obs := deps.Service.Checker.Check(deps.Ctx, st.Target.URL)
			deps.Service.Tracker.Observe(st.Target, obs, false)
			if updated, ok := deps.Service.Tracker.Status(st.Target.ID); ok {
				updated.Target = st.Target
				statuses[i] = updated
			}
		}
	}

	now := deps.now()
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(deps.Stdout)
	t.AppendHeader(table.Row{"#", "Name", "URL", "Status", "Checked"})
	for i, st := range statuses {
		t.AppendRow(table.Row{
			i + 1,
			st.Target.DisplayName(),
			watch.TruncateURL(st.Target.URL, maxURLWidth),
			watch.StatusLabel(st),
			watch.StatusAge(st, now),
		})
	}
	t.Render()
	return nil
}
