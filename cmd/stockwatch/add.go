package main

import (
	"fmt"

	"github.com/fwojciec/stockwatch"
	"github.com/fwojciec/stockwatch/watch"
)

// Run executes the add command.
func (c *AddCmd) Run(deps *Dependencies) error {
	target := &stockwatch.Target{
		URL:  c.URL,
		Name: c.Name,
		Note: c.Note,
	}

	st, err := deps.Service.AddTarget(deps.Ctx, target, !c.NoCheck)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", stockwatch.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Added %q (%s)\n", st.Target.DisplayName(), st.Target.URL)
	if !c.NoCheck {
		fmt.Fprintf(deps.Stdout, "Status: %s\n", watch.StatusLabel(*st))
	}
	return nil
}
