package main

import (
	"fmt"

	"github.com/fwojciec/stockwatch"
)

// Run executes the remove command.
func (c *RemoveCmd) Run(deps *Dependencies) error {
	target, err := deps.Service.RemoveTarget(deps.Ctx, c.Ref)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", stockwatch.ErrorMessage(err))
		if stockwatch.ErrorCode(err) == stockwatch.ENOTFOUND {
			fmt.Fprintln(deps.Stderr, "Use 'stockwatch list' to see watched targets.")
		}
		return err
	}

	fmt.Fprintf(deps.Stdout, "Removed %q\n", target.DisplayName())
	return nil
}
