package main

import (
	"fmt"

	"github.com/fwojciec/stockwatch"
)

// Run executes the check command. A failed check is reported and returned
// as an error so scripts can tell it apart from "out of stock".
func (c *CheckCmd) Run(deps *Dependencies) error {
	obs, err := deps.Service.CheckURL(deps.Ctx, c.URL)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", stockwatch.ErrorMessage(err))
		return err
	}

	if obs.Title != "" {
		fmt.Fprintf(deps.Stdout, "Title: %s\n", obs.Title)
	}
	switch {
	case obs.Err != nil:
		fmt.Fprintf(deps.Stderr, "error: check failed: %s\n", stockwatch.ErrorMessage(obs.Err))
		return obs.Err
	case obs.Available:
		fmt.Fprintln(deps.Stdout, "In stock")
	default:
		fmt.Fprintln(deps.Stdout, "Out of stock")
	}
	return nil
}
