package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/stockwatch/telegram"
	"github.com/fwojciec/stockwatch/watch"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	Config *Config

	Service    *watch.Service
	Scheduler  *watch.Scheduler
	Dispatcher *watch.Dispatcher
	Bot        *telegram.Bot

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  string `short:"c" type:"path" default:"config.json5" env:"STOCKWATCH_CONFIG" help:"Configuration file (falls back to config.json)"`
	Verbose bool   `short:"v" help:"Log debug messages"`

	Run    RunCmd    `cmd:"" help:"Watch all targets and send notifications"`
	Add    AddCmd    `cmd:"" help:"Add a product page to the watch-list"`
	Remove RemoveCmd `cmd:"" help:"Remove a product page from the watch-list"`
	List   ListCmd   `cmd:"" help:"List watched product pages"`
	Check  CheckCmd  `cmd:"" help:"Check a product page once"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct{}

// AddCmd is the "add" subcommand.
type AddCmd struct {
	URL     string `arg:"" help:"Product page URL"`
	Name    string `short:"n" help:"Display name (defaults to the page title)"`
	Note    string `help:"Free-form note shown in notifications"`
	NoCheck bool   `help:"Do not check the page before adding it"`
}

// RemoveCmd is the "remove" subcommand.
type RemoveCmd struct {
	Ref string `arg:"" help:"List number, URL or ID of the target"`
}

// ListCmd is the "list" subcommand.
type ListCmd struct {
	Check bool `help:"Check every target before listing"`
}

// CheckCmd is the "check" subcommand.
type CheckCmd struct {
	URL string `arg:"" help:"Product page URL"`
}
