// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui implements the terminal client for the corrections API.
//
// The list view browses corrections in a table with transient status, scope
// and subject filters. huh forms handle filtering, delete confirmation and
// the create/edit editor with its hypothesis and context rows.
package tui

import (
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// ErrNotTerminal is returned by Run when stdin is not an interactive terminal.
var ErrNotTerminal = errors.New("corrections ui requires an interactive terminal")

// Options configures Run.
type Options struct {
	// Timeout bounds each API call. Zero uses DefaultTimeout.
	Timeout time.Duration

	// AltScreen runs the UI in the terminal's alternate screen buffer.
	AltScreen bool
}

// Run starts the UI against api and blocks until the user quits.
func Run(api API, opts Options) error {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return ErrNotTerminal
	}

	var progOpts []tea.ProgramOption
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	p := tea.NewProgram(NewModel(api, opts.Timeout), progOpts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
