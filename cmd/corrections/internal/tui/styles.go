// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
)

// Palette
var (
	colorTealBright  = lipgloss.Color("#2CD7C7")
	colorTealPrimary = lipgloss.Color("#20B9B4")
	colorTealDeep    = lipgloss.Color("#16858E")
	colorSlate       = lipgloss.Color("#2C4A54")
	colorWarning     = lipgloss.Color("#F4D03F")
	colorError       = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
	Selected  lipgloss.Style

	Pending   lipgloss.Style
	Confirmed lipgloss.Style
	Annulled  lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(colorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(colorTealPrimary),
	Muted:     lipgloss.NewStyle().Foreground(colorSlate),
	Error:     lipgloss.NewStyle().Foreground(colorError),
	Success:   lipgloss.NewStyle().Foreground(colorTealBright),
	Highlight: lipgloss.NewStyle().Foreground(colorTealBright).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorTealDeep).
		Padding(0, 1),
	Selected: lipgloss.NewStyle().Foreground(colorTealBright).Bold(true),

	Pending:   lipgloss.NewStyle().Foreground(colorWarning),
	Confirmed: lipgloss.NewStyle().Foreground(colorTealBright),
	Annulled:  lipgloss.NewStyle().Foreground(colorSlate),
}

func statusStyle(s datatypes.Status) lipgloss.Style {
	switch s {
	case datatypes.StatusConfirmed:
		return styles.Confirmed
	case datatypes.StatusAnnulled:
		return styles.Annulled
	default:
		return styles.Pending
	}
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorTealDeep).
		BorderBottom(true).
		Bold(true).
		Foreground(colorTealPrimary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#0F1923")).
		Background(colorTealBright).
		Bold(false)
	return s
}
