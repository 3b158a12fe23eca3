// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package watchui

import (
	"net/http"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for the watch view. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Pipeline outcome colors: success and no-op, in-flight conflict,
	// everything else.
	StatusOK    lipgloss.Color
	StatusBusy  lipgloss.Color
	StatusError lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Poll failures in the title bar.
	ErrorText lipgloss.Color
}

// StatusColor returns the color for a pipeline status code. Success
// and no-op responses share one color since both mean the device is in
// the requested state.
func (theme Theme) StatusColor(status int) lipgloss.Color {
	switch {
	case status >= 200 && status < 300:
		return theme.StatusOK
	case status == http.StatusConflict:
		return theme.StatusBusy
	default:
		return theme.StatusError
	}
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed for
// 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	StatusOK:    lipgloss.Color("114"), // green
	StatusBusy:  lipgloss.Color("220"), // yellow/amber
	StatusError: lipgloss.Color("196"), // red

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	ErrorText: lipgloss.Color("196"),
}
