// Package prompt asks a human which resolution strategy to apply when a file
// lock request conflicts.
//
// [TerminalChooser] implements resolution.Chooser with a small bubbletea list
// of the four strategies. It only prompts when its input is a terminal; in
// scripts, pipes and CI it declines immediately, which makes the resolution
// engine fall back to sequential.
package prompt
