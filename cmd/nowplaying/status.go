package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/nowplaying/internal/config"
	"github.com/jmylchreest/nowplaying/internal/presence"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(10)
	valueStyle = lipgloss.NewStyle()
	mutedStyle = lipgloss.NewStyle().Faint(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	songStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the watched file and the presence it maps to",
	Long: `Show the config in use, the watched file's size and modification time,
and the presence the daemon would publish for its current content.

Nothing is sent to Discord.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// fileStatus is a snapshot of the watched file.
type fileStatus struct {
	Path    string
	Size    int64
	ModTime time.Time
	State   presence.State
	Err     error
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := configPath()

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st := readFileStatus(cfg.Watch.Path, cfg.Watch.MinLength)
	printStatus(cmd.OutOrStdout(), path, cfg, st, time.Now())
	return nil
}

// readFileStatus inspects path without going through the updater.
func readFileStatus(path string, minLength int) fileStatus {
	st := fileStatus{Path: path}
	if path == "" {
		st.Err = fmt.Errorf("no path set")
		return st
	}

	src := presence.NewFileSource(path)
	content, err := src.Read()
	if err != nil {
		st.Err = err
		return st
	}

	info, err := os.Stat(path)
	if err != nil {
		st.Err = err
		return st
	}

	st.Size = info.Size()
	st.ModTime = info.ModTime()
	st.State = presence.Derive(content, minLength)
	return st
}

func printStatus(w io.Writer, configPath string, cfg *config.Config, st fileStatus, now time.Time) {
	row := func(label, value string) {
		fmt.Fprintln(w, labelStyle.Render(label)+valueStyle.Render(value))
	}

	row("Config", configPath)
	mode := "bot"
	if !cfg.Discord.Bot {
		mode = "user"
	}
	row("Account", mode)
	row("Interval", cfg.Watch.Interval.Duration().String())

	if st.Err != nil {
		row("File", st.Path)
		row("Error", errorStyle.Render(st.Err.Error()))
		return
	}

	row("File", fmt.Sprintf("%s %s", st.Path,
		mutedStyle.Render(fmt.Sprintf("(%s, modified %s)",
			humanize.Bytes(uint64(st.Size)), humanize.RelTime(st.ModTime, now, "ago", "from now")))))

	if st.State.Kind == presence.Announcing {
		row("Presence", "Listening to "+songStyle.Render(st.State.Title))
	} else {
		row("Presence", mutedStyle.Render(fmt.Sprintf("cleared (shorter than %d characters)", cfg.Watch.MinLength)))
	}
}
