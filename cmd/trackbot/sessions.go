package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/trackbot/pkg/session"
)

type SessionsCommand struct {
	Limit int `short:"n" long:"limit" default:"20" description:"Number of sessions to show"`
}

func (c *SessionsCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	journal, err := session.OpenJournal(cfg.Archive.Journal)
	if err != nil {
		return err
	}
	defer journal.Close()

	records, err := journal.Recent(c.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(dimStyle.Render("No sessions recorded yet."))
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		conf := "-"
		if r.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *r.Confidence)
		}
		dur := "-"
		if d := r.Duration(); d > 0 {
			dur = d.Round(100 * time.Millisecond).String()
		}
		rows = append(rows, []string{
			r.ID[:min(8, len(r.ID))],
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			dur,
			r.Outcome,
			r.TargetClass,
			conf,
			strconv.Itoa(r.Scans),
			strconv.Itoa(r.Cycles),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Session", "Started", "Duration", "Outcome", "Target", "Confidence", "Scans", "Cycles").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	fmt.Println(t.Render())
	return nil
}
