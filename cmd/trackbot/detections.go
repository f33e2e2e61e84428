package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/trackbot/pkg/detect"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableHitStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableMissStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
)

type DetectionsCommand struct {
	Target string  `long:"target" description:"Target class (default from config)"`
	Min    float64 `long:"min-confidence" description:"Confidence threshold (default from config)"`
	Path   string  `long:"log" description:"Detection log path (default from config)"`
}

func (c *DetectionsCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	target, minConf, path := cfg.Detection.TargetClass, cfg.Detection.MinConfidence, cfg.Detection.LogPath
	if c.Target != "" {
		target = c.Target
	}
	if c.Min > 0 {
		minConf = c.Min
	}
	if c.Path != "" {
		path = c.Path
	}

	entries, err := detect.NewSource(path).Read()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(entries))
	hits := make([]bool, 0, len(entries))
	for _, frame := range entries {
		best, ok := detect.FindBestInFrame(frame, target)
		row := []string{frame.Timestamp, filepath.Base(frame.ImageFile), strconv.Itoa(len(frame.Detections)), "-", "-", "-"}
		hit := ok && best.Confidence >= minConf
		if ok {
			row[3] = fmt.Sprintf("%.2f", best.Confidence)
			if off, err := best.Offset(float64(cfg.Detection.FrameWidth)); err == nil {
				row[4] = fmt.Sprintf("%+.2f", off)
			} else {
				row[4] = "no bbox"
			}
		}
		if hit {
			row[5] = "yes"
		}
		rows = append(rows, row)
		hits = append(hits, hit)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Time", "Image", "Detections", "Best "+target, "Offset", "Match").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if row >= 0 && row < len(hits) {
				if hits[row] {
					return tableHitStyle
				}
				if col >= 3 {
					return tableMissStyle
				}
			}
			return tableCellStyle
		})
	fmt.Println(t.Render())

	find := detect.FindBestMatch
	if cfg.Detection.NewestFirst {
		find = detect.FindLatestMatch
	}
	if m, ok := find(entries, target, minConf); ok {
		fmt.Println(successStyle.Render(fmt.Sprintf("Search would approach %s (%.2f)", filepath.Base(m.ImageFile), m.Detection.Confidence)))
	} else {
		fmt.Println(dimStyle.Render(fmt.Sprintf("No %q at or above %.2f", target, minConf)))
	}
	return nil
}
