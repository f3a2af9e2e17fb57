package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.uber.org/zap"

	"github.com/hagbeck/containerterminal/pkg/brick"
	"github.com/hagbeck/containerterminal/pkg/rcx"
)

type InfoCommand struct{}

// probeRCX pings an RCX through the tower on port and reads its battery.
func probeRCX(port string) (int, error) {
	p, err := rcx.OpenPort(port)
	if err != nil {
		return 0, err
	}
	tower := rcx.NewTower(p, 0, zap.NewNop().Sugar())
	defer tower.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := tower.Ping(ctx); err != nil {
		return 0, err
	}
	return tower.Battery(ctx)
}

func renderTable(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}

func attribute(attrs map[string]any, key string) string {
	if v, ok := attrs[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func (c *InfoCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Container Terminal Info"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, cfgErr := brick.LoadConfigFrom(opts.Config)
	inUse := make(map[string]string)
	if cfgErr == nil {
		if p := attribute(cfg.Attributes, "port"); p != "" {
			inUse[p] = cfg.Backend
		}
		if p := attribute(cfg.Lift, "port"); p != "" {
			inUse[p] = "lift"
		}
	}

	fmt.Println(subHeaderStyle.Render("Serial ports"))
	ports, err := serialPorts()
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("  Error listing ports: %v", err)))
	} else {
		rows := make([][]string, 0, len(ports))
		for _, p := range ports {
			rows = append(rows, []string{p, inUse[p]})
		}
		fmt.Println(renderTable([]string{"Port", "Configured for"}, rows))
	}
	fmt.Println()

	if cfgErr != nil {
		fmt.Printf("No configuration in %s. Run 'ctcontrol setup' first.\n", opts.Config)
		return nil
	}

	fmt.Println(subHeaderStyle.Render("Backend"))
	fmt.Printf("  %s (registered: %v)\n", cfg.Backend, brick.Backends())
	if cfg.Backend == "rcx" {
		port := attribute(cfg.Attributes, "port")
		mv, err := probeRCX(port)
		if err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("  RCX on %s: %v", port, err)))
		} else {
			fmt.Println(successStyle.Render(fmt.Sprintf("  RCX on %s answers, battery %.1f V", port, float64(mv)/1000)))
		}
	}
	fmt.Println()

	if !cfg.HasLift() {
		return nil
	}
	fmt.Println(subHeaderStyle.Render("Lift servo bus"))
	port := attribute(cfg.Lift, "port")
	bus, servos, err := connectToBus(port)
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("  %s: %v", port, err)))
		return nil
	}
	defer bus.Close()

	ctx := context.Background()
	rows := make([][]string, 0, len(servos))
	for _, s := range servos {
		pos := "?"
		if p, err := feetech.NewServo(bus, s.ID, s.Model).Position(ctx); err == nil {
			pos = fmt.Sprintf("%d", p)
		}
		role := ""
		if attribute(cfg.Lift, "id") == fmt.Sprint(s.ID) {
			role = "winch"
		}
		rows = append(rows, []string{fmt.Sprintf("%d", s.ID), fmt.Sprintf("%v", s.Model), pos, role})
	}
	fmt.Println(renderTable([]string{"ID", "Model", "Position", "Role"}, rows))
	return nil
}
