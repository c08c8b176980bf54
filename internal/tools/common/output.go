package common

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	detailStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("245"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type ciResult struct {
	OK      bool     `json:"ok"`
	Check   string   `json:"check"`
	Details []string `json:"details"`
	Error   string   `json:"error,omitempty"`
}

// PrintCIResult writes one JSON line for machine consumers.
func PrintCIResult(w io.Writer, ok bool, title string, details []string, err error) {
	res := ciResult{OK: ok, Check: title, Details: details}
	if res.Details == nil {
		res.Details = []string{}
	}
	if err != nil {
		res.Error = err.Error()
	}
	_ = json.NewEncoder(w).Encode(res)
}

func RenderReport(title string, details []string, err error) string {
	status := okStyle.Render("OK")
	if err != nil {
		status = failStyle.Render("FAIL")
	}
	lines := []string{titleStyle.Render(title) + "  " + status}
	for _, d := range details {
		lines = append(lines, detailStyle.Render("- "+d))
	}
	if err != nil {
		lines = append(lines, failStyle.Render("error: ")+err.Error())
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func PrintReport(w io.Writer, title string, details []string, err error) {
	fmt.Fprintln(w, RenderReport(title, details, err))
}
