package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spigell/cold-mailer/internal/history"
	"github.com/spigell/cold-mailer/internal/portfolio"
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Underline(true)
)

func renderCard(w io.Writer, title, body string) {
	content := titleStyle.Render(title) + "\n\n" + strings.TrimSpace(body)
	fmt.Fprintln(w, cardStyle.Render(content))
}

func renderLinks(w io.Writer, title string, links []string) {
	lines := make([]string, 0, len(links))
	for i, link := range links {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%d.", i+1)), linkStyle.Render(link)))
	}
	if len(lines) == 0 {
		lines = append(lines, labelStyle.Render("no links"))
	}
	renderCard(w, title, strings.Join(lines, "\n"))
}

func renderPortfolio(w io.Writer, entries []portfolio.Entry) {
	lines := make([]string, 0, len(entries))
	for i, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s %s\n   %s", labelStyle.Render(fmt.Sprintf("%2d.", i+1)), entry.TechStack, linkStyle.Render(entry.Link)))
	}
	if len(lines) == 0 {
		lines = append(lines, labelStyle.Render("portfolio is empty"))
	}
	renderCard(w, fmt.Sprintf("Portfolio (%d)", len(entries)), strings.Join(lines, "\n"))
}

func renderHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		renderCard(w, "History", labelStyle.Render("no emails saved yet"))
		return
	}

	for i, entry := range entries {
		title := fmt.Sprintf("#%d %s at %s", i+1, entry.JobTitle, entry.Company)
		meta := labelStyle.Render(fmt.Sprintf("%s · %s · %s", entry.Date, entry.TemplateStyle, entry.URL))
		renderCard(w, title, meta+"\n\n"+entry.Email)
	}
}
