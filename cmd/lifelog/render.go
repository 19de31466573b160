package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/aschepis/backscratcher/lifelog/citation"
	"github.com/aschepis/backscratcher/lifelog/conversations"
	"github.com/aschepis/backscratcher/lifelog/graph"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"github.com/aschepis/backscratcher/lifelog/memory"
	"github.com/aschepis/backscratcher/lifelog/service"
)

const snippetRunes = 60

// displayLocale falls back to English for unknown values; it only affects
// date formatting.
func (a *app) displayLocale() locale.Locale {
	if a.locale == "" {
		return locale.Default
	}
	loc, err := locale.Parse(a.locale)
	if err != nil {
		return locale.English
	}
	return loc
}

func snippet(m memory.Memory) string {
	text := strings.Join(strings.Fields(m.Content), " ")
	switch {
	case text != "":
	case m.Analysis != nil && m.Analysis.Summary != "":
		text = m.Analysis.Summary
	default:
		text = "[" + m.MediaType.Kind() + "]"
	}
	runes := []rune(text)
	if len(runes) > snippetRunes {
		return string(runes[:snippetRunes-1]) + "…"
	}
	return text
}

func renderMemories(w io.Writer, mems []memory.Memory, loc locale.Locale) error {
	if len(mems) == 0 {
		_, err := fmt.Fprintln(w, "No memories yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tMOOD\tMEMORY")
	for _, m := range mems {
		mood := "-"
		if m.Analysis != nil {
			mood = m.Analysis.Mood
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, loc.FormatDate(m.CreatedAt.Local()), mood, snippet(m))
	}
	return tw.Flush()
}

func renderExchanges(w io.Writer, exchanges []conversations.Exchange, loc locale.Locale) error {
	if len(exchanges) == 0 {
		_, err := fmt.Fprintln(w, "No questions asked yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tMODEL\tQUESTION\tSOURCES")
	for _, e := range exchanges {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", loc.FormatDate(e.CreatedAt.Local()), e.ModelID, e.Query, len(e.CitedIDs))
	}
	return tw.Flush()
}

func renderAnalysis(w io.Writer, a memory.AIAnalysis) {
	fmt.Fprintf(w, "Mood:    %s\n", a.Mood)
	fmt.Fprintf(w, "Summary: %s\n", a.Summary)
	fmt.Fprintf(w, "Tags:    %s\n", strings.Join(a.Tags, ", "))
	fmt.Fprintf(w, "Color:   %s\n", a.Color)
	if a.AnalyzedByModel != "" {
		fmt.Fprintf(w, "Model:   %s\n", a.AnalyzedByModel)
	}
}

// renderAnswer prints the answer with citations as numbered footnotes.
// Citations of unknown memories print as [?].
func renderAnswer(w io.Writer, answer *service.Answer, sources map[string]memory.Memory, loc locale.Locale) {
	unresolved := make(map[string]bool, len(answer.Unresolved))
	for _, id := range answer.Unresolved {
		unresolved[id] = true
	}
	text, ids := citation.Footnotes(answer.Segments, func(id string) bool { return !unresolved[id] })

	fmt.Fprintln(w, text)
	if len(ids) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, id := range ids {
		m, ok := sources[id]
		if !ok {
			fmt.Fprintf(w, "[%d] %s\n", i+1, id)
			continue
		}
		fmt.Fprintf(w, "[%d] %s  %s\n", i+1, loc.FormatDate(m.CreatedAt.Local()), snippet(m))
	}
}

func renderGraph(w io.Writer, view *service.GraphView) {
	if view.InsufficientData || len(view.Nodes) == 0 {
		fmt.Fprintf(w, "Not enough data to build a graph with %s.\n", view.Model)
		return
	}
	labels := make(map[string]string, len(view.Nodes))
	for _, n := range view.Nodes {
		labels[n.ID] = n.Label
	}
	fmt.Fprintf(w, "%d memories, %d links (%s)\n", len(view.Nodes), len(view.Links), view.Model)
	for _, n := range view.Nodes {
		fmt.Fprintf(w, "  %-24s %-10s (%.0f, %.0f)\n", n.Label, groupName(n.Node), n.X, n.Y)
	}
	for _, l := range view.Links {
		line := fmt.Sprintf("  %s -> %s", labels[l.Source], labels[l.Target])
		if l.Reason != "" {
			line += ": " + l.Reason
		}
		fmt.Fprintln(w, line)
	}
}

func groupName(n graph.Node) string {
	if n.Group == "" {
		return "-"
	}
	return n.Group
}

func renderModels(w io.Writer, models []service.ModelInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tPROVIDER\tCLASS\tKEY\t")
	for _, m := range models {
		key := "-"
		if m.Configured {
			key = "set"
		}
		id := m.ID
		if m.Default {
			id += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", id, m.Provider, m.Class, key)
	}
	return tw.Flush()
}
