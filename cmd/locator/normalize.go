package main

import (
	"strings"

	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/couchcryptid/member-locator/internal/location"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <location>...",
		Short: "Show the canonical form, classification and scope ladder of locations.",
		Args:  cobra.MinimumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			t := newTable()
			t.AppendHeader(table.Row{"Input", "Canonical", "Country", "Postal code", "Scopes"})
			t.AppendRows(normalizeRows(args))
			t.Render()
		},
	}
}

func normalizeRows(inputs []string) []table.Row {
	tbl := location.DefaultTable()
	normalizer := location.NewNormalizer(tbl, location.DefaultRules())
	classifier := location.NewClassifier(tbl)

	rows := make([]table.Row, 0, len(inputs))
	for _, raw := range inputs {
		canonical := normalizer.Normalize(raw)
		if canonical == "" {
			rows = append(rows, table.Row{raw, "(unusable)", "", "", ""})
			continue
		}
		cl := classifier.Classify(raw, canonical)
		scopes := domain.Ladder(cl.Country, cl.PostalCode)
		for i, s := range scopes {
			if s == "" {
				scopes[i] = "*"
			}
		}
		rows = append(rows, table.Row{raw, canonical, cl.Country, cl.PostalCode, strings.Join(scopes, " → ")})
	}
	return rows
}
