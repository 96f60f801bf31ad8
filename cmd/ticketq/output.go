package main

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
)

func (c *cli) printTickets(tickets []domain.Ticket) error {
	if c.opts.JSON {
		if tickets == nil {
			tickets = []domain.Ticket{}
		}
		return writeJSON(c.out, tickets)
	}
	if len(tickets) == 0 {
		_, err := io.WriteString(c.out, "no tickets\n")
		return err
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Priority", "Level", "Status", "Type", "Title", "Creator", "Owner")
	for _, t := range tickets {
		owner := t.Owner
		if owner == "" {
			owner = "<none>"
		}
		if err := table.Append([]string{
			strconv.FormatInt(t.ID, 10),
			strconv.Itoa(t.Priority),
			t.SecurityLevel.String(),
			string(t.Status),
			string(t.Type),
			t.Title,
			t.Creator,
			owner,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func (c *cli) printRequestTypes(types []domain.RequestType) error {
	if c.opts.JSON {
		rows := make([]map[string]any, 0, len(types))
		for _, rt := range types {
			rows = append(rows, map[string]any{
				"type":           rt,
				"label":          rt.Label(),
				"priority":       rt.DefaultPriority(),
				"security_level": rt.DefaultSecurityLevel(),
			})
		}
		return writeJSON(c.out, rows)
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Type", "Priority", "Level", "Description")
	for _, rt := range types {
		if err := table.Append([]string{
			string(rt),
			strconv.Itoa(rt.DefaultPriority()),
			rt.DefaultSecurityLevel().String(),
			rt.Label(),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
