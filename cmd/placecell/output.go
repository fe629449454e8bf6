package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v2"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// render writes v as JSON or YAML, or calls table for the default layout.
func (a *app) render(v any, table func(tw *tabwriter.Writer)) error {
	switch a.format {
	case formatJSON:
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		// Round-trip through JSON so the json tags name the keys.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = a.out.Write(out)
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

// message prints a server confirmation in table mode, or wraps it for the
// structured formats.
func (a *app) message(msg string, extra map[string]any) error {
	if a.format == formatTable {
		if msg != "" {
			a.printf("%s\n", msg)
		}
		return nil
	}
	body := map[string]any{"message": msg}
	for k, v := range extra {
		body[k] = v
	}
	return a.render(body, nil)
}

// note prints a status line above a table; structured output omits it.
func (a *app) note(msg string) {
	if a.format == formatTable && msg != "" {
		a.printf("%s\n", msg)
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " LPA"
}

func row(tw *tabwriter.Writer, cols ...any) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
}
