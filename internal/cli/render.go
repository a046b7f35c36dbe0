package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"salesforce-query-workers/internal/models"
	"salesforce-query-workers/internal/pipeline"
)

const (
	outputText  = "text"
	outputTable = "table"
	outputJSON  = "json"
)

func renderJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderOutcome(w io.Writer, format string, out pipeline.Outcome) error {
	switch format {
	case outputJSON:
		return renderJSON(w, struct {
			pipeline.Outcome
			Message string `json:"message"`
		}{out, out.Message()})
	case outputTable:
		t := newTable(w)
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRow(table.Row{"Outcome", out.Kind})
		t.AppendRow(table.Row{"Message", out.Message()})
		if out.Entity != "" {
			t.AppendRow(table.Row{"Object", out.Entity})
		}
		if out.SOQL != "" {
			t.AppendRow(table.Row{"SOQL", out.SOQL})
		}
		if out.IsSuccess() {
			t.AppendRow(table.Row{"Records", out.RecordCount})
		}
		t.AppendRow(table.Row{"Run", out.RunID})
		t.Render()
		return nil
	default:
		_, err := fmt.Fprintln(w, out.Message())
		return err
	}
}

func renderEntities(w io.Writer, format string, descriptors []models.EntityDescriptor) error {
	switch format {
	case outputJSON:
		return renderJSON(w, descriptors)
	case outputTable:
		t := newTable(w)
		t.AppendHeader(table.Row{"Name", "Label", "Queryable", "Layoutable"})
		for _, d := range descriptors {
			t.AppendRow(table.Row{d.Name, d.Label, d.Queryable, d.Layoutable})
		}
		t.AppendFooter(table.Row{"", "", "", len(descriptors)})
		t.Render()
		return nil
	default:
		for _, d := range descriptors {
			if _, err := fmt.Fprintln(w, d.Name); err != nil {
				return err
			}
		}
		return nil
	}
}

func renderFields(w io.Writer, format string, fields []models.FieldDescriptor) error {
	switch format {
	case outputJSON:
		return renderJSON(w, fields)
	case outputTable:
		t := newTable(w)
		t.AppendHeader(table.Row{"Name", "Type", "Label", "Nillable", "Values"})
		for _, f := range fields {
			t.AppendRow(table.Row{deref(f.Name), deref(f.Type), deref(f.Label), derefBool(f.Nillable), strings.Join(f.PicklistValues, ", ")})
		}
		t.Render()
		return nil
	default:
		for _, f := range fields {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", deref(f.Name), deref(f.Type)); err != nil {
				return err
			}
		}
		return nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) string {
	if b == nil {
		return ""
	}
	return fmt.Sprint(*b)
}
