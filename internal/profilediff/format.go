package profilediff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the diff result as human-readable text.
func FormatText(r *DiffResult) string {
	if !r.HasChanges {
		return fmt.Sprintf("Profile diff: %s → %s\n\nNo changes detected.\n", r.Old, r.New)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Profile diff: %s → %s\n", r.Old, r.New)

	topLevel := filterTopLevel(r.Changes)
	ranges := filterChanges(r.Changes, "carb_ranges.")
	guardrails := filterChanges(r.Changes, "guardrails.")

	if len(topLevel) > 0 {
		b.WriteString("\n")
		for _, c := range topLevel {
			writeChange(&b, "  %-24s", c.Field, c)
		}
	}

	if len(ranges) > 0 {
		b.WriteString("\n  Carb Ranges:\n")
		for _, c := range ranges {
			writeChange(&b, "    %-18s", strings.TrimPrefix(c.Field, "carb_ranges."), c)
		}
	}

	if len(guardrails) > 0 {
		b.WriteString("\n  Guardrails:\n")
		for _, c := range guardrails {
			writeChange(&b, "    %-18s", strings.TrimPrefix(c.Field, "guardrails."), c)
		}
	}

	for _, list := range []string{"blocked", "preferred"} {
		var lines []string
		for _, tc := range r.TermChanges {
			if tc.List != list {
				continue
			}
			switch tc.Type {
			case "added":
				lines = append(lines, "    + "+tc.Term)
			case "removed":
				lines = append(lines, "    - "+tc.Term)
			}
		}
		if len(lines) > 0 {
			fmt.Fprintf(&b, "\n  %s%s:\n", strings.ToUpper(list[:1]), list[1:])
			b.WriteString(strings.Join(lines, "\n"))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeChange(b *strings.Builder, format, name string, c Change) {
	fmt.Fprintf(b, format, name+":")
	fmt.Fprintf(b, " %s → %s", c.Old, c.New)
	if c.Comment != "" {
		fmt.Fprintf(b, "  (%s)", c.Comment)
	}
	b.WriteString("\n")
}

// FormatJSON renders the diff result as JSON.
func FormatJSON(r *DiffResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff result: %w", err)
	}
	return string(data), nil
}

func filterChanges(changes []Change, prefix string) []Change {
	var out []Change
	for _, c := range changes {
		if strings.HasPrefix(c.Field, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func filterTopLevel(changes []Change) []Change {
	var out []Change
	for _, c := range changes {
		if !strings.Contains(c.Field, ".") {
			out = append(out, c)
		}
	}
	return out
}
