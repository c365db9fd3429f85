// ABOUTME: Renders a scan record as the results view, in Markdown or HTML
// ABOUTME: HTML output goes through goldmark so both forms share one template

package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/tagscan/internal/store"
	"github.com/2389/tagscan/internal/tagapi"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders rec as a Markdown document. A result_json that does not
// decode is reported inline rather than failing the whole view.
func Markdown(rec *store.ScanRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", escape(tagapi.DisplayName(rec.DisplayName)))
	fmt.Fprintf(&b, "*%s* · %s", escape(strings.ToUpper(tagapi.DisplayCategory(rec.Category))),
		time.UnixMilli(rec.CreatedAt).UTC().Format("Jan 02, 2006 15:04 UTC"))
	if rec.InCloset {
		b.WriteString(" · in closet")
	}
	b.WriteString("\n\n")

	if !rec.Success {
		code := ""
		if rec.ErrorCode != nil {
			code = *rec.ErrorCode
		}
		fmt.Fprintf(&b, "**Scan failed.** %s\n", tagapi.FriendlyMessage(code, ""))
		if code != "" {
			fmt.Fprintf(&b, "\nError code: `%s`\n", code)
		}
		return b.String()
	}

	result, err := tagapi.DecodeResult(rec.ResultJSON)
	if err != nil {
		fmt.Fprintf(&b, "**%s** CO2e\n\n_Stored result could not be read._\n", tagapi.FormatCO2(rec.CO2eGrams/1000))
		return b.String()
	}

	total := rec.CO2eGrams / 1000
	if result != nil && result.Emissions != nil {
		total = result.Emissions.TotalKgCO2e
	}
	fmt.Fprintf(&b, "**%s** Carbon Dioxide Equivalent\n", tagapi.FormatCO2(total))

	if result == nil {
		return b.String()
	}

	if result.Emissions != nil {
		writeBreakdown(&b, *result.Emissions)
	}
	if result.Parsed != nil {
		writeParsed(&b, *result.Parsed)
	}
	return b.String()
}

// HTML renders rec as an HTML fragment
func HTML(rec *store.ScanRecord) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(rec)), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}

func writeBreakdown(b *strings.Builder, e tagapi.Emissions) {
	rows := tagapi.BreakdownRows(e)
	if len(rows) == 0 {
		return
	}

	b.WriteString("\n## Breakdown\n\n")
	b.WriteString("| Stage | kg CO2e |\n")
	b.WriteString("| --- | ---: |\n")
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %.2f |\n", row.Label, row.Value)
	}

	if len(e.Assumptions) > 0 {
		keys := make([]string, 0, len(e.Assumptions))
		for k := range e.Assumptions {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("\n### Assumptions\n\n")
		for _, k := range keys {
			fmt.Fprintf(b, "- %s: %v\n", escape(k), e.Assumptions[k])
		}
	}
}

func writeParsed(b *strings.Builder, p tagapi.ParsedTag) {
	if len(p.Materials) > 0 {
		b.WriteString("\n## Materials\n\n")
		for _, m := range p.Materials {
			fmt.Fprintf(b, "- %s %g%%\n", escape(m.Fiber), m.Pct)
		}
	}

	care := []struct {
		label string
		value *string
	}{
		{"Washing", p.Care.Washing},
		{"Drying", p.Care.Drying},
		{"Ironing", p.Care.Ironing},
		{"Dry cleaning", p.Care.DryCleaning},
	}
	var lines []string
	for _, c := range care {
		if c.value != nil && *c.value != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s\n", c.label, escape(*c.value)))
		}
	}
	if len(lines) > 0 {
		b.WriteString("\n## Care\n\n")
		for _, l := range lines {
			b.WriteString(l)
		}
	}

	if p.Country != nil && *p.Country != "" {
		fmt.Fprintf(b, "\nMade in %s\n", escape(*p.Country))
	}
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`,
	"[", `\[`, "]", `\]`, "|", `\|`, "<", "&lt;", ">", "&gt;",
)

// escape keeps user and service text from being read as Markdown or HTML
func escape(s string) string {
	return mdEscaper.Replace(s)
}
