package watcher

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/vespa-garage/vespa-admin/internal/vespa"
)

func formatText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

func formatLowStockMessage(parts []vespa.LowStockPart) string {
	var critical, low []vespa.LowStockPart
	for _, p := range parts {
		if p.IsCritical() {
			critical = append(critical, p)
		} else {
			low = append(low, p)
		}
	}

	var sb strings.Builder
	sb.WriteString(formatText(`
		📦 *Stock alert*
		%d critical, %d low
	`, len(critical), len(low)))

	writeSection(&sb, "🔴 *Critical*", critical)
	writeSection(&sb, "🟡 *Low*", low)
	return sb.String()
}

func writeSection(sb *strings.Builder, title string, parts []vespa.LowStockPart) {
	if len(parts) == 0 {
		return
	}
	sb.WriteString("\n\n")
	sb.WriteString(title)
	for _, p := range parts {
		fmt.Fprintf(sb, "\n• `%s` %s: %d / %d", p.PartCode, escapeMarkdown(p.PartName), p.TotalStock, p.MinStockLevel)
		if p.SupplierName != "" {
			fmt.Fprintf(sb, " (%s)", escapeMarkdown(p.SupplierName))
		}
	}
}

// escapeMarkdown escapes special characters for Telegram Markdown V1.
func escapeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "*", "\\*")
	text = strings.ReplaceAll(text, "_", "\\_")
	text = strings.ReplaceAll(text, "`", "\\`")
	text = strings.ReplaceAll(text, "[", "\\[")
	return text
}
