package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/spendboard/spendboard/internal/aggregation"
)

func parseFormat(raw string) (string, error) {
	switch format := strings.ToLower(strings.TrimSpace(raw)); format {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatTable:
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown --format %q (expected json, yaml or table)", raw)
	}
}

func renderResult(out io.Writer, format string, result *aggregation.Result) error {
	if format == FormatTable {
		return renderTables(out, result)
	}
	return encode(out, format, result)
}

func encode(out io.Writer, format string, v any) error {
	if format == FormatYAML {
		data, err := toYAML(v)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// toYAML goes through the JSON encoding so summary rows keep their column order.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("convert to yaml: %w", err)
	}
	blockStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

func renderTables(out io.Writer, result *aggregation.Result) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "Exchange rate GBP->USD: %s\n", strconv.FormatFloat(result.ExchangeRate, 'f', -1, 64))
	_, _ = fmt.Fprintf(tw, "Transactions: %d\n\n", len(result.RawTransactions))
	writeSummary(tw, "By team", aggregation.ColumnTeam, aggregation.ColumnCategory, result.TeamSummary)
	_, _ = fmt.Fprintln(tw)
	writeSummary(tw, "By category", aggregation.ColumnCategory, aggregation.ColumnTeam, result.CategorySummary)
	return tw.Flush()
}

func writeSummary(w io.Writer, title, primary, secondary string, rows []aggregation.SummaryRow) {
	_, _ = fmt.Fprintln(w, title)
	_, _ = fmt.Fprintf(w, "%s\t%s\tUSD\tGBP\tTotal USD\t\n", primary, secondary)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			row.Primary, row.Secondary,
			row.USD.StringFixed(2), row.GBP.StringFixed(2), row.Total.StringFixed(2))
	}
}
