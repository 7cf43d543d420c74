package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
	"k8s.io/client-go/util/jsonpath"

	"github.com/frobware/go-flowreprog/client"
	"github.com/frobware/go-flowreprog/compute"
)

// FormatFlowInfo formats a single flow according to the output flags.
func FormatFlowInfo(info client.FlowInfo, flags *OutputFlags) (string, error) {
	return format(info, flags, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, " Name:\t%s\n", info.Entry.Name)
		fmt.Fprintf(w, " Priority:\t%d\n", info.Entry.Priority)
		fmt.Fprintf(w, " Match:\t%s\n", info.Entry.Match)
		fmt.Fprintf(w, " Action:\t%s\n", info.Entry.Action)
		fmt.Fprintf(w, " Status:\t%s\n", statusColumn(info))
		fmt.Fprintf(w, " Packets:\t%d\n", info.Counters.Packets)
		fmt.Fprintf(w, " Bytes:\t%d\n", info.Counters.Bytes)
		if info.Phase != 0 {
			fmt.Fprintf(w, " Reprogramming:\t%s\n", info.Phase)
		}
	})
}

// FormatFlowList formats configured flows according to the output
// flags.
func FormatFlowList(flows []client.FlowInfo, flags *OutputFlags) (string, error) {
	return format(flows, flags, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "NAME\tPRIORITY\tSTATUS\tPACKETS\tMATCH\tACTION")
		for _, f := range flows {
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%s\n",
				f.Entry.Name, f.Entry.Priority, statusColumn(f), f.Counters.Packets, f.Entry.Match, f.Entry.Action)
		}
	})
}

// FormatPending formats in-flight requests according to the output
// flags.
func FormatPending(reqs []compute.Request, flags *OutputFlags) (string, error) {
	return format(reqs, flags, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "NAME\tPHASE\tGENERATION\tAPPLIED\tAWAIT\tOP ID\tSTARTED")
		for _, r := range reqs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
				r.Name(), r.Phase, r.Generation, r.Applied, awaitColumn(r.Await), r.OpID, r.Started.Format("2006-01-02T15:04:05Z07:00"))
		}
	})
}

// FormatUpdateResult formats the response to an update.
func FormatUpdateResult(res client.UpdateResult, flags *OutputFlags) (string, error) {
	return format(res, flags, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, " Name:\t%s\n", res.Name)
		if res.Pending == nil {
			fmt.Fprintf(w, " State:\t%s\n", "applied")
			return
		}
		fmt.Fprintf(w, " State:\t%s\n", "reprogramming")
		fmt.Fprintf(w, " Phase:\t%s\n", res.Pending.Phase)
		fmt.Fprintf(w, " Awaiting:\t%s\n", awaitColumn(res.Pending.Await))
		fmt.Fprintf(w, " Op ID:\t%s\n", res.Pending.OpID)
	})
}

// FormatClassifyResult formats a classification.
func FormatClassifyResult(res client.ClassifyResult, flags *OutputFlags) (string, error) {
	return format(res, flags, func(w *tabwriter.Writer) {
		if !res.Matched || res.Entry == nil {
			fmt.Fprintf(w, " Matched:\t%s\n", "no")
			return
		}
		fmt.Fprintf(w, " Matched:\t%s\n", res.Entry.Name)
		fmt.Fprintf(w, " Priority:\t%d\n", res.Entry.Priority)
		fmt.Fprintf(w, " Action:\t%s\n", res.Entry.Action)
	})
}

func statusColumn(info client.FlowInfo) string {
	if info.RejectedReason != nil {
		return fmt.Sprintf("%s (%s)", info.Status, info.RejectedReason)
	}
	return info.Status.String()
}

func awaitColumn(a compute.Await) string {
	if a.Ordinal == 0 {
		return a.Name
	}
	return fmt.Sprintf("%s#%d", a.Name, a.Ordinal)
}

func format(v any, flags *OutputFlags, table func(w *tabwriter.Writer)) (string, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		return formatJSON(v)
	case OutputFormatYAML:
		return formatYAML(v)
	case OutputFormatJSONPath:
		return formatJSONPath(v, flags.JSONPathExpr())
	default:
		var b strings.Builder
		w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		table(w)
		w.Flush()
		return b.String(), nil
	}
}

func formatJSON(v any) (string, error) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output) + "\n", nil
}

// formatYAML renders v's JSON form as YAML so that both formats share
// field names and text encodings.
func formatYAML(v any) (string, error) {
	data, err := generic(v)
	if err != nil {
		return "", err
	}
	output, err := yaml.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output), nil
}

func formatJSONPath(v any, expr string) (string, error) {
	jp := jsonpath.New("output")
	if err := jp.Parse(expr); err != nil {
		return "", fmt.Errorf("invalid jsonpath expression %q: %w", expr, err)
	}

	data, err := generic(v)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := jp.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("jsonpath execution failed: %w", err)
	}
	return buf.String() + "\n", nil
}

func generic(v any) (any, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}
	var data any
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal: %w", err)
	}
	return data, nil
}
