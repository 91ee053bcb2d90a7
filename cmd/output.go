package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/siting-cli/internal/model"
	"github.com/sells-group/siting-cli/internal/pipeline"
)

func checkFormat(format string) error {
	switch format {
	case "table", "csv", "json", "yaml":
		return nil
	}
	return eris.Errorf("unknown output format %q (table, csv, json, yaml)", format)
}

func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	}
	return eris.Errorf("format %q is not structured", format)
}

// writeSites writes the selected sites of out. json and yaml include the
// whole run output.
func writeSites(w io.Writer, format string, out *pipeline.Output) error {
	switch format {
	case "json", "yaml":
		return writeStructured(w, format, out)
	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"rank", "id", "lat", "lon", "benefit", "neighbour_score", "population"})
		for i, s := range out.Sites {
			_ = cw.Write([]string{
				strconv.Itoa(i + 1),
				s.ID,
				formatFloat(s.Point.Lat),
				formatFloat(s.Point.Lon),
				formatFloat(s.BenefitScore),
				formatFloat(s.NeighbourScore),
				formatFloat(s.PopulationCovariate),
			})
		}
		cw.Flush()
		return cw.Error()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RANK\tID\tLAT\tLON\tBENEFIT\tNEIGHBOUR\tPOPULATION")
	_, _ = fmt.Fprintln(tw, "----\t--\t---\t---\t-------\t---------\t----------")
	for i, s := range out.Sites {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%.6f\t%.6f\t%.2f\t%.2f\t%.2f\n",
			i+1, s.ID, s.Point.Lat, s.Point.Lon, s.BenefitScore, s.NeighbourScore, s.PopulationCovariate)
	}
	_ = tw.Flush()

	_, _ = fmt.Fprintf(w, "\nCandidates: %d  Excluded: %d  Selected: %d\n", len(out.Candidates), len(out.Excluded), len(out.Sites))
	_, _ = fmt.Fprintf(w, "Objective: %.2f  Net benefit: %.2f  Nodes: %d  Duration: %dms\n",
		out.Objective, out.NetBenefit, out.Nodes, out.DurationMS)
	if out.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run: %s\n", out.RunID)
	}
	return nil
}

// writeCandidates writes scored candidates.
func writeCandidates(w io.Writer, format string, cands []model.Candidate) error {
	switch format {
	case "json", "yaml":
		return writeStructured(w, format, cands)
	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"id", "kind", "name", "lat", "lon", "neighbour_score", "population", "benefit"})
		for _, c := range cands {
			_ = cw.Write([]string{
				c.ID, c.Kind, c.Name,
				formatFloat(c.Point.Lat),
				formatFloat(c.Point.Lon),
				formatFloat(c.NeighbourScore),
				formatFloat(c.PopulationCovariate),
				formatFloat(c.BenefitScore),
			})
		}
		cw.Flush()
		return cw.Error()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tKIND\tNAME\tNEIGHBOUR\tPOPULATION\tBENEFIT")
	_, _ = fmt.Fprintln(tw, "--\t----\t----\t---------\t----------\t-------")
	for _, c := range cands {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\n",
			c.ID, c.Kind, truncate(c.Name, 30), c.NeighbourScore, c.PopulationCovariate, c.BenefitScore)
	}
	return tw.Flush()
}

// writeIDs writes excluded candidate IDs.
func writeIDs(w io.Writer, format string, ids []string) error {
	switch format {
	case "json", "yaml":
		return writeStructured(w, format, ids)
	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"id"})
		for _, id := range ids {
			_ = cw.Write([]string{id})
		}
		cw.Flush()
		return cw.Error()
	}
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
