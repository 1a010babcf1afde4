package harness

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/gostdlib/racefree"
	"github.com/gostdlib/racefree/internal/config"
	"github.com/jszwec/csvutil"
)

// Result is the outcome of one scenario.
type Result struct {
	RunID    string        `json:"runID" csv:"run_id"`
	Scenario string        `json:"scenario" csv:"scenario"`
	Passed   bool          `json:"passed" csv:"passed"`
	Elapsed  string        `json:"elapsed" csv:"elapsed"`
	Detail   string        `json:"detail" csv:"detail"`
	Duration time.Duration `json:"-" csv:"-"`
}

// Report holds the Results of one Runner.Run() call.
type Report struct {
	RunID   string
	Results []Result
}

// Passed reports if every scenario passed.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Render writes the Report to w in format, one of config.FormatText, config.FormatJSON or config.FormatCSV.
func (r Report) Render(w io.Writer, format string) error {
	switch format {
	case config.FormatText:
		return r.renderText(w)
	case config.FormatJSON:
		b, err := json.Marshal(r.Results)
		if err != nil {
			return fmt.Errorf("encoding report as JSON: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	case config.FormatCSV:
		b, err := csvutil.Marshal(r.Results)
		if err != nil {
			return fmt.Errorf("encoding report as CSV: %w", err)
		}
		_, err = w.Write(b)
		return err
	}
	return racefree.InvalidArgument("unknown report format %q", format)
}

func (r Report) renderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RUN\tSCENARIO\tRESULT\tELAPSED\tDETAIL\n")
	for _, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", res.RunID, res.Scenario, status, res.Elapsed, res.Detail)
	}
	return tw.Flush()
}
