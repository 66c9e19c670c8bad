package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/miradorstack/helpdesk/internal/models"
	"github.com/miradorstack/helpdesk/internal/patterns"
	"github.com/miradorstack/helpdesk/internal/pipeline"
	"github.com/miradorstack/helpdesk/internal/utils"
)

const (
	promptText = "Helpdesk> "
	banner     = "Welcome to the Local IT Helpdesk Assistant. Type your question and press Enter.\n" +
		"Press Ctrl-C or enter an empty line to exit.\n"
)

type queryHandler interface {
	Handle(ctx context.Context, question string) (pipeline.Result, error)
}

// session is the interactive question loop.
type session struct {
	handler queryHandler
	in      io.Reader
	out     io.Writer
}

func newSession(h queryHandler, in io.Reader, out io.Writer) *session {
	return &session{handler: h, in: in, out: out}
}

// Run prompts until an empty line, end of input or ctx cancellation. A failed
// save is reported and the loop continues.
func (s *session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	fmt.Fprint(s.out, banner+"\n")
	for {
		fmt.Fprint(s.out, promptText)
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\nExiting. Goodbye!")
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out, "\nExiting. Goodbye!")
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if strings.TrimSpace(line) == "" {
				fmt.Fprintln(s.out, "No input received. Exiting. Goodbye!")
				return nil
			}
			if err := answer(ctx, s.handler, line, s.out); err != nil {
				var ioErr *utils.IOFailure
				if !errors.As(err, &ioErr) {
					return err
				}
			}
		}
	}
}

func answerOnce(ctx context.Context, h queryHandler, question string, out io.Writer) error {
	return answer(ctx, h, question, out)
}

func answer(ctx context.Context, h queryHandler, question string, out io.Writer) error {
	res, err := h.Handle(ctx, question)
	var ioErr *utils.IOFailure
	switch {
	case err == nil:
	case errors.As(err, &ioErr):
		fmt.Fprintf(out, "\nAI Response:\n%s\n\n", res.Record.Answer)
		fmt.Fprintf(out, "Warning: this session could not be saved (%v).\n\n", err)
		return err
	default:
		return err
	}

	fmt.Fprintf(out, "\nAI Response:\n%s\n\n", res.Record.Answer)
	fmt.Fprintf(out, "Session logged to: %s (severity: %s, department: %s)\n\n",
		res.Location, res.Record.Severity, res.Record.Department)
	return nil
}

func printRecords(out io.Writer, records []models.IncidentRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No incidents logged.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tRECORD ID\tSEVERITY\tDEPARTMENT\tUSER\tQUESTION")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Timestamp.Format("2006-01-02 15:04:05Z07:00"),
			rec.RecordID,
			rec.Severity,
			rec.Department,
			rec.Username,
			truncate(rec.Question, 60),
		)
	}
	return tw.Flush()
}

func printHotspots(out io.Writer, hotspots []patterns.Hotspot) error {
	if len(hotspots) == 0 {
		_, err := fmt.Fprintln(out, "No incidents logged.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPARTMENT\tINCIDENTS\tSHARE\tWORST\tLAST SEEN\tTOP HOSTS")
	for _, h := range hotspots {
		hosts := strings.Join(h.TopHosts, ", ")
		if hosts == "" {
			hosts = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%s\t%s\t%s\n",
			h.Department,
			h.Count,
			h.Prevalence*100,
			h.WorstSeverity,
			h.LastSeen.Format("2006-01-02 15:04"),
			hosts,
		)
	}
	return tw.Flush()
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
