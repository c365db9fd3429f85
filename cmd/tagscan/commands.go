// ABOUTME: Subcommand implementations for the tagscan CLI
// ABOUTME: Each command parses its own flags and talks to the closet service

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/tagscan/internal/closet"
	"github.com/2389/tagscan/internal/report"
	"github.com/2389/tagscan/internal/store"
	"github.com/2389/tagscan/internal/tagapi"
)

// responseEnvelope is a raw analysis body, either a result or {"error": {...}}
type responseEnvelope struct {
	Parsed    *tagapi.ParsedTag `json:"parsed"`
	Emissions *tagapi.Emissions `json:"emissions"`
	Error     *tagapi.APIError  `json:"error"`
}

func cmdRecord(ctx context.Context, a *app, args []string) error {
	var req closet.RecordRequest
	var source, errCode, errMessage string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--error", "-e":
			if i+1 < len(args) {
				errCode = args[i+1]
				i++
			}
		case "--message", "-m":
			if i+1 < len(args) {
				errMessage = args[i+1]
				i++
			}
		case "--name", "-n":
			if i+1 < len(args) {
				req.DisplayName = args[i+1]
				i++
			}
		case "--category", "-c":
			if i+1 < len(args) {
				req.Category = args[i+1]
				i++
			}
		case "--id":
			if i+1 < len(args) {
				req.ID = args[i+1]
				i++
			}
		case "--capture":
			if i+1 < len(args) {
				req.CaptureKey = args[i+1]
				i++
			}
		default:
			if source != "" {
				return fmt.Errorf("unexpected argument: %s", args[i])
			}
			source = args[i]
		}
	}

	switch {
	case errCode != "":
		req.Err = &tagapi.APIError{Code: errCode, Message: errMessage}
	case source != "":
		data, err := readSource(a, source)
		if err != nil {
			return err
		}
		if err := decodeOutcome(data, &req); err != nil {
			return err
		}
	default:
		return fmt.Errorf("usage: tagscan record <file|-> or tagscan record --error CODE")
	}

	id, err := a.svc.Record(ctx, req)
	if err != nil {
		if errors.Is(err, closet.ErrDuplicateCapture) {
			color.Yellow("Capture %s was already recorded\n", req.CaptureKey)
		}
		return err
	}

	if req.Err != nil {
		fmt.Fprintf(a.out, "%s %s\n", color.YellowString("Recorded failed scan"), id)
	} else {
		fmt.Fprintf(a.out, "%s %s (%s CO2e)\n", color.GreenString("Recorded scan"), id,
			tagapi.FormatCO2(req.Response.Emissions.TotalKgCO2e))
	}
	return nil
}

func readSource(a *app, source string) ([]byte, error) {
	if source == "-" {
		data, err := io.ReadAll(a.in)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}

// decodeOutcome fills the response or error side of req from a raw body
func decodeOutcome(data []byte, req *closet.RecordRequest) error {
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if env.Error != nil {
		req.Err = env.Error
		return nil
	}
	if env.Parsed == nil && env.Emissions == nil {
		return fmt.Errorf("response has neither a result nor an error")
	}

	resp := &tagapi.Response{}
	if env.Parsed != nil {
		resp.Parsed = *env.Parsed
	}
	if env.Emissions != nil {
		resp.Emissions = *env.Emissions
	}
	req.Response = resp
	return nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	limit, offset := store.DefaultPageSize, 0

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit", "-l":
			if i+1 < len(args) {
				n, err := strconv.Atoi(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid limit: %s", args[i+1])
				}
				limit = n
				i++
			}
		case "--offset", "-o":
			if i+1 < len(args) {
				n, err := strconv.Atoi(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid offset: %s", args[i+1])
				}
				offset = n
				i++
			}
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	scans, err := a.svc.History(ctx, limit, offset)
	if err != nil {
		return fmt.Errorf("listing scans: %w", err)
	}
	printScans(a.out, scans)
	return nil
}

func cmdRecent(ctx context.Context, a *app, args []string) error {
	n := closet.DefaultRecent
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		n = v
	}

	scans, err := a.svc.Recent(ctx, n)
	if err != nil {
		return fmt.Errorf("listing recent scans: %w", err)
	}
	printScans(a.out, scans)
	return nil
}

func cmdCloset(ctx context.Context, a *app, args []string) error {
	scans, err := a.svc.Browse(ctx, closet.ViewCloset, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("listing closet: %w", err)
	}
	printScans(a.out, scans)
	return nil
}

func cmdSearch(ctx context.Context, a *app, args []string) error {
	view := closet.ViewAll
	var terms []string
	for _, arg := range args {
		if arg == "--closet" {
			view = closet.ViewCloset
			continue
		}
		terms = append(terms, arg)
	}

	query := strings.Join(terms, " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("usage: tagscan search <query> [--closet]")
	}

	scans, err := a.svc.Browse(ctx, view, query)
	if err != nil {
		return fmt.Errorf("searching scans: %w", err)
	}
	printScans(a.out, scans)
	return nil
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	var id string
	asHTML := false
	for _, arg := range args {
		if arg == "--html" {
			asHTML = true
			continue
		}
		id = arg
	}
	if id == "" {
		return fmt.Errorf("usage: tagscan show <id> [--html]")
	}

	rec, err := a.svc.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading scan: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("scan not found: %s", id)
	}

	if asHTML {
		html, err := report.HTML(rec)
		if err != nil {
			return err
		}
		fmt.Fprint(a.out, html)
		return nil
	}
	fmt.Fprint(a.out, report.Markdown(rec))
	return nil
}

func cmdClosetSet(ctx context.Context, a *app, args []string, inCloset bool) error {
	if len(args) == 0 {
		return fmt.Errorf("at least one scan id is required")
	}

	for _, id := range args {
		rec, err := a.svc.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("loading scan: %w", err)
		}
		if rec == nil {
			color.Yellow("Skipping unknown scan %s\n", id)
			continue
		}
		if err := a.svc.SetInCloset(ctx, id, inCloset); err != nil {
			return fmt.Errorf("updating closet: %w", err)
		}
		if inCloset {
			fmt.Fprintf(a.out, "%s %s\n", color.GreenString("Added to closet:"), tagapi.DisplayName(rec.DisplayName))
		} else {
			fmt.Fprintf(a.out, "%s %s\n", color.YellowString("Removed from closet:"), tagapi.DisplayName(rec.DisplayName))
		}
	}
	return nil
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("at least one scan id is required")
	}
	if err := a.svc.Remove(ctx, args); err != nil {
		return fmt.Errorf("deleting scans: %w", err)
	}
	fmt.Fprintf(a.out, "%s %d scan(s)\n", color.GreenString("Deleted"), len(args))
	return nil
}

func cmdPrune(ctx context.Context, a *app, args []string) error {
	keep := a.store.MaxScans()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		keep = n
	}
	if keep <= 0 {
		return fmt.Errorf("retention is disabled; pass the number of scans to keep")
	}

	before, _, err := a.svc.Counts(ctx)
	if err != nil {
		return fmt.Errorf("counting scans: %w", err)
	}
	if err := a.svc.Prune(ctx, keep); err != nil {
		return fmt.Errorf("pruning scans: %w", err)
	}
	after, _, err := a.svc.Counts(ctx)
	if err != nil {
		return fmt.Errorf("counting scans: %w", err)
	}

	fmt.Fprintf(a.out, "%s %d scan(s), %d kept\n", color.GreenString("Pruned"), before-after, after)
	return nil
}

func cmdClear(ctx context.Context, a *app) error {
	if err := a.svc.Clear(ctx); err != nil {
		return fmt.Errorf("clearing scans: %w", err)
	}
	fmt.Fprintln(a.out, color.GreenString("Scan history cleared"))
	return nil
}

func cmdOnboarding(ctx context.Context, a *app, args []string) error {
	action := "status"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "status":
		if a.svc.NeedsOnboarding(ctx) {
			fmt.Fprintln(a.out, "Onboarding: not seen")
		} else {
			fmt.Fprintln(a.out, "Onboarding: complete")
		}
		return nil
	case "complete":
		if err := a.svc.CompleteOnboarding(ctx); err != nil {
			return fmt.Errorf("marking onboarding complete: %w", err)
		}
		fmt.Fprintln(a.out, color.GreenString("Onboarding marked complete"))
		return nil
	default:
		return fmt.Errorf("unknown onboarding action: %s (use status or complete)", action)
	}
}

func cmdStats(ctx context.Context, a *app) error {
	total, inCloset, err := a.svc.Counts(ctx)
	if err != nil {
		return fmt.Errorf("counting scans: %w", err)
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Scans:\t%d\n", total)
	fmt.Fprintf(w, "In closet:\t%d\n", inCloset)
	if keep := a.store.MaxScans(); keep > 0 {
		fmt.Fprintf(w, "Retention cap:\t%d\n", keep)
	} else {
		fmt.Fprintf(w, "Retention cap:\tdisabled\n")
	}
	return w.Flush()
}

func printScans(out io.Writer, scans []*store.ScanRecord) {
	if len(scans) == 0 {
		fmt.Fprintln(out, "No scans found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tCO2E\tCLOSET\tSCANNED")
	for _, s := range scans {
		co2 := tagapi.FormatCO2(s.CO2eGrams / 1000)
		if !s.Success {
			code := "failed"
			if s.ErrorCode != nil {
				code = *s.ErrorCode
			}
			co2 = code
		}
		closetMark := ""
		if s.InCloset {
			closetMark = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			truncate(tagapi.DisplayName(s.DisplayName), 30),
			truncate(tagapi.DisplayCategory(s.Category), 16),
			co2,
			closetMark,
			time.UnixMilli(s.CreatedAt).Format("2006-01-02 15:04"),
		)
	}
	w.Flush()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
