package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"

	"github.com/pilacorp/go-batchevm-sdk/ledger"
)

var (
	dimColor     = color.New(color.Faint)
	successColor = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	pendingColor = color.New(color.FgYellow)
)

func statusColor(s ledger.Status) *color.Color {
	switch s {
	case ledger.StatusSuccess:
		return successColor
	case ledger.StatusFailed:
		return failColor
	default:
		return pendingColor
	}
}

// printRecords prints ledger records as a table, or as JSON with --json.
func printRecords(w io.Writer, records []ledger.Transaction) error {
	if jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tHASH\tFROM\tTO\tAMOUNT\tGAS USED")
	for _, r := range records {
		to := r.To
		if to == "" {
			to = "(create)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			statusColor(r.Status).Sprint(r.Status), r.Hash, r.From, to, r.Amount, r.GasUsed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, r := range records {
		if r.Error != "" {
			failColor.Fprintf(w, "✗ %s: %s\n", r.From, r.Error)
		}
	}
	return nil
}

// confirm asks a yes/no question. Interrupts and EOF count as no.
func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdout:    os.Stderr,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return true, nil
}
