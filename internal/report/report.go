// Package report renders reconciliation outcomes for the caller. The engine
// only ever talks to a Reporter; where the lines go (and whether anyone reads
// them) is the consumer's concern.
package report

import (
	"fmt"
	"io"
)

// Reporter writes one line per artifact finding plus an end-of-run summary.
type Reporter struct {
	out     io.Writer
	errOut  io.Writer
	dryRun  bool
	changes bool
}

// New returns a Reporter. Informational lines go to out, warnings to errOut.
func New(out, errOut io.Writer, dryRun bool) *Reporter {
	return &Reporter{out: out, errOut: errOut, dryRun: dryRun}
}

// Planned records an action that would happen (dry-run and check modes).
func (r *Reporter) Planned(action, path string) {
	r.changes = true
	fmt.Fprintf(r.out, "[plan] %s: %s\n", action, path)
}

// Created records a newly created artifact.
func (r *Reporter) Created(label, path string) {
	r.changes = true
	fmt.Fprintf(r.out, "[create] %s: %s\n", label, path)
}

// Updated records a repaired or rebuilt artifact.
func (r *Reporter) Updated(label, path string) {
	r.changes = true
	fmt.Fprintf(r.out, "[update] %s: %s\n", label, path)
}

// Exists records an artifact that was already in order.
func (r *Reporter) Exists(label, path string) {
	fmt.Fprintf(r.out, "[ok] %s: %s (already present)\n", label, path)
}

// Skipped records an artifact deliberately left corrupted.
func (r *Reporter) Skipped(label, path string) {
	fmt.Fprintf(r.errOut, "[skip] %s: %s (left unchanged at user's request)\n", label, path)
}

// Unresolved records an artifact that stays corrupted after negotiation.
func (r *Reporter) Unresolved(label, path, reason string) {
	fmt.Fprintf(r.errOut, "[warn] %s: %s remains corrupted (%s)\n", label, path, reason)
}

// Issue records a check-mode finding.
func (r *Reporter) Issue(message string) {
	r.changes = true
	fmt.Fprintf(r.errOut, "[plan] %s\n", message)
}

// Summarize prints the closing line when nothing needed changing.
func (r *Reporter) Summarize() {
	if r.changes {
		return
	}
	if r.dryRun {
		fmt.Fprintln(r.out, "[plan] Workspace already satisfies all requirements.")
	} else {
		fmt.Fprintln(r.out, "[ok] Workspace already satisfies all requirements.")
	}
}

// ChangesRecorded reports whether any non-trivial line was emitted.
func (r *Reporter) ChangesRecorded() bool {
	return r.changes
}
