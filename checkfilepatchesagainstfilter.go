package subset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/diff"
)

// LeakedPathError reports that a diff touched a path the filter classifies
// as Outside on one or both sides of the change.
type LeakedPathError struct {
	FromPath string
	ToPath   string
}

// Paths returns every leaked path this error carries, skipping whichever
// side (from/to) the change didn't touch.
func (e *LeakedPathError) Paths() []string {
	if e == nil {
		return nil
	}
	switch {
	case e.FromPath != "" && e.ToPath != "":
		return []string{e.FromPath, e.ToPath}
	case e.FromPath != "":
		return []string{e.FromPath}
	case e.ToPath != "":
		return []string{e.ToPath}
	default:
		return nil
	}
}

func (e *LeakedPathError) Error() string {
	var parts []string
	if e.FromPath != "" {
		parts = append(parts, fmt.Sprintf("leaked from-path: %s", e.FromPath))
	}
	if e.ToPath != "" {
		parts = append(parts, fmt.Sprintf("leaked to-path: %s", e.ToPath))
	}
	return strings.Join(parts, "|")
}

// LeakCheckResult is the outcome of auditing a commit's diff against a
// filter: zero or more paths the diff touched that the filter says should
// have been pruned out of the rewritten tree entirely.
type LeakCheckResult struct {
	Leaks []*LeakedPathError
}

func (r *LeakCheckResult) errs() []error {
	if r == nil || len(r.Leaks) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Leaks))
	for _, e := range r.Leaks {
		errs = append(errs, e)
	}
	return errs
}

// ToError joins every leak into a single error, or nil if there were none.
func (r *LeakCheckResult) ToError() error {
	errs := r.errs()
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// CheckFilePatchAgainstFilter audits filepatches — typically the diff
// between a rewritten commit and its rewritten parent — against filter,
// flagging any from/to path that isn't classified Inside. A non-empty
// result means the rewrite leaked a path the caller asked to have pruned
// (Engine's VerifyNoLeaks uses this to fail a run rather than emit a
// rewritten commit that silently violates the filter it was built from).
func CheckFilePatchAgainstFilter(filepatches []diff.FilePatch, filter Filter) *LeakCheckResult {
	result := &LeakCheckResult{}

	for _, fp := range filepatches {
		fromFile, toFile := fp.Files()

		var leak *LeakedPathError
		if fromFile != nil {
			if path := fromFile.Path(); !filter.Classify(strings.Split(path, "/")).IsIn() {
				leak = &LeakedPathError{FromPath: path}
			}
		}
		if toFile != nil {
			if path := toFile.Path(); !filter.Classify(strings.Split(path, "/")).IsIn() {
				if leak == nil {
					leak = &LeakedPathError{}
				}
				leak.ToPath = path
			}
		}
		if leak != nil {
			result.Leaks = append(result.Leaks, leak)
		}
	}

	return result
}
