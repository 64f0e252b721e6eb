package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	subset "github.com/jasonwhite/git-subset"
	"github.com/jasonwhite/git-subset/memostore"
)

// userError marks a failure as a usage mistake (exit code 1) rather than an
// engine failure (exit code 2), per spec.md §6's exit code table.
type userError struct{ err error }

func (e *userError) Error() string { return e.err.Error() }
func (e *userError) Unwrap() error { return e.err }

func newUserError(format string, args ...any) error {
	return &userError{err: fmt.Errorf(format, args...)}
}

type rootCmd struct {
	*cobra.Command

	configPath string

	repo       string
	branch     string
	filterFile string
	paths      []string
	force      bool
	nomap      bool
	quiet      bool
}

// newRootCmd builds the git-subset command tree. Grounded on
// cmd/gitrim-svc/main.go's newRootCmd shape (cobra.Command embedded in a
// named struct, flags bound directly to struct fields) and on
// original_source/src/args.rs's flag set, which this repo's flags match
// one-to-one.
func newRootCmd() *rootCmd {
	c := &rootCmd{
		Command: &cobra.Command{
			Use:   "git-subset [revspec]",
			Short: "Rewrite a git repository's history down to a whitelist of paths",
			Args: func(cmd *cobra.Command, args []string) error {
				if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
					return &userError{err: err}
				}
				return nil
			},
		},
	}
	c.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &userError{err: err}
	})

	flags := c.Flags()
	flags.StringVarP(&c.configPath, "config", "c", "git-subset.yaml", "path to an optional defaults file")
	flags.StringVarP(&c.repo, "repo", "r", ".", "path to the repository")
	flags.StringVarP(&c.branch, "branch", "b", "", "name of the branch to create on the rewritten commits")
	flags.StringVar(&c.filterFile, "filter-file", "", "path to the file containing paths to keep")
	flags.StringArrayVarP(&c.paths, "path", "p", nil, "path to include; can be specified multiple times")
	flags.BoolVarP(&c.force, "force", "f", false, "overwrite the branch if it already exists")
	flags.BoolVar(&c.nomap, "nomap", false, "don't load or save the persisted memo")
	flags.BoolVarP(&c.quiet, "quiet", "q", false, "don't print progress")

	c.RunE = func(cmd *cobra.Command, args []string) error {
		revspec := "HEAD"
		if len(args) == 1 {
			revspec = args[0]
		}
		return c.run(cmd.Context(), revspec)
	}

	return c
}

func (c *rootCmd) run(ctx context.Context, revspec string) error {
	fileCfg, err := loadFileConfig(c.configPath)
	if err != nil {
		return newUserError("failed to read config file %s: %w", c.configPath, err)
	}
	c.applyFileDefaults(fileCfg)

	if c.branch == "" {
		return newUserError("--branch is required")
	}

	filter, err := c.buildFilter()
	if err != nil {
		return newUserError("failed to build filter: %w", err)
	}

	repo, err := gogit.PlainOpen(c.repo)
	if err != nil {
		return newUserError("failed to open repository %s: %w", c.repo, err)
	}
	store := subset.NewGoGitObjectStore(repo)

	start, err := store.ResolveRevision(ctx, revspec)
	if err != nil {
		return newUserError("failed to resolve revision %q: %w", revspec, err)
	}

	memoPath := filepath.Join(c.repo, ".git", "git-subset", "memos.db")
	var memos *memostore.Store
	var treeMemo *subset.TreeMemo
	var commitMemo *subset.CommitMemo

	if !c.nomap {
		if err := os.MkdirAll(filepath.Dir(memoPath), 0o755); err != nil {
			return fmt.Errorf("failed to create memo directory: %w", err)
		}
		memos, err = memostore.Open(memoPath)
		if err != nil {
			return fmt.Errorf("failed to open memo store: %w", err)
		}
		defer memos.Close()

		treeMemo, commitMemo, err = memos.Load(filter.Fingerprint())
		if err != nil {
			// A corrupt memo degrades to empty memos rather than failing
			// the run (spec.md §7's CorruptMemo propagation policy).
			fmt.Fprintf(os.Stderr, "warning: failed to load memo store, starting fresh: %v\n", err)
			treeMemo, commitMemo = nil, nil
		}
	}
	if treeMemo == nil {
		treeMemo = subset.NewTreeMemo()
	}
	if commitMemo == nil {
		commitMemo = subset.NewCommitMemo()
	}

	engine := subset.NewEngine(store)
	cfg := subset.RunConfig{
		Start:      start,
		Filter:     filter,
		Branch:     c.branch,
		Force:      c.force,
		TreeMemo:   treeMemo,
		CommitMemo: commitMemo,
	}
	if !c.quiet {
		cfg.Progress = func(done, total int, id subset.ObjectID) {
			fmt.Fprintf(os.Stderr, "\rRewriting %s (%d/%d)", id, done, total)
		}
	}

	result, err := engine.Run(ctx, cfg)
	if err != nil {
		if errors.Is(err, subset.ErrBranchExists) || errors.Is(err, subset.ErrEmptyFilter) || errors.Is(err, subset.ErrEmptyHistory) {
			return newUserError("%w", err)
		}
		return fmt.Errorf("engine failed: %w", err)
	}
	if !c.quiet {
		fmt.Fprintln(os.Stderr)
	}

	if memos != nil {
		if err := memos.Save(filter.Fingerprint(), treeMemo, commitMemo); err != nil {
			return fmt.Errorf("failed to save memo store: %w", err)
		}
	}

	fmt.Printf("Branch %q updated to %s.\n", c.branch, result.Head)
	return nil
}

func (c *rootCmd) applyFileDefaults(fileCfg *fileConfig) {
	if c.repo == "." && fileCfg.Repo != "" {
		c.repo = fileCfg.Repo
	}
	if c.branch == "" && fileCfg.Branch != "" {
		c.branch = fileCfg.Branch
	}
	if !c.nomap && fileCfg.NoMap {
		c.nomap = true
	}
	if !c.force && fileCfg.Force {
		c.force = true
	}
}

func (c *rootCmd) buildFilter() (*subset.PatternFilter, error) {
	var lines []subset.PatternLine

	if c.filterFile != "" {
		fileLines, err := subset.LoadPatterns(c.filterFile)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fileLines...)
	}

	for _, p := range c.paths {
		pathLines, err := subset.LoadPatternsFromString(p)
		if err != nil {
			return nil, err
		}
		lines = append(lines, pathLines...)
	}

	if len(lines) == 0 {
		return nil, errors.New("specify paths to include with either --filter-file or --path")
	}

	return subset.NewPatternFilter(lines), nil
}
