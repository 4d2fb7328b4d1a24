package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"github.com/conorfennell/ankitab/internal/collection"
	"github.com/conorfennell/ankitab/internal/config"
	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/frame"
	"github.com/conorfennell/ankitab/internal/logging"
	"github.com/conorfennell/ankitab/internal/paths"
	"github.com/conorfennell/ankitab/internal/writeback"
)

const usage = `Usage: ankitab <command> [flags]

Commands:
  find      print the path of the collection
  summary   print row counts of every table
  list      print the tags, decks or models in use
  backup    copy the collection into its backup folder
  tag       add or remove note tags and write them back
`

type command func(c *collection.Collection, fs *pflag.FlagSet, out io.Writer) error

var commands = map[string]struct {
	flags func(fs *pflag.FlagSet)
	run   command
}{
	"find":    {run: runFind},
	"summary": {run: runSummary},
	"list":    {flags: listFlags, run: runList},
	"backup":  {run: runBackup},
	"tag":     {flags: tagFlags, run: runTag},
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	fs := pflag.NewFlagSet("ankitab "+os.Args[1], pflag.ExitOnError)
	config.Flags(fs)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	c, err := open(cfg, logger)
	if err != nil {
		slog.Error("Failed to open collection", "error", err)
		os.Exit(1)
	}
	err = cmd.run(c, fs, os.Stdout)
	c.Close()
	if err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func open(cfg *config.Config, logger *slog.Logger) (*collection.Collection, error) {
	finder, err := paths.NewFinder(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	finder.SetLogger(logger)
	finder.MaxDepth = cfg.SearchDepth

	path := cfg.DB
	if path == "" && len(cfg.SearchPaths) > 0 {
		found, err := finder.Find(paths.Query{
			SearchPaths: cfg.SearchPaths,
			MaxDepth:    cfg.SearchDepth,
			User:        cfg.User,
		})
		if err != nil {
			return nil, err
		}
		path = found
	}
	return collection.Open(path, cfg.User,
		collection.WithFinder(finder),
		collection.WithBackupDir(cfg.BackupDir),
		collection.WithGitBackup(cfg.GitBackup),
		collection.WithLogger(logger),
	)
}

func runFind(c *collection.Collection, _ *pflag.FlagSet, out io.Writer) error {
	_, err := fmt.Fprintln(out, c.Path())
	return err
}

func runSummary(c *collection.Collection, _ *pflag.FlagSet, out io.Writer) error {
	info, err := os.Stat(c.Path())
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", c.Path(), err)
	}
	fmt.Fprintf(out, "%s (%s layout, %s, modified %s)\n",
		c.Path(), c.DB().Layout(), humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))

	var rows [][]string
	for _, t := range domain.Tables() {
		f, err := c.Table(t)
		if err != nil {
			return err
		}
		rows = append(rows, []string{t.String(), humanize.Comma(int64(f.Len())), strings.Join(f.Columns(), " ")})
	}
	return writeSummary(out, rows)
}

// writeSummary renders one line per table: name, row count and columns.
func writeSummary(out io.Writer, rows [][]string) error {
	var table = tablewriter.NewWriter(out)
	table.Header("Table", "Rows", "Columns")
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to add summary row %s: %w", row[0], err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	return nil
}

func listFlags(fs *pflag.FlagSet) {
	fs.String("what", "tags", "tags, decks or models")
}

func runList(c *collection.Collection, fs *pflag.FlagSet, out io.Writer) error {
	what, _ := fs.GetString("what")
	var names []string
	var err error
	switch what {
	case "tags":
		names, err = listFrom(c, domain.Notes, (*frame.Frame).ListTags)
	case "decks":
		names, err = listFrom(c, domain.Cards, (*frame.Frame).ListDecks)
	case "models":
		names, err = listFrom(c, domain.Notes, (*frame.Frame).ListModels)
	default:
		return fmt.Errorf("cannot list %q, use tags, decks or models", what)
	}
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	return nil
}

func listFrom(c *collection.Collection, t domain.Table, list func(*frame.Frame) ([]string, error)) ([]string, error) {
	f, err := c.Table(t)
	if err != nil {
		return nil, err
	}
	return list(f)
}

func runBackup(c *collection.Collection, _ *pflag.FlagSet, out io.Writer) error {
	dest, err := c.Backup(time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, dest)
	return err
}

func tagFlags(fs *pflag.FlagSet) {
	fs.StringSlice("add", nil, "tags to add")
	fs.StringSlice("remove", nil, "tags to remove")
	fs.String("where", "", "only edit notes carrying this tag")
	fs.Bool("dry-run", false, "print the changes without writing them")
}

func runTag(c *collection.Collection, fs *pflag.FlagSet, out io.Writer) error {
	add, _ := fs.GetStringSlice("add")
	remove, _ := fs.GetStringSlice("remove")
	where, _ := fs.GetString("where")
	dryRun, _ := fs.GetBool("dry-run")
	if len(add) == 0 && len(remove) == 0 {
		return errors.New("nothing to do, give --add or --remove")
	}

	notes, err := c.Notes()
	if err != nil {
		return err
	}
	var ids []int64
	if where != "" {
		has, err := notes.HasTag(where)
		if err != nil {
			return err
		}
		ids = notes.Select(func(id int64, _ domain.Row) bool { return has[id] })
		if len(ids) == 0 {
			slog.Warn("No note carries the tag", "tag", where)
			return nil
		}
	}
	if len(add) > 0 {
		if err := notes.AddTag(ids, add...); err != nil {
			return err
		}
	}
	if len(remove) > 0 {
		if err := notes.RemoveTag(ids, remove...); err != nil {
			return err
		}
	}

	summary, err := notes.Summarize()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s of %s notes changed\n", humanize.Comma(int64(summary.Modified)), humanize.Comma(int64(summary.N)))
	if dryRun || !summary.HasChanged {
		return nil
	}
	backup, err := c.Write(writeback.Permissions{Modify: true})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "written, backup at %s\n", backup)
	return nil
}
