package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/taskman/formats"
	"github.com/arthur-debert/taskman/taskman/query"
	"github.com/arthur-debert/taskman/taskman/tasks"
	"github.com/arthur-debert/taskman/types"
)

// parseSort reads key[:asc|desc] sort flags
func parseSort(values []string) ([]types.SortClause, error) {
	if len(values) == 0 {
		return tasks.DefaultSort, nil
	}
	clauses := make([]types.SortClause, 0, len(values))
	for _, v := range values {
		key, dir, _ := strings.Cut(v, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, NewValidationError("search", "sort", v, "Use --sort key or --sort key:desc")
		}
		switch strings.ToLower(dir) {
		case "", "asc":
			clauses = append(clauses, types.Ascending(key))
		case "desc":
			clauses = append(clauses, types.Descending(key))
		default:
			return nil, NewValidationError("search", "sort direction", dir, "Use asc or desc")
		}
	}
	return clauses, nil
}

func (cli *CLI) searchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [text or (grammar query)]",
		Short: "Search task documents",
		Long: `Search task documents of the configured metadata type.

Free text is matched against the title, the description, the translated
state and, when it reads as a date (2024, 2024-03, 2024-03-01), against the
start/stop range. Input wrapped in parentheses is parsed as a query:

  taskman search '(project: "Work" AND state: "Open")'
  taskman search '(start: >= "2024-01")' --sort start:desc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sortFlags, _ := cmd.Flags().GetStringSlice("sort")
			sortOn, err := parseSort(sortFlags)
			if err != nil {
				return err
			}
			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
				return cli.interactiveSearch(cmd, app, sortOn)
			}
			return cli.runSearch(cmd.Context(), cmd.OutOrStdout(), app, strings.Join(args, " "), sortOn)
		},
	}
	cmd.Flags().StringSlice("sort", nil, "Sort on key[:asc|desc] (repeatable, default start)")
	cmd.Flags().BoolP("interactive", "i", false, "Read queries from stdin, one per line, debounced")
	return cmd
}

func (cli *CLI) runSearch(ctx context.Context, w io.Writer, app *App, input string, sortOn []types.SortClause) error {
	resp, err := app.tasks.SearchDocuments(ctx, input, sortOn)
	if err != nil {
		return WrapError("search", err)
	}
	return cli.output().Write(w, resp, func() Table {
		return documentTable(resp.Docs())
	})
}

// interactiveSearch runs the search for the last line typed once input has
// been quiet for the debounce delay. The last line is always searched
// before returning.
func (cli *CLI) interactiveSearch(cmd *cobra.Command, app *App, sortOn []types.SortClause) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	debouncer := tasks.NewDebouncer(app.debounce)

	var (
		mu      sync.Mutex
		done    int
		lastErr error
	)
	run := func(seq int, input string) {
		mu.Lock()
		defer mu.Unlock()
		if seq <= done {
			return
		}
		done = seq
		if err := cli.runSearch(ctx, w, app, input, sortOn); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			lastErr = err
			return
		}
		lastErr = nil
	}

	seq := 0
	last := ""
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		seq++
		current, input := seq, scanner.Text()
		last = input
		debouncer.Trigger(func() { run(current, input) })
	}
	debouncer.Stop()
	if err := scanner.Err(); err != nil {
		return WrapError("read search input", err)
	}
	if seq > 0 {
		run(seq, last)
	}

	mu.Lock()
	defer mu.Unlock()
	return lastErr
}

func (cli *CLI) explainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <text or (grammar query)>",
		Short: "Print the query tree a search input compiles to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadataType := cli.viperInst.GetString("metadata-type")
			pred, err := query.Build(metadataType, strings.Join(args, " "))
			if err != nil {
				return WrapError("explain", err)
			}
			data, err := json.MarshalIndent(pred, "", "  ")
			if err != nil {
				return WrapError("explain", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func (cli *CLI) showCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			doc, err := app.tasks.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return WrapError("show document", err)
			}

			if as, _ := cmd.Flags().GetString("as"); as != "" {
				format, err := formats.Get(as)
				if err != nil {
					return WrapError("show document", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), format.Render(doc))
				return nil
			}
			return cli.output().Write(cmd.OutOrStdout(), doc, func() Table {
				return fieldTable(doc)
			})
		},
	}
	cmd.Flags().String("as", "", "Render as a text document ("+strings.Join(formats.List(), "|")+")")
	return cmd
}

func fieldTable(doc types.Document) Table {
	t := Table{Header: []string{"FIELD", "VALUE"}}
	for _, key := range sortedFields(doc) {
		value := doc[key]
		text, ok := value.(string)
		if !ok {
			data, _ := json.Marshal(value)
			text = string(data)
		}
		t.Rows = append(t.Rows, []string{key, text})
	}
	return t
}

func sortedFields(doc types.Document) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		if k != types.AttachmentsKey {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == types.IDKey || keys[j] == types.IDKey {
			return keys[i] == types.IDKey
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (cli *CLI) saveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <file|->",
		Short: "Create or replace a document from a JSON, markdown or plaintext file",
		Long: `Create or replace a document.

The file format follows the extension: .json files hold the document
itself, .md and .txt files are read with the markdown and plaintext formats.
Use - to read stdin, together with --as for text formats. Documents without
an _id are created; the new id is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			as, _ := cmd.Flags().GetString("as")
			doc, err := readDocument(cmd.InOrStdin(), args[0], as)
			if err != nil {
				return err
			}
			if id, _ := cmd.Flags().GetString("id"); id != "" {
				doc.SetID(id)
			}

			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			id, err := app.tasks.SaveDocument(cmd.Context(), doc)
			if err != nil {
				return WrapError("save document", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().String("id", "", "Document id (replaces the document if it exists)")
	cmd.Flags().String("as", "", "Format of stdin input ("+strings.Join(formats.List(), "|")+"), JSON when empty")
	return cmd
}

func readDocument(stdin io.Reader, path, as string) (types.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, WrapError("read document", err)
	}

	var format *formats.DocumentFormat
	switch {
	case as != "":
		if format, err = formats.Get(as); err != nil {
			return nil, WrapError("read document", err)
		}
	case path != "-" && !strings.EqualFold(filepath.Ext(path), ".json"):
		var ok bool
		if format, ok = formats.ForExtension(filepath.Ext(path)); !ok {
			return nil, NewValidationError("read document", "file extension", filepath.Ext(path),
				"Use a .json, .md or .txt file")
		}
	}

	if format != nil {
		doc, err := format.Parse(string(data))
		if err != nil {
			return nil, WrapError("read document", err)
		}
		return doc, nil
	}

	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &CLIError{
			Operation:  "read document",
			Cause:      "invalid JSON",
			Details:    err.Error(),
			Underlying: err,
		}
	}
	if doc == nil {
		return nil, NewValidationError("read document", "document", string(data), "The JSON input must be an object")
	}
	return doc, nil
}

func (cli *CLI) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := app.tasks.RemoveDocument(cmd.Context(), id); err != nil {
					return WrapError("remove document", err)
				}
			}
			return nil
		},
	}
}
