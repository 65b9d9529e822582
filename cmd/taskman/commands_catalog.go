package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/taskman/taskman/tasks"
	"github.com/arthur-debert/taskman/types"
)

// catalogOps are the list/add/remove operations of projects or states
type catalogOps struct {
	list   func(ctx context.Context) ([]types.Document, error)
	add    func(ctx context.Context, name string) (string, error)
	remove func(ctx context.Context, name string) error
}

func opsFor(field string, s *tasks.Service) catalogOps {
	if field == "project" {
		return catalogOps{list: s.ListProjects, add: s.AddProject, remove: s.RemoveProject}
	}
	return catalogOps{list: s.ListStates, add: s.AddState, remove: s.RemoveState}
}

// catalogCommand builds the "project" or "state" command group
func (cli *CLI) catalogCommand(field string) *cobra.Command {
	plural := field + "s"
	group := &cobra.Command{
		Use:   field,
		Short: fmt.Sprintf("Manage %s", plural),
	}

	group.AddCommand(&cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s by name", plural),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			docs, err := opsFor(field, app.tasks).list(cmd.Context())
			if err != nil {
				return WrapError("list "+plural, err)
			}
			return cli.output().Write(cmd.OutOrStdout(), docs, func() Table {
				return nameTable(docs, field)
			})
		},
	})

	group.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: fmt.Sprintf("Add a %s; names must be unique", field),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			id, err := opsFor(field, app.tasks).add(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return WrapError("add "+field, err)
			}
			if id != "" {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	})

	group.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: fmt.Sprintf("Remove a %s no task refers to", field),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			if err := opsFor(field, app.tasks).remove(cmd.Context(), strings.Join(args, " ")); err != nil {
				return WrapError("remove "+field, err)
			}
			return nil
		},
	})

	return group
}
