package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewFoldersCmd creates the folders command
func NewFoldersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage the input folder and output folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showFolders(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show configured folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showFolders(cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-input <dir>",
		Short: "Set the folder files are collected from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.SetInputFolder(args[0]); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, paint(out, successStyle, "Input folder set"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add-output <dir>",
		Short: "Add a destination root",
		Long:  "Add a destination root. The first output folder is the default destination.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.AddOutputFolder(args[0]); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, paint(out, successStyle, "Output folder added"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove-output <dir>",
		Short: "Remove a destination root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.RemoveOutputFolder(args[0]); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, paint(out, successStyle, "Output folder removed"))
			return nil
		},
	})

	return cmd
}

func showFolders(cmd *cobra.Command) error {
	current, err := store.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	input := current.InputFolder
	if input == "" {
		input = paint(out, dimStyle, "(not set)")
	}
	fmt.Fprintln(out, paint(out, headerStyle, "Input folder"))
	fmt.Fprintln(out, "  "+input)
	fmt.Fprintln(out, paint(out, headerStyle, "Output folders"))
	if len(current.OutputFolders) == 0 {
		fmt.Fprintln(out, "  "+paint(out, dimStyle, "(none)"))
	}
	for i, dir := range current.OutputFolders {
		line := "  " + dir
		if i == 0 {
			line += paint(out, dimStyle, " (default)")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
