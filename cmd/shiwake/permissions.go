package main

import (
	"fmt"

	"shiwake/internal/permissions"

	"github.com/spf13/cobra"
)

// NewPermissionsCmd creates the permissions command
func NewPermissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions [paths...]",
		Short: "Check read and write access",
		Long:  "Check access to the given paths, or to the input folder and every output folder.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				if cfg.InputFolder != "" {
					paths = append(paths, cfg.InputFolder)
				}
				paths = append(paths, cfg.OutputFolders...)
			}
			out := cmd.OutOrStdout()
			if len(paths) == 0 {
				fmt.Fprintln(out, "No folders configured. Pass paths or run 'shiwake folders set-input'.")
				return nil
			}

			denied := 0
			rows := make([][]string, 0, len(paths))
			for _, s := range permissions.NewOS().Report(paths) {
				status := paint(out, successStyle, "granted")
				if !s.Granted() {
					status = paint(out, errorStyle, "denied")
					denied++
				}
				rows = append(rows, []string{s.Path, yesNo(s.Exists), yesNo(s.Readable), yesNo(s.Writable), yesNo(s.ParentWritable), status})
			}
			fmt.Fprintln(out, renderTable([]string{"Path", "Exists", "Read", "Write", "Parent write", "Status"}, rows, nil))
			if denied > 0 {
				return fmt.Errorf("%d of %d paths are not accessible", denied, len(paths))
			}
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
