package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"shiwake/internal/organize"
	"shiwake/pkg/types"

	"github.com/spf13/cobra"
)

// NewRulesCmd creates the rules command
func NewRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage category rules",
		Long: `View and edit the ordered list of categories. When two categories list
the same extension, the one listed first wins.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRules(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newRulesListCmd())
	cmd.AddCommand(newRulesAddCmd())
	cmd.AddCommand(newRulesRemoveCmd())
	cmd.AddCommand(newRulesResetCmd())
	cmd.AddCommand(newRulesTestCmd())

	return cmd
}

func newRulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRules(cmd.OutOrStdout())
		},
	}
}

// newRulesAddCmd creates the 'rules add' command
func newRulesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <category> <ext>...",
		Short: "Add a category or replace its extensions",
		Long: `Add a category with the given extensions. An existing category keeps its
position and has its extensions replaced.`,
		Example: "  shiwake rules add Images .jpg .png .webp",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := store.LoadRuleset()
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			existed := rs.Find(name) >= 0
			if err := store.SaveRuleset(rs.Set(name, args[1:]...)); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if existed {
				fmt.Fprintln(out, paint(out, successStyle, fmt.Sprintf("Updated category %q", name)))
			} else {
				fmt.Fprintln(out, paint(out, successStyle, fmt.Sprintf("Added category %q", name)))
			}
			return nil
		},
	}
}

// newRulesRemoveCmd creates the 'rules remove' command
func newRulesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <category>",
		Short: "Remove a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := store.LoadRuleset()
			if err != nil {
				return err
			}
			rest, ok := rs.Remove(args[0])
			if !ok {
				return fmt.Errorf("no category named %q", args[0])
			}
			if err := store.SaveRuleset(rest); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, paint(out, successStyle, fmt.Sprintf("Removed category %q", args[0])))
			return nil
		},
	}
}

func newRulesResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the built-in categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.SaveRuleset(types.DefaultRuleset()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, paint(out, successStyle, "Categories reset to defaults"))
			return nil
		},
	}
}

// newRulesTestCmd creates the 'rules test' command
func newRulesTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <file>...",
		Short: "Show which category each file would go to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			class := organize.Classification{
				Unclassified:  cfg.Settings.Unclassified,
				OtherCategory: cfg.Settings.OtherCategory,
			}
			rows := make([][]string, 0, len(args))
			for _, file := range args {
				category, err := organize.Classify(file, cfg.Categories, class)
				result := category
				if err != nil {
					result = "(skipped: " + err.Error() + ")"
				}
				rows = append(rows, []string{filepath.Base(file), result})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"File", "Category"}, rows, nil))
			return nil
		},
	}
}

func listRules(w io.Writer) error {
	rs, err := store.LoadRuleset()
	if err != nil {
		return err
	}
	if len(rs) == 0 {
		fmt.Fprintln(w, "No categories defined. Use 'shiwake rules add' or 'shiwake rules reset'.")
		return nil
	}

	rows := make([][]string, 0, len(rs)+1)
	for i, c := range rs {
		rows = append(rows, []string{strconv.Itoa(i + 1), c.Name, strings.Join(c.Extensions, " ")})
	}
	fmt.Fprintln(w, renderTable([]string{"#", "Category", "Extensions"}, rows, []columnAlignment{alignRight}))

	if cfg.Settings.Unclassified == types.UnclassifiedSkip {
		fmt.Fprintln(w, paint(w, dimStyle, "Unclassified files are left in place."))
	} else {
		fmt.Fprintln(w, paint(w, dimStyle, fmt.Sprintf("Unclassified files go to %q.", cfg.Settings.OtherCategory)))
	}
	return nil
}
