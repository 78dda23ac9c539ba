package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dhd-cli/dhd/internal/adapters/modulefile"
	"github.com/dhd-cli/dhd/internal/templates"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a starter module in the modules directory",
	Long: `New writes <modules-dir>/<name>/module.yaml with a single directory
action and commented examples, plus a files/ directory for sources that
link_file and copy_file refer to.

A .gitignore is added to the modules directory if it has none.`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

var (
	newDescription string
	newTags        []string
	newDependsOn   []string
)

func init() {
	newCmd.Flags().StringVarP(&newDescription, "description", "d", "", "module description")
	newCmd.Flags().StringSliceVar(&newTags, "tags", nil, "tags for the module")
	newCmd.Flags().StringSliceVar(&newDependsOn, "depends-on", nil, "modules this one depends on")

	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	name := args[0]
	for _, n := range append([]string{name}, newDependsOn...) {
		if !modulefile.ValidName(n) {
			return fmt.Errorf("%q is not a valid module name", n)
		}
	}

	dir := filepath.Join(modulesDir, name)
	path := filepath.Join(dir, "module.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("module %s already exists at %s", name, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	content, err := templates.GenerateModule(templates.ModuleData{
		Name:        name,
		Description: newDescription,
		Tags:        newTags,
		DependsOn:   newDependsOn,
	})
	if err != nil {
		return fmt.Errorf("render module: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "files"), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return err
	}

	ignore := filepath.Join(modulesDir, ".gitignore")
	if _, err := os.Stat(ignore); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(ignore, []byte(templates.GitignoreTemplate), 0o644); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}
