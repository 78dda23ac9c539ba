// Package extensions installs editor and desktop extensions.
package extensions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/commandutil"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

// Tool knows how to list and install extensions for one host application.
type Tool struct {
	Name    string
	List    []string
	Install func(id string) [][]string
	// FoldCase compares ids case-insensitively.
	FoldCase bool
}

func editor(bin string) Tool {
	return Tool{
		Name: bin,
		List: []string{bin, "--list-extensions"},
		Install: func(id string) [][]string {
			return [][]string{{bin, "--install-extension", id, "--force"}}
		},
		FoldCase: true,
	}
}

var tools = map[string]Tool{
	"code":     editor("code"),
	"codium":   editor("codium"),
	"cursor":   editor("cursor"),
	"windsurf": editor("windsurf"),
	"gnome": {
		Name: "gnome",
		List: []string{"gnome-extensions", "list", "--enabled"},
		Install: func(id string) [][]string {
			return [][]string{{"gext", "install", id}, {"gext", "enable", id}}
		},
	},
}

// Tools lists the supported tool names.
func Tools() []string {
	names := make([]string, 0, len(tools))
	for n := range tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the tool called name.
func Lookup(name string) (Tool, bool) {
	t, ok := tools[strings.ToLower(name)]
	return t, ok
}

// Step installs one extension.
type Step struct {
	stepmeta.Meta
	tool   Tool
	ext    string
	runner ports.CommandRunner
}

// NewSteps returns one step per extension id.
func NewSteps(module string, tool Tool, ids []string, runner ports.CommandRunner) ([]compiler.Step, error) {
	steps := make([]compiler.Step, 0, len(ids))
	for _, id := range ids {
		if err := validation.ValidateExtensionID(id); err != nil {
			return nil, err
		}
		meta, err := stepmeta.New(module, "extension", tool.Name+"/"+id)
		if err != nil {
			return nil, err
		}
		steps = append(steps, &Step{Meta: meta, tool: tool, ext: id, runner: runner})
	}
	return steps, nil
}

// Check lists installed extensions and looks for this one.
func (s *Step) Check(ctx compiler.RunContext) (compiler.StepStatus, error) {
	res, err := commandutil.Run(ctx.Context(), s.runner, s.tool.List[0], s.tool.List[1:]...)
	if err != nil {
		return compiler.StatusUnknown, err
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if s.same(strings.TrimSpace(line)) {
			return compiler.StatusSatisfied, nil
		}
	}
	return compiler.StatusNeedsApply, nil
}

// Apply installs the extension.
func (s *Step) Apply(ctx compiler.RunContext) error {
	for _, argv := range s.tool.Install(s.ext) {
		if _, err := commandutil.Run(ctx.Context(), s.runner, argv[0], argv[1:]...); err != nil {
			return err
		}
	}
	return nil
}

// Describe returns a one-line summary.
func (s *Step) Describe() string {
	return fmt.Sprintf("install %s extension %s", s.tool.Name, s.ext)
}

func (s *Step) same(installed string) bool {
	if s.tool.FoldCase {
		return strings.EqualFold(installed, s.ext)
	}
	return installed == s.ext
}
