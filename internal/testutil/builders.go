package testutil

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dhd-cli/dhd/internal/domain/action"
	"github.com/dhd-cli/dhd/internal/domain/condition"
	"github.com/dhd-cli/dhd/internal/domain/module"
)

// ModuleBuilder builds a module both as an in-memory module.Module and as
// the YAML a module file would contain.
type ModuleBuilder struct {
	mod  module.Module
	doc  map[string]any
	acts []map[string]any
}

// NewModuleBuilder creates a builder for a module called name.
func NewModuleBuilder(name string) *ModuleBuilder {
	return &ModuleBuilder{
		mod: module.Module{Name: name},
		doc: map[string]any{},
	}
}

// WithDescription sets the description.
func (b *ModuleBuilder) WithDescription(desc string) *ModuleBuilder {
	b.mod.Description = desc
	b.doc["description"] = desc
	return b
}

// WithTags adds tags.
func (b *ModuleBuilder) WithTags(tags ...string) *ModuleBuilder {
	b.mod.Tags = append(b.mod.Tags, tags...)
	b.doc["tags"] = b.mod.Tags
	return b
}

// DependsOn adds dependencies.
func (b *ModuleBuilder) DependsOn(names ...string) *ModuleBuilder {
	b.mod.Dependencies = append(b.mod.Dependencies, names...)
	b.doc["depends_on"] = b.mod.Dependencies
	return b
}

// WhenFileExists gates the module on path existing.
func (b *ModuleBuilder) WhenFileExists(path string) *ModuleBuilder {
	b.mod.Condition = condition.FileExists{Path: path}
	b.doc["when"] = map[string]any{"file_exists": path}
	return b
}

// InDir sets the directory relative action paths resolve against. It only
// affects Build; module files take their directory from their location.
func (b *ModuleBuilder) InDir(dir string) *ModuleBuilder {
	b.mod.Dir = dir
	return b
}

// WithDirectory adds a directory action. A zero mode is left to the default.
func (b *ModuleBuilder) WithDirectory(path string, mode os.FileMode) *ModuleBuilder {
	b.mod.Actions = append(b.mod.Actions, action.Directory{Path: path, Mode: mode})
	entry := map[string]any{"type": string(action.KindDirectory), "path": path}
	if mode != 0 {
		entry["mode"] = fmt.Sprintf("%04o", mode.Perm())
	}
	b.acts = append(b.acts, entry)
	return b
}

// WithCommand adds an execute_command action guarded by creates.
func (b *ModuleBuilder) WithCommand(creates, command string, args ...string) *ModuleBuilder {
	b.mod.Actions = append(b.mod.Actions, action.ExecuteCommand{Command: command, Args: args, Creates: creates})
	entry := map[string]any{"type": string(action.KindExecuteCommand), "command": command}
	if len(args) > 0 {
		entry["args"] = args
	}
	if creates != "" {
		entry["creates"] = creates
	}
	b.acts = append(b.acts, entry)
	return b
}

// WithLink adds a link_file action.
func (b *ModuleBuilder) WithLink(source, target string) *ModuleBuilder {
	b.mod.Actions = append(b.mod.Actions, action.LinkFile{Source: source, Target: target})
	b.acts = append(b.acts, map[string]any{
		"type":   string(action.KindLinkFile),
		"source": source,
		"target": target,
	})
	return b
}

// WithPackages adds a package_install action.
func (b *ModuleBuilder) WithPackages(names ...string) *ModuleBuilder {
	b.mod.Actions = append(b.mod.Actions, action.PackageInstall{Names: names})
	b.acts = append(b.acts, map[string]any{
		"type":  string(action.KindPackageInstall),
		"names": names,
	})
	return b
}

// Name returns the module name.
func (b *ModuleBuilder) Name() string {
	return b.mod.Name
}

// Build returns the in-memory module.
func (b *ModuleBuilder) Build() module.Module {
	return b.mod
}

// ToYAML renders the module file. The name is omitted since the loader
// derives it from the file name.
func (b *ModuleBuilder) ToYAML() string {
	doc := make(map[string]any, len(b.doc)+1)
	for k, v := range b.doc {
		doc[k] = v
	}
	if len(b.acts) > 0 {
		doc["actions"] = b.acts
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("marshal module %s: %v", b.mod.Name, err))
	}
	return string(out)
}
