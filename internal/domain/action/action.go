// Package action defines the declarative intents a module is made of.
//
// Action is a closed set of kinds; each kind is planned into zero or more
// executable steps.
package action

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/condition"
	"github.com/dhd-cli/dhd/internal/ports"
)

// Kind names an action variant.
type Kind string

// Supported kinds.
const (
	KindPackageInstall Kind = "package_install"
	KindPackageRemove  Kind = "package_remove"
	KindExtensions     Kind = "extensions"
	KindLinkFile       Kind = "link_file"
	KindLinkDirectory  Kind = "link_directory"
	KindCopyFile       Kind = "copy_file"
	KindFileWrite      Kind = "file_write"
	KindDirectory      Kind = "directory"
	KindExecuteCommand Kind = "execute_command"
	KindHTTPDownload   Kind = "http_download"
	KindGitConfig      Kind = "git_config"
	KindSystemdService Kind = "systemd_service"
	KindSystemdSocket  Kind = "systemd_socket"
	KindSystemdManage  Kind = "systemd_manage"
	KindUserGroup      Kind = "user_group"
	KindDconfImport    Kind = "dconf_import"
	KindConditional    Kind = "conditional"
)

// Action is a declared intent belonging to a module.
type Action interface {
	Kind() Kind
	Describe() string
}

// SecretConsumer is implemented by actions with secret-valued parameters.
type SecretConsumer interface {
	Action
	// SecretRefs lists the references to resolve, e.g. "op://vault/item/field".
	SecretRefs() []string
	// WithSecrets returns a copy with references replaced by their values.
	WithSecrets(values map[string]string) Action
}

// ResolveSecrets resolves the references of a SecretConsumer through
// provider. Other actions are returned unchanged.
func ResolveSecrets(ctx context.Context, a Action, provider ports.SecretProvider) (Action, error) {
	sc, ok := a.(SecretConsumer)
	if !ok {
		return a, nil
	}
	refs := sc.SecretRefs()
	if len(refs) == 0 {
		return a, nil
	}
	if provider == nil {
		return nil, fmt.Errorf("%s: uses secrets but no secret provider is configured", a.Describe())
	}

	values := make(map[string]string, len(refs))
	for _, ref := range refs {
		v, err := provider.Resolve(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("%s: resolve secret %s: %w", a.Describe(), ref, err)
		}
		values[ref] = v
	}
	return sc.WithSecrets(values), nil
}

// PackageInstall installs packages with a package manager. An empty Manager
// is detected from the host.
type PackageInstall struct {
	Names   []string
	Manager string
}

func (PackageInstall) Kind() Kind { return KindPackageInstall }

func (a PackageInstall) Describe() string {
	m := a.Manager
	if m == "" {
		m = "auto"
	}
	return fmt.Sprintf("install packages [%s] with %s", strings.Join(a.Names, ", "), m)
}

// PackageRemove uninstalls packages that are present.
type PackageRemove struct {
	Names   []string
	Manager string
}

func (PackageRemove) Kind() Kind { return KindPackageRemove }

func (a PackageRemove) Describe() string {
	m := a.Manager
	if m == "" {
		m = "auto"
	}
	return fmt.Sprintf("remove packages [%s] with %s", strings.Join(a.Names, ", "), m)
}

// Extensions installs editor or desktop extensions, one step each.
type Extensions struct {
	Tool  string // code, codium, cursor, gnome
	Names []string
}

func (Extensions) Kind() Kind { return KindExtensions }

func (a Extensions) Describe() string {
	return fmt.Sprintf("install %d %s extension(s)", len(a.Names), a.Tool)
}

// LinkFile symlinks Target to Source.
type LinkFile struct {
	Source string
	Target string
	Force  bool // replace an existing target
	Backup bool // move an existing target aside first
}

func (LinkFile) Kind() Kind { return KindLinkFile }

func (a LinkFile) Describe() string {
	return fmt.Sprintf("link %s -> %s", a.Target, a.Source)
}

// LinkDirectory symlinks a whole directory.
type LinkDirectory struct {
	Source string
	Target string
	Force  bool
}

func (LinkDirectory) Kind() Kind { return KindLinkDirectory }

func (a LinkDirectory) Describe() string {
	return fmt.Sprintf("link directory %s -> %s", a.Target, a.Source)
}

// CopyFile copies Source to Target.
type CopyFile struct {
	Source string
	Target string
	Mode   os.FileMode // zero keeps the source mode
	Backup bool
}

func (CopyFile) Kind() Kind { return KindCopyFile }

func (a CopyFile) Describe() string {
	return fmt.Sprintf("copy %s to %s", a.Source, a.Target)
}

// FileWrite writes literal content to Target. ContentSecret, when set, is a
// secret reference whose value becomes the content.
type FileWrite struct {
	Target        string
	Content       string
	ContentSecret string
	Mode          os.FileMode
	Backup        bool
}

func (FileWrite) Kind() Kind { return KindFileWrite }

func (a FileWrite) Describe() string {
	return "write " + a.Target
}

// SecretRefs implements SecretConsumer.
func (a FileWrite) SecretRefs() []string {
	if a.ContentSecret == "" {
		return nil
	}
	return []string{a.ContentSecret}
}

// WithSecrets implements SecretConsumer.
func (a FileWrite) WithSecrets(values map[string]string) Action {
	if v, ok := values[a.ContentSecret]; ok {
		a.Content = v
		a.ContentSecret = ""
	}
	return a
}

// Directory ensures a directory exists.
type Directory struct {
	Path string
	Mode os.FileMode
}

func (Directory) Kind() Kind { return KindDirectory }

func (a Directory) Describe() string {
	return "create directory " + a.Path
}

// ExecuteCommand runs a process. Without Creates or Unless it runs on every
// apply.
type ExecuteCommand struct {
	// Shell, when set, runs Command through "<shell> -c".
	Shell     string
	Command   string
	Args      []string
	Cwd       string
	Env       map[string]string
	SecretEnv map[string]string // variable name -> secret reference
	// Creates skips the command when this path exists.
	Creates string
	// Unless skips the command when this shell snippet exits 0.
	Unless string
}

func (ExecuteCommand) Kind() Kind { return KindExecuteCommand }

func (a ExecuteCommand) Describe() string {
	if len(a.Args) == 0 {
		return "run " + a.Command
	}
	return "run " + a.Command + " " + strings.Join(a.Args, " ")
}

// SecretRefs implements SecretConsumer.
func (a ExecuteCommand) SecretRefs() []string {
	refs := make([]string, 0, len(a.SecretEnv))
	for _, ref := range a.SecretEnv {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// WithSecrets implements SecretConsumer. Resolved values are merged into Env.
func (a ExecuteCommand) WithSecrets(values map[string]string) Action {
	env := make(map[string]string, len(a.Env)+len(a.SecretEnv))
	for k, v := range a.Env {
		env[k] = v
	}
	for name, ref := range a.SecretEnv {
		if v, ok := values[ref]; ok {
			env[name] = v
		}
	}
	a.Env = env
	a.SecretEnv = nil
	return a
}

// HTTPDownload fetches URL into Target, optionally verifying a checksum.
type HTTPDownload struct {
	URL          string
	Target       string
	Checksum     string
	ChecksumType string // sha256 (default) or blake2b
	Mode         os.FileMode
}

func (HTTPDownload) Kind() Kind { return KindHTTPDownload }

func (a HTTPDownload) Describe() string {
	return fmt.Sprintf("download %s to %s", a.URL, a.Target)
}

// GitConfig sets git configuration keys.
type GitConfig struct {
	// Scope is global, system or a path to a config file.
	Scope  string
	Values map[string]string
}

func (GitConfig) Kind() Kind { return KindGitConfig }

func (a GitConfig) Describe() string {
	scope := a.Scope
	if scope == "" {
		scope = "global"
	}
	return fmt.Sprintf("set %d git %s config key(s)", len(a.Values), scope)
}

// SystemdService installs a service unit file. Scope is "user" (default)
// or "system".
type SystemdService struct {
	Name        string
	Description string
	ExecStart   string
	Type        string
	Scope       string
	Restart     string
	RestartSec  int
}

func (SystemdService) Kind() Kind { return KindSystemdService }

func (a SystemdService) Describe() string {
	return "install systemd service " + a.Name
}

// SystemdSocket installs a socket unit file. A missing ".socket" suffix is
// added to Name.
type SystemdSocket struct {
	Name         string
	Description  string
	ListenStream string
	Scope        string
}

func (SystemdSocket) Kind() Kind { return KindSystemdSocket }

func (a SystemdSocket) Describe() string {
	return "install systemd socket " + a.Name
}

// SystemdManage changes the state of a unit. Operation is one of enable,
// disable, start, stop, restart, enable-now or disable-now.
type SystemdManage struct {
	Name      string
	Operation string
	Scope     string
}

func (SystemdManage) Kind() Kind { return KindSystemdManage }

func (a SystemdManage) Describe() string {
	op := a.Operation
	if op == "" {
		op = "enable"
	}
	return fmt.Sprintf("%s systemd unit %s", op, a.Name)
}

// UserGroup adds User to Groups. An empty User, "current" or "${USER}"
// means the invoking user. Replace makes Groups the complete supplementary
// set.
type UserGroup struct {
	User    string
	Groups  []string
	Replace bool
}

func (UserGroup) Kind() Kind { return KindUserGroup }

func (a UserGroup) Describe() string {
	user := a.User
	if user == "" {
		user = "current"
	}
	return fmt.Sprintf("add user %s to groups [%s]", user, strings.Join(a.Groups, ", "))
}

// DconfImport loads a dconf keyfile below Path.
type DconfImport struct {
	Source string
	Path   string
	Backup bool
}

func (DconfImport) Kind() Kind { return KindDconfImport }

func (a DconfImport) Describe() string {
	return fmt.Sprintf("import dconf settings %s into %s", a.Source, a.Path)
}

// Policy selects how a Conditional interprets its conditions.
type Policy string

const (
	// OnlyIf runs the wrapped action when every condition holds.
	OnlyIf Policy = "only_if"
	// SkipIf runs the wrapped action unless any condition holds.
	SkipIf Policy = "skip_if"
)

// Conditional gates another action on conditions evaluated at plan time.
type Conditional struct {
	Action     Action
	Conditions []condition.Condition
	Policy     Policy
}

func (Conditional) Kind() Kind { return KindConditional }

func (a Conditional) Describe() string {
	inner := "<nil>"
	if a.Action != nil {
		inner = a.Action.Describe()
	}
	verb := "only if"
	if a.Policy == SkipIf {
		verb = "skip if"
	}
	parts := make([]string, len(a.Conditions))
	for i, c := range a.Conditions {
		parts[i] = condition.Describe(c)
	}
	return fmt.Sprintf("%s (%s %s)", inner, verb, strings.Join(parts, ", "))
}

// Gate is the condition a Conditional must satisfy to run its action.
func (a Conditional) Gate() condition.Condition {
	if a.Policy == SkipIf {
		return condition.Negate(condition.Any(a.Conditions...))
	}
	return condition.All(a.Conditions...)
}
