// Package modulefile loads module definitions from YAML and TOML files.
package modulefile

// document is the on-disk shape of one module file.
type document struct {
	Name        string        `yaml:"name"        toml:"name"        validate:"omitempty,modname"`
	Description string        `yaml:"description" toml:"description"`
	Tags        []string      `yaml:"tags"        toml:"tags"        validate:"dive,required"`
	DependsOn   []string      `yaml:"depends_on"  toml:"depends_on"  validate:"dive,modname"`
	When        *conditionDoc `yaml:"when"        toml:"when"`
	Actions     []actionDoc   `yaml:"actions"     toml:"actions"     validate:"dive"`
}

// actionDoc is the union of every action's parameters, discriminated by
// Type. Fields that do not belong to Type are ignored.
type actionDoc struct {
	Type string `yaml:"type" toml:"type" validate:"required"`

	// package_install, package_remove, extensions
	Names   []string `yaml:"names"   toml:"names"`
	Manager string   `yaml:"manager" toml:"manager"`
	Tool    string   `yaml:"tool"    toml:"tool"`

	// link_file, link_directory, copy_file, file_write, http_download,
	// dconf_import
	Source string `yaml:"source" toml:"source"`
	Target string `yaml:"target" toml:"target"`
	Force  bool   `yaml:"force"  toml:"force"`
	Backup bool   `yaml:"backup" toml:"backup"`
	Mode   string `yaml:"mode"   toml:"mode"   validate:"omitempty,octalmode"`

	Content       string `yaml:"content"        toml:"content"`
	ContentSecret string `yaml:"content_secret" toml:"content_secret"`

	// directory, dconf_import
	Path string `yaml:"path" toml:"path"`

	// execute_command
	Shell     string            `yaml:"shell"      toml:"shell"`
	Command   string            `yaml:"command"    toml:"command"`
	Args      []string          `yaml:"args"       toml:"args"`
	Cwd       string            `yaml:"cwd"        toml:"cwd"`
	Env       map[string]string `yaml:"env"        toml:"env"`
	SecretEnv map[string]string `yaml:"secret_env" toml:"secret_env"`
	Creates   string            `yaml:"creates"    toml:"creates"`
	Unless    string            `yaml:"unless"     toml:"unless"`

	// http_download
	URL          string `yaml:"url"           toml:"url"           validate:"omitempty,url"`
	Checksum     string `yaml:"checksum"      toml:"checksum"`
	ChecksumType string `yaml:"checksum_type" toml:"checksum_type" validate:"omitempty,oneof=sha256 blake2b"`

	// git_config, systemd_*
	Scope  string            `yaml:"scope"  toml:"scope"`
	Values map[string]string `yaml:"values" toml:"values"`

	// systemd_service, systemd_socket, systemd_manage
	Name         string `yaml:"name"          toml:"name"`
	Description  string `yaml:"description"   toml:"description"`
	ExecStart    string `yaml:"exec_start"    toml:"exec_start"`
	ServiceType  string `yaml:"service_type"  toml:"service_type"`
	Restart      string `yaml:"restart"       toml:"restart"`
	RestartSec   int    `yaml:"restart_sec"   toml:"restart_sec"   validate:"gte=0"`
	ListenStream string `yaml:"listen_stream" toml:"listen_stream"`
	Operation    string `yaml:"operation"     toml:"operation"     validate:"omitempty,oneof=enable disable start stop restart enable-now disable-now"`

	// user_group
	User   string   `yaml:"user"   toml:"user"`
	Groups []string `yaml:"groups" toml:"groups" validate:"dive,required"`
	Append *bool    `yaml:"append" toml:"append"`

	OnlyIf []conditionDoc `yaml:"only_if" toml:"only_if" validate:"dive"`
	SkipIf []conditionDoc `yaml:"skip_if" toml:"skip_if" validate:"dive"`
}

// conditionDoc is one node of a condition tree. Exactly one field is set.
type conditionDoc struct {
	AllOf []conditionDoc `yaml:"all_of" toml:"all_of"`
	AnyOf []conditionDoc `yaml:"any_of" toml:"any_of"`
	Not   *conditionDoc  `yaml:"not"    toml:"not"`

	FileExists      string       `yaml:"file_exists"      toml:"file_exists"`
	DirectoryExists string       `yaml:"directory_exists" toml:"directory_exists"`
	CommandExists   string       `yaml:"command_exists"   toml:"command_exists"`
	CommandSucceeds *commandDoc  `yaml:"command_succeeds" toml:"command_succeeds"`
	Env             *envDoc      `yaml:"env"              toml:"env"`
	Property        *propertyDoc `yaml:"property"         toml:"property"`
	SecretExists    string       `yaml:"secret_exists"    toml:"secret_exists"`

	// Platform shorthands for property equality.
	OS     string `yaml:"os"     toml:"os"`
	Distro string `yaml:"distro" toml:"distro"`
	Arch   string `yaml:"arch"   toml:"arch"`
}

type commandDoc struct {
	Command string   `yaml:"command" toml:"command" validate:"required"`
	Args    []string `yaml:"args"    toml:"args"`
}

type envDoc struct {
	Name   string  `yaml:"name"   toml:"name"   validate:"required"`
	Equals *string `yaml:"equals" toml:"equals"`
}

type propertyDoc struct {
	Path     string `yaml:"path"     toml:"path"     validate:"required"`
	Operator string `yaml:"operator" toml:"operator"`
	Value    string `yaml:"value"    toml:"value"`
}
