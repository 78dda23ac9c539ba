// Package platform detects host facts exposed to conditions as dotted
// system properties such as "os.family" or "hardware.gpu_vendor".
package platform

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/dhd-cli/dhd/internal/ports"
)

// Environment represents the execution environment of a Linux host.
type Environment string

const (
	// EnvNative is a native OS environment.
	EnvNative Environment = "native"
	// EnvWSL1 is Windows Subsystem for Linux version 1.
	EnvWSL1 Environment = "wsl1"
	// EnvWSL2 is Windows Subsystem for Linux version 2.
	EnvWSL2 Environment = "wsl2"
	// EnvDocker is running inside a container.
	EnvDocker Environment = "docker"
)

// OSInfo describes the operating system.
type OSInfo struct {
	Kind        string // runtime.GOOS
	Arch        string // runtime.GOARCH
	Family      string // debian, fedora, arch, suse, darwin, ...
	Distro      string // ubuntu, fedora, ...
	Version     string // 22.04, 39, ...
	Codename    string // jammy, ...
	Environment Environment
}

// HardwareInfo describes detected devices.
type HardwareInfo struct {
	GPUVendor   string // nvidia, amd, intel or empty
	TPM         bool
	Fingerprint bool
}

// UserInfo describes the invoking user.
type UserInfo struct {
	Name  string
	Shell string
	Home  string
}

// SystemInfo is a snapshot of host facts.
type SystemInfo struct {
	OS       OSInfo
	Hardware HardwareInfo
	User     UserInfo
	Hostname string
}

// Property returns the value at a dotted path. Unknown paths report false.
func (s *SystemInfo) Property(path string) (string, bool) {
	switch path {
	case "os.kind":
		return s.OS.Kind, true
	case "os.arch":
		return s.OS.Arch, true
	case "os.family":
		return s.OS.Family, true
	case "os.distro":
		return s.OS.Distro, true
	case "os.version":
		return s.OS.Version, true
	case "os.codename":
		return s.OS.Codename, true
	case "os.environment":
		return string(s.OS.Environment), true
	case "hardware.gpu_vendor":
		return s.Hardware.GPUVendor, true
	case "hardware.tpm":
		return strconv.FormatBool(s.Hardware.TPM), true
	case "hardware.fingerprint":
		return strconv.FormatBool(s.Hardware.Fingerprint), true
	case "user.name":
		return s.User.Name, true
	case "user.shell":
		return s.User.Shell, true
	case "user.home":
		return s.User.Home, true
	case "host.name":
		return s.Hostname, true
	default:
		return "", false
	}
}

// Detector gathers SystemInfo. Its hooks default to the real host.
type Detector struct {
	runner   ports.CommandRunner
	readFile func(string) ([]byte, error)
	exists   func(string) bool
	getenv   func(string) string
	hostname func() (string, error)
	goos     string
	goarch   string
}

// NewDetector creates a Detector that probes the host through runner.
func NewDetector(runner ports.CommandRunner) *Detector {
	return &Detector{
		runner:   runner,
		readFile: os.ReadFile,
		exists: func(p string) bool {
			_, err := os.Stat(p)
			return err == nil
		},
		getenv:   os.Getenv,
		hostname: os.Hostname,
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
	}
}

// Detect collects host facts. Probes that fail leave their fields empty.
func (d *Detector) Detect(ctx context.Context) *SystemInfo {
	info := &SystemInfo{
		OS: OSInfo{
			Kind:        d.goos,
			Arch:        d.goarch,
			Environment: EnvNative,
		},
		User: UserInfo{
			Name:  d.getenv("USER"),
			Shell: d.getenv("SHELL"),
			Home:  d.getenv("HOME"),
		},
	}
	if h, err := d.hostname(); err == nil {
		info.Hostname = h
	}

	switch d.goos {
	case "linux":
		d.detectLinux(info)
		info.Hardware.TPM = d.exists("/dev/tpm0") || d.exists("/dev/tpmrm0") || d.exists("/sys/class/tpm/tpm0")
		info.Hardware.GPUVendor = d.gpuVendor(ctx)
		info.Hardware.Fingerprint = d.fingerprint(ctx)
	default:
		info.OS.Family = d.goos
		info.OS.Distro = d.goos
		if d.goos == "darwin" {
			info.OS.Version = d.commandOutput(ctx, "sw_vers", "-productVersion")
		}
	}
	return info
}

func (d *Detector) detectLinux(info *SystemInfo) {
	if data, err := d.readFile("/etc/os-release"); err == nil {
		if rel, err := ParseOSRelease(data); err == nil {
			info.OS.Distro = rel.ID
			info.OS.Version = rel.VersionID
			info.OS.Codename = rel.Codename
			info.OS.Family = DistroFamily(rel.ID, rel.IDLike)
		}
	}
	if info.OS.Family == "" {
		info.OS.Family = "linux"
	}

	if data, err := d.readFile("/proc/version"); err == nil {
		version := strings.ToLower(string(data))
		if strings.Contains(version, "microsoft") || strings.Contains(version, "wsl") {
			info.OS.Environment = EnvWSL1
			if d.exists("/run/WSL") || strings.Contains(version, "wsl2") {
				info.OS.Environment = EnvWSL2
			}
			return
		}
	}
	if d.exists("/.dockerenv") {
		info.OS.Environment = EnvDocker
		return
	}
	if data, err := d.readFile("/proc/1/cgroup"); err == nil {
		s := string(data)
		if strings.Contains(s, "docker") || strings.Contains(s, "containerd") {
			info.OS.Environment = EnvDocker
		}
	}
}

func (d *Detector) gpuVendor(ctx context.Context) string {
	out := d.commandOutput(ctx, "lspci")
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "VGA") && !strings.Contains(line, "3D") && !strings.Contains(line, "Display") {
			continue
		}
		l := strings.ToLower(line)
		switch {
		case strings.Contains(l, "nvidia"):
			return "nvidia"
		case strings.Contains(l, "amd"), strings.Contains(l, "radeon"), strings.Contains(l, "advanced micro devices"):
			return "amd"
		case strings.Contains(l, "intel"):
			return "intel"
		}
	}
	return ""
}

func (d *Detector) fingerprint(ctx context.Context) bool {
	return strings.Contains(strings.ToLower(d.commandOutput(ctx, "lsusb")), "fingerprint")
}

func (d *Detector) commandOutput(ctx context.Context, name string, args ...string) string {
	if d.runner == nil {
		return ""
	}
	if _, ok := d.runner.LookPath(name); !ok {
		return ""
	}
	res, err := d.runner.Run(ctx, name, args...)
	if err != nil || !res.Success() {
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}

// OSRelease holds the fields of /etc/os-release used for detection.
type OSRelease struct {
	ID        string
	IDLike    []string
	VersionID string
	Codename  string
}

// ParseOSRelease parses os-release(5) content.
func ParseOSRelease(data []byte) (OSRelease, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return OSRelease{}, err
	}
	sec := cfg.Section(ini.DefaultSection)
	rel := OSRelease{
		ID:        strings.ToLower(sec.Key("ID").String()),
		VersionID: sec.Key("VERSION_ID").String(),
		Codename:  sec.Key("VERSION_CODENAME").String(),
	}
	if rel.Codename == "" {
		rel.Codename = sec.Key("UBUNTU_CODENAME").String()
	}
	if like := sec.Key("ID_LIKE").String(); like != "" {
		rel.IDLike = strings.Fields(strings.ToLower(like))
	}
	return rel, nil
}

var familyOf = map[string]string{
	"ubuntu":              "debian",
	"debian":              "debian",
	"linuxmint":           "debian",
	"mint":                "debian",
	"pop":                 "debian",
	"elementary":          "debian",
	"fedora":              "fedora",
	"centos":              "fedora",
	"rhel":                "fedora",
	"rocky":               "fedora",
	"almalinux":           "fedora",
	"arch":                "arch",
	"manjaro":             "arch",
	"endeavouros":         "arch",
	"opensuse":            "suse",
	"opensuse-leap":       "suse",
	"opensuse-tumbleweed": "suse",
	"sles":                "suse",
}

// DistroFamily maps a distribution ID onto its family, consulting ID_LIKE
// entries when the ID itself is unknown.
func DistroFamily(id string, idLike []string) string {
	if f, ok := familyOf[id]; ok {
		return f
	}
	for _, like := range idLike {
		if f, ok := familyOf[like]; ok {
			return f
		}
	}
	return id
}
