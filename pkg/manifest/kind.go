package manifest

// HostFamily identifies one of the three target host families the engine
// runs on. It is resolved once at engine startup (compile-time selection of
// the platform adapter, §9) and threaded through the planner for
// family-scoped artifact filtering.
type HostFamily int

const (
	// FamilyUnknown is the zero value and never matches any artifact kind.
	FamilyUnknown HostFamily = iota
	// FamilyL is the locked-file (backup-semantics) host family.
	FamilyL
	// FamilyP is the proc-based host family.
	FamilyP
	// FamilyD is the Mach-based host family.
	FamilyD
)

func (f HostFamily) String() string {
	switch f {
	case FamilyL:
		return "L"
	case FamilyP:
		return "P"
	case FamilyD:
		return "D"
	default:
		return "unknown"
	}
}

// ArtifactKind is a tagged variant: a family-neutral kind that applies on
// every host, or a family-scoped subkind that only targets one family. It is
// intentionally a flat string-pair rather than an interface hierarchy -- the
// expansion differences between kinds during planning are small enough that
// a direct switch is clearer than per-kind polymorphism (§9).
type ArtifactKind struct {
	// Neutral holds a family-neutral kind name when Family is FamilyUnknown.
	Neutral string `json:"neutral,omitempty" yaml:"neutral,omitempty"`
	// Family holds the host family this kind is scoped to, or
	// FamilyUnknown if Neutral is set instead.
	Family HostFamily `json:"family,omitempty" yaml:"family,omitempty"`
	// Subkind holds the family-specific subkind name when Family is set.
	Subkind string `json:"subkind,omitempty" yaml:"subkind,omitempty"`
}

// Family-neutral kind names.
const (
	KindFileSystem = "FileSystem"
	KindLogs       = "Logs"
	KindUserData   = "UserData"
	KindSystemInfo = "SystemInfo"
	KindMemory     = "Memory"
	KindNetwork    = "Network"
	KindCustom     = "Custom"
)

// Family L (locked-file) subkind names.
const (
	SubkindMFT        = "MFT"
	SubkindRegistry   = "Registry"
	SubkindEventLog   = "EventLog"
	SubkindUSNJournal = "USNJournal"
	SubkindPrefetch   = "Prefetch"
)

// Family P (proc-based) subkind names.
const (
	SubkindSysLogs = "SysLogs"
	SubkindJournal = "Journal"
	SubkindAudit   = "Audit"
	SubkindBash    = "Bash"
	SubkindCron    = "Cron"
	SubkindSystemd = "Systemd"
)

// Family D (Mach-based) subkind names.
const (
	SubkindUnifiedLogs   = "UnifiedLogs"
	SubkindPlist         = "Plist"
	SubkindFSEvents      = "FSEvents"
	SubkindQuarantine    = "Quarantine"
	SubkindLaunchAgents  = "LaunchAgents"
	SubkindLaunchDaemons = "LaunchDaemons"
)

// NeutralKind constructs a family-neutral ArtifactKind.
func NeutralKind(name string) ArtifactKind {
	return ArtifactKind{Neutral: name}
}

// FamilyScopedKind constructs an ArtifactKind scoped to a single family.
func FamilyScopedKind(family HostFamily, subkind string) ArtifactKind {
	return ArtifactKind{Family: family, Subkind: subkind}
}

// IsNeutral reports whether the kind is family-neutral (applies on every
// host).
func (k ArtifactKind) IsNeutral() bool {
	return k.Family == FamilyUnknown
}

// AppliesTo reports whether an artifact tagged with this kind should be
// retained when planning for the given host family: family-neutral kinds
// always apply; family-scoped kinds apply only to their own family.
func (k ArtifactKind) AppliesTo(host HostFamily) bool {
	if k.IsNeutral() {
		return true
	}
	return k.Family == host
}

// String renders the kind for logging and summary output.
func (k ArtifactKind) String() string {
	if k.IsNeutral() {
		return k.Neutral
	}
	return k.Family.String() + ":" + k.Subkind
}
