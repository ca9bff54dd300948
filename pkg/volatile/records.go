// Package volatile implements the Volatile Collector (C4): a snapshot of
// live, non-file-backed system state (processes, network, memory, disks,
// system facts) captured without shelling out to external tools. Each
// record is serialized as UTF-8 JSON and emitted as an archive entry under
// volatile/.
package volatile

import "time"

// SystemFacts captures host-identity information gathered once per
// collection.
type SystemFacts struct {
	Hostname        string    `json:"hostname"`
	OperatingSystem string    `json:"operating_system"`
	Architecture    string    `json:"architecture"`
	KernelVersion   string    `json:"kernel_version,omitempty"`
	BootTime        time.Time `json:"boot_time,omitempty"`
	CollectedAt     time.Time `json:"collected_at"`
}

// ProcessRecord captures one running process, per §4.4: pid, parent pid,
// name, resolved executable path, argv, start time, CPU/memory usage, and
// user identity.
type ProcessRecord struct {
	PID            int       `json:"pid"`
	ParentPID      int       `json:"parent_pid"`
	Name           string    `json:"name"`
	ExecutablePath string    `json:"executable_path,omitempty"`
	CommandLine    []string  `json:"command_line,omitempty"`
	StartTime      time.Time `json:"start_time,omitempty"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemoryRSSBytes uint64    `json:"memory_rss_bytes"`
	UserIdentity   string    `json:"user_identity,omitempty"`
}

// NetworkConnectionRecord captures one active network connection or
// listening socket.
type NetworkConnectionRecord struct {
	Protocol      string `json:"protocol"`
	LocalAddress  string `json:"local_address"`
	LocalPort     int    `json:"local_port"`
	RemoteAddress string `json:"remote_address,omitempty"`
	RemotePort    int    `json:"remote_port,omitempty"`
	State         string `json:"state,omitempty"`
	OwningPID     int    `json:"owning_pid,omitempty"`
}

// MemoryStatsRecord captures coarse host memory utilization (distinct from
// the per-process memory dumps produced by C5).
type MemoryStatsRecord struct {
	TotalBytes     uint64 `json:"total_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
	UsedBytes      uint64 `json:"used_bytes"`
	SwapTotalBytes uint64 `json:"swap_total_bytes"`
	SwapUsedBytes  uint64 `json:"swap_used_bytes"`
}

// DiskRecord captures one mounted filesystem's identity and utilization.
type DiskRecord struct {
	Device         string `json:"device"`
	MountPoint     string `json:"mount_point"`
	FilesystemType string `json:"filesystem_type,omitempty"`
	TotalBytes     uint64 `json:"total_bytes"`
	FreeBytes      uint64 `json:"free_bytes"`
}

// Snapshot aggregates the five volatile records produced by a single
// Collect call.
type Snapshot struct {
	SystemFacts SystemFacts               `json:"system_facts"`
	Processes   []ProcessRecord           `json:"processes"`
	Network     []NetworkConnectionRecord `json:"network"`
	Memory      MemoryStatsRecord         `json:"memory"`
	Disks       []DiskRecord              `json:"disks"`
}
