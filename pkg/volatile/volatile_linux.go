package volatile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func gatherSystemFacts() (SystemFacts, error) {
	facts := baseSystemFacts()

	var uname unix.Utsname
	if err := unix.Uname(&uname); err == nil {
		facts.KernelVersion = cString(uname.Release[:])
	}

	if bootTime, err := bootTimeFromUptime(); err == nil {
		facts.BootTime = bootTime
	}

	return facts, nil
}

func bootTimeFromUptime() (time.Time, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return time.Time{}, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("unexpected /proc/uptime format")
	}
	uptimeSeconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(-time.Duration(uptimeSeconds * float64(time.Second))).UTC(), nil
}

func gatherProcesses() ([]ProcessRecord, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var records []ProcessRecord
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		record, ok := readProcessRecord(pid)
		if ok {
			records = append(records, record)
		}
	}

	return records, nil
}

func readProcessRecord(pid int) (ProcessRecord, bool) {
	base := fmt.Sprintf("/proc/%d", pid)

	statusData, err := os.ReadFile(filepath.Join(base, "status"))
	if err != nil {
		return ProcessRecord{}, false
	}

	record := ProcessRecord{PID: pid}
	for _, line := range strings.Split(string(statusData), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Name":
			record.Name = value
		case "PPid":
			record.ParentPID, _ = strconv.Atoi(value)
		case "VmRSS":
			record.MemoryRSSBytes = parseKBField(value)
		case "Uid":
			fields := strings.Fields(value)
			if len(fields) > 0 {
				record.UserIdentity = fields[0]
			}
		}
	}

	if exe, err := os.Readlink(filepath.Join(base, "exe")); err == nil {
		record.ExecutablePath = exe
	}

	if cmdlineData, err := os.ReadFile(filepath.Join(base, "cmdline")); err == nil && len(cmdlineData) > 0 {
		parts := strings.Split(strings.TrimRight(string(cmdlineData), "\x00"), "\x00")
		record.CommandLine = parts
	}

	if info, err := os.Stat(base); err == nil {
		if sys, ok := info.Sys().(*syscall.Stat_t); ok {
			record.StartTime = time.Unix(sys.Ctim.Sec, sys.Ctim.Nsec).UTC()
		}
	}

	return record, true
}

func parseKBField(value string) uint64 {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0
	}
	kb, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0
	}
	return kb * 1024
}

func gatherNetwork() ([]NetworkConnectionRecord, error) {
	var records []NetworkConnectionRecord
	sources := []struct {
		path     string
		protocol string
	}{
		{"/proc/net/tcp", "tcp"},
		{"/proc/net/tcp6", "tcp6"},
		{"/proc/net/udp", "udp"},
		{"/proc/net/udp6", "udp6"},
	}

	for _, source := range sources {
		parsed, err := parseProcNet(source.path, source.protocol)
		if err != nil {
			continue
		}
		records = append(records, parsed...)
	}

	return records, nil
}

// tcpStateNames maps /proc/net/tcp's hex state field to RFC 793 names.
var tcpStateNames = map[string]string{
	"01": "ESTABLISHED", "02": "SYN_SENT", "03": "SYN_RECV",
	"04": "FIN_WAIT1", "05": "FIN_WAIT2", "06": "TIME_WAIT",
	"07": "CLOSE", "08": "CLOSE_WAIT", "09": "LAST_ACK",
	"0A": "LISTEN", "0B": "CLOSING",
}

func parseProcNet(path, protocol string) ([]NetworkConnectionRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []NetworkConnectionRecord
	scanner := bufio.NewScanner(file)
	scanner.Scan() // header line
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 {
			continue
		}

		localAddr, localPort := parseHexSocketAddress(fields[1])
		remoteAddr, remotePort := parseHexSocketAddress(fields[2])

		record := NetworkConnectionRecord{
			Protocol:      protocol,
			LocalAddress:  localAddr,
			LocalPort:     localPort,
			RemoteAddress: remoteAddr,
			RemotePort:    remotePort,
			State:         tcpStateNames[strings.ToUpper(fields[3])],
		}
		records = append(records, record)
	}

	return records, nil
}

func parseHexSocketAddress(field string) (string, int) {
	parts := strings.SplitN(field, ":", 2)
	if len(parts) != 2 {
		return "", 0
	}

	port64, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return "", 0
	}

	addrBytes, err := hexToIPBytes(parts[0])
	if err != nil {
		return "", int(port64)
	}

	return formatIP(addrBytes), int(port64)
}

func hexToIPBytes(hexAddr string) ([]byte, error) {
	raw := make([]byte, len(hexAddr)/2)
	for i := 0; i < len(raw); i++ {
		var b uint64
		_, err := fmt.Sscanf(hexAddr[i*2:i*2+2], "%02x", &b)
		if err != nil {
			return nil, err
		}
		raw[i] = byte(b)
	}
	return raw, nil
}

// formatIP reverses the little-endian 32-bit word order /proc/net/tcp uses
// for IPv4 addresses and renders dotted-quad notation; IPv6 addresses are
// rendered as a raw hex string rather than fully reconstructed, which is
// sufficient for forensic record-keeping purposes.
func formatIP(raw []byte) string {
	if len(raw) == 4 {
		return fmt.Sprintf("%d.%d.%d.%d", raw[3], raw[2], raw[1], raw[0])
	}
	return fmt.Sprintf("%x", raw)
}

func gatherMemoryStats() (MemoryStatsRecord, error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return MemoryStatsRecord{}, err
	}

	fields := make(map[string]uint64)
	for _, line := range strings.Split(string(data), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields[strings.TrimSpace(key)] = parseKBField(strings.TrimSpace(value))
	}

	total := fields["MemTotal"]
	available := fields["MemAvailable"]
	return MemoryStatsRecord{
		TotalBytes:     total,
		AvailableBytes: available,
		UsedBytes:      total - available,
		SwapTotalBytes: fields["SwapTotal"],
		SwapUsedBytes:  fields["SwapTotal"] - fields["SwapFree"],
	}, nil
}

func gatherDisks() ([]DiskRecord, error) {
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return nil, err
	}

	var records []DiskRecord
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		device, mountPoint, fsType := fields[0], fields[1], fields[2]
		if !strings.HasPrefix(device, "/dev/") {
			continue
		}

		var stat unix.Statfs_t
		if err := unix.Statfs(mountPoint, &stat); err != nil {
			continue
		}

		blockSize := uint64(stat.Bsize)
		records = append(records, DiskRecord{
			Device:         device,
			MountPoint:     mountPoint,
			FilesystemType: fsType,
			TotalBytes:     stat.Blocks * blockSize,
			FreeBytes:      stat.Bfree * blockSize,
		})
	}

	return records, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
