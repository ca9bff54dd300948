package platform

/*
#cgo LDFLAGS: -framework CoreFoundation
#include <mach/mach.h>
#include <mach/mach_vm.h>
#include <sys/sysctl.h>

static kern_return_t triage_task_for_pid(pid_t pid, task_t *task) {
	return task_for_pid(mach_task_self(), pid, task);
}

static kern_return_t triage_vm_region(task_t task, mach_vm_address_t *address, mach_vm_size_t *size,
                                       int *protection, int *max_protection, int *share_mode) {
	vm_region_basic_info_data_64_t info;
	mach_msg_type_number_t infoCount = VM_REGION_BASIC_INFO_COUNT_64;
	mach_port_t objectName = MACH_PORT_NULL;
	kern_return_t kr = mach_vm_region(task, address, size, VM_REGION_BASIC_INFO_64,
	                                   (vm_region_info_t)&info, &infoCount, &objectName);
	if (kr == KERN_SUCCESS) {
		*protection = info.protection;
		*max_protection = info.max_protection;
		*share_mode = info.share_mode;
	}
	return kr;
}

static kern_return_t triage_vm_read(task_t task, mach_vm_address_t address, mach_vm_size_t size, void *out, mach_vm_size_t *outSize) {
	return mach_vm_read_overwrite(task, address, size, (mach_vm_address_t)out, outSize);
}
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"unsafe"

	"github.com/triagekit/engine/pkg/triageerrors"
)

// machAdapter is the family D (Mach-based) implementation of Adapter. It
// reads process memory via the kernel VM-region and VM-read primitives and
// requires root (§4.2). Task-port handles are not cached: every OpenProcess
// call acquires a fresh task port with task_for_pid, and that handle's Close
// releases it.
type machAdapter struct {
	unixFileAccess
}

// New constructs the family D adapter. Mach task-port acquisition requires
// the calling process to run as root; this is verified lazily on the first
// OpenProcess call rather than at construction, so that non-memory
// collection tasks can still proceed under reduced privilege.
func New() (Adapter, error) {
	return &machAdapter{}, nil
}

type machHandle struct {
	pid  int
	task C.task_t
}

func (h *machHandle) PID() int { return h.pid }

func (h *machHandle) Close() error {
	C.mach_port_deallocate(C.mach_task_self_, C.mach_port_name_t(h.task))
	return nil
}

func (a *machAdapter) OpenProcess(ctx context.Context, pid int) (ProcessHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled before process open")
	}
	if os.Geteuid() != 0 {
		return nil, triageerrors.New(triageerrors.CodePermissionDenied, "family D memory acquisition requires root")
	}

	var task C.task_t
	kr := C.triage_task_for_pid(C.pid_t(pid), &task)
	if kr != C.KERN_SUCCESS {
		return nil, triageerrors.New(triageerrors.CodeProcessGone, fmt.Sprintf("task_for_pid failed for pid %d: kern_return_t %d", pid, int(kr)))
	}

	return &machHandle{pid: pid, task: task}, nil
}

func (a *machAdapter) EnumerateRegions(ctx context.Context, handle ProcessHandle) ([]MemoryRegion, error) {
	h, ok := handle.(*machHandle)
	if !ok {
		return nil, triageerrors.New(triageerrors.CodeIoError, "handle is not a family D process handle")
	}

	var regions []MemoryRegion
	var address C.mach_vm_address_t = 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled during region enumeration")
		}

		var size C.mach_vm_size_t
		var protection, maxProtection, shareMode C.int

		kr := C.triage_vm_region(h.task, &address, &size, &protection, &maxProtection, &shareMode)
		if kr == C.KERN_INVALID_ADDRESS {
			break
		}
		if kr != C.KERN_SUCCESS {
			return regions, triageerrors.New(triageerrors.CodeRegionUnreadable, fmt.Sprintf("vm_region failed: kern_return_t %d", int(kr)))
		}

		prot := Protection{
			Read:    protection&C.VM_PROT_READ != 0,
			Write:   protection&C.VM_PROT_WRITE != 0,
			Execute: protection&C.VM_PROT_EXECUTE != 0,
		}

		regions = append(regions, MemoryRegion{
			BaseAddress: uint64(address),
			Size:        uint64(size),
			Type:        classifyMachRegion(shareMode, prot),
			Protection:  prot,
		})

		address += C.mach_vm_address_t(size)
	}

	return regions, nil
}

func classifyMachRegion(shareMode C.int, protection Protection) RegionType {
	switch shareMode {
	case C.SM_COW, C.SM_PRIVATE, C.SM_PRIVATE_ALIASED:
		if protection.Execute {
			return RegionCode
		}
		return RegionHeap
	case C.SM_SHARED, C.SM_TRUESHARED:
		return RegionMappedFile
	default:
		return RegionOther
	}
}

func (a *machAdapter) ReadMemory(ctx context.Context, handle ProcessHandle, address uint64, buffer []byte) (int, error) {
	h, ok := handle.(*machHandle)
	if !ok {
		return 0, triageerrors.New(triageerrors.CodeIoError, "handle is not a family D process handle")
	}
	if err := ctx.Err(); err != nil {
		return 0, triageerrors.Wrap(triageerrors.CodeCancelled, err, "context cancelled before memory read")
	}
	if len(buffer) == 0 {
		return 0, nil
	}

	var outSize C.mach_vm_size_t
	kr := C.triage_vm_read(h.task, C.mach_vm_address_t(address), C.mach_vm_size_t(len(buffer)),
		unsafe.Pointer(&buffer[0]), &outSize)
	if kr != C.KERN_SUCCESS {
		return 0, triageerrors.New(triageerrors.CodeRegionUnreadable, fmt.Sprintf("vm_read failed at 0x%x: kern_return_t %d", address, int(kr)))
	}

	return int(outSize), nil
}
