package backend

import (
	"retargetc/internal/ir"
)

// RegAlloc is a linear-scan allocator generalized from gen/regalloc.go's
// RegAllocator: the same virtToPhys-map-plus-spill-slots shape, but
// keyed on *ir.Value identity instead of a virtual-register name string
// (spec §9 Design Notes value-identity redesign), and sized from
// ArchInfo.GPRCount instead of YAPL's fixed 8 registers. Register 0 and
// the last GPR are reserved (zero/scratch and stack pointer,
// respectively); registers 1 through GPRCount/3 are caller-saved and
// carry parameters, and the rest up to the second-to-last GPR are
// callee-saved and tried first for every value, mirroring the teacher's
// R4-R6-first preference order.
type RegAlloc struct {
	arch ArchInfo

	valToPhys map[*ir.Value]int
	regInUse  []bool
	regOwner  []*ir.Value

	spillSlots map[*ir.Value]int
	nextSpill  int

	usedCalleeSaved map[int]bool

	calleeSavedLo, calleeSavedHi int
	callerSavedLo, callerSavedHi int
}

// NewRegAlloc builds an allocator for one function against the given
// architecture. Spill slots are numbered from 0 and later added to the
// frame's spill region by ComputeFrameLayout; this avoids needing the
// locals size in advance the way the teacher's frameSize-at-
// construction-time design required.
func NewRegAlloc(arch ArchInfo, fn *ir.Function) *RegAlloc {
	n := arch.GPRCount
	if n < 4 {
		n = 4
	}
	ra := &RegAlloc{
		arch:            arch,
		valToPhys:       make(map[*ir.Value]int),
		regInUse:        make([]bool, n),
		regOwner:        make([]*ir.Value, n),
		spillSlots:      make(map[*ir.Value]int),
		usedCalleeSaved: make(map[int]bool),
	}
	// Reg 0 is the backend's zero/scratch register, the last GPR is the
	// stack pointer; neither is available for general allocation.
	ra.regInUse[0] = true
	ra.regInUse[n-1] = true

	third := n / 3
	ra.callerSavedLo, ra.callerSavedHi = 1, third
	ra.calleeSavedLo, ra.calleeSavedHi = third+1, n-2
	return ra
}

// AllocParam assigns parameter i its ABI-defined location: the first
// few parameters live in argument registers (1..callerSavedHi), the
// rest are pre-spilled to the incoming parameter-save area.
func (ra *RegAlloc) AllocParam(i int) ValueLocation {
	argRegs := ra.callerSavedHi
	if i < argRegs {
		phys := ra.callerSavedLo + i
		ra.regInUse[phys] = true
		return ValueLocation{InReg: true, Reg: phys}
	}
	off := (i - argRegs) * (ra.arch.WordBits / 8)
	return ValueLocation{OnStack: true, StackOff: off}
}

// Allocate returns a physical register for v, trying the callee-saved
// registers first for every value (the way gen/regalloc.go prefers
// R4-R6), then the caller-saved ones, then spilling.
func (ra *RegAlloc) Allocate(v *ir.Value) int {
	if phys, ok := ra.valToPhys[v]; ok {
		return phys
	}
	for r := ra.calleeSavedLo; r <= ra.calleeSavedHi; r++ {
		if !ra.regInUse[r] {
			return ra.bind(v, r)
		}
	}
	for r := ra.callerSavedHi; r >= ra.callerSavedLo; r-- {
		if !ra.regInUse[r] {
			return ra.bind(v, r)
		}
	}
	return ra.spillAndAllocate(v)
}

func (ra *RegAlloc) bind(v *ir.Value, phys int) int {
	ra.regInUse[phys] = true
	ra.regOwner[phys] = v
	ra.valToPhys[v] = phys
	if phys >= ra.calleeSavedLo && phys <= ra.calleeSavedHi {
		ra.usedCalleeSaved[phys] = true
	}
	return phys
}

// spillAndAllocate evicts the occupant of the highest callee-saved
// register (arbitrary but deterministic, matching the teacher's
// "pick R6, arbitrary choice" comment) to a fresh spill slot and
// rebinds that register to v.
func (ra *RegAlloc) spillAndAllocate(v *ir.Value) int {
	victim := ra.calleeSavedHi
	old := ra.regOwner[victim]
	if old != nil {
		ra.spillSlots[old] = ra.nextSpill
		ra.nextSpill += ra.arch.WordBits / 8
		delete(ra.valToPhys, old)
	}
	return ra.bind(v, victim)
}

// Free releases v's register, making it available again (per-block
// invalidation per spec §9's ValueLocation redesign note: values don't
// survive a call/branch unless explicitly reloaded).
func (ra *RegAlloc) Free(v *ir.Value) {
	if phys, ok := ra.valToPhys[v]; ok {
		ra.regInUse[phys] = false
		ra.regOwner[phys] = nil
		delete(ra.valToPhys, v)
	}
}

// InvalidateCallerSaved clears every caller-saved register's binding,
// called before emitting a call instruction so no value is assumed to
// survive it without an explicit save/reload.
func (ra *RegAlloc) InvalidateCallerSaved() {
	for r := ra.callerSavedLo; r <= ra.callerSavedHi; r++ {
		if v := ra.regOwner[r]; v != nil {
			delete(ra.valToPhys, v)
		}
		ra.regInUse[r] = false
		ra.regOwner[r] = nil
	}
}

func (ra *RegAlloc) IsSpilled(v *ir.Value) bool {
	_, ok := ra.spillSlots[v]
	return ok
}

func (ra *RegAlloc) SpillSlot(v *ir.Value) int { return ra.spillSlots[v] }

// SpillBytes is the total spill-region size this allocator has used so
// far, fed into ComputeFrameLayout's spillSize parameter.
func (ra *RegAlloc) SpillBytes() int { return ra.nextSpill }

// UsedCalleeSaved is the count of callee-saved registers actually
// touched, for the prologue/epilogue's save/restore set and the
// CalleeSavedSize region of FrameLayout.
func (ra *RegAlloc) UsedCalleeSaved() int { return len(ra.usedCalleeSaved) }

func (ra *RegAlloc) UsedCalleeSavedRegs() []int {
	var regs []int
	for r := ra.calleeSavedLo; r <= ra.calleeSavedHi; r++ {
		if ra.usedCalleeSaved[r] {
			regs = append(regs, r)
		}
	}
	return regs
}
