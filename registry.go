package tupelo

import "math"

const (
	// FormatIDNil is the id of a format that is not registered.
	FormatIDNil uint16 = math.MaxUint16
	// FormatIDMax is the largest id the registry hands out.
	FormatIDMax uint16 = math.MaxUint16 - 1
)

type slotState uint8

const (
	slotNone slotState = iota
	slotOccupied
	slotFree
)

// formatSlot is one directory entry: occupied by a format, linked into
// the recycled free list, or untouched.
type formatSlot struct {
	state  slotState
	format *TupleFormat
	next   uint16
}

// FormatRegistry is the directory of all registered formats. Freed ids
// are recycled through an intrusive free list stored in the directory
// itself, which keeps ids small and reuse O(1).
//
// The registry is owned by the engine and must not be shared across
// engines; the single-threaded cooperative model needs no locking here.
type FormatRegistry struct {
	slots    []formatSlot
	size     uint32
	capacity uint32
	recycled uint16
}

func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{recycled: FormatIDNil}
}

// Len returns the number of registered formats.
func (reg *FormatRegistry) Len() int {
	n := 0
	for i := uint32(0); i < reg.size; i++ {
		if reg.slots[i].state == slotOccupied {
			n++
		}
	}
	return n
}

// ByID returns the registered format with the given id, or nil.
func (reg *FormatRegistry) ByID(id uint16) *TupleFormat {
	if uint32(id) >= reg.size || reg.slots[id].state != slotOccupied {
		return nil
	}
	return reg.slots[id].format
}

func (reg *FormatRegistry) register(f *TupleFormat) error {
	if reg.recycled != FormatIDNil {
		id := reg.recycled
		reg.recycled = reg.slots[id].next
		reg.slots[id] = formatSlot{state: slotOccupied, format: f}
		f.id = id
		return nil
	}
	if reg.size == reg.capacity {
		newCapacity := uint32(16)
		if reg.capacity != 0 {
			newCapacity = reg.capacity * 2
		}
		slots := make([]formatSlot, newCapacity)
		copy(slots, reg.slots)
		reg.slots = slots
		reg.capacity = newCapacity
	}
	if reg.size == uint32(FormatIDMax)+1 {
		return clientErrf(ErrTupleFormatLimit, 0,
			"tuple format limit reached: %d", reg.capacity)
	}
	f.id = uint16(reg.size)
	reg.size++
	reg.slots[f.id] = formatSlot{state: slotOccupied, format: f}
	return nil
}

func (reg *FormatRegistry) deregister(f *TupleFormat) {
	if f.id == FormatIDNil {
		return
	}
	reg.slots[f.id] = formatSlot{state: slotFree, next: reg.recycled}
	reg.recycled = f.id
	f.id = FormatIDNil
}

// FreeAll tears the registry down: every still-registered format is
// destroyed and the backing storage is released. Intended for process
// shutdown only.
func (reg *FormatRegistry) FreeAll() {
	for reg.recycled != FormatIDNil {
		id := reg.recycled
		reg.recycled = reg.slots[id].next
		reg.slots[id] = formatSlot{}
	}
	for i := uint32(0); i < reg.size; i++ {
		if reg.slots[i].state == slotOccupied {
			reg.slots[i].format.destroy()
		}
	}
	reg.slots = nil
	reg.size = 0
	reg.capacity = 0
}
