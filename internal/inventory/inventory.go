// Package inventory implements the player inventory: a fixed sequence of
// stackable slots with add/remove/swap/split/sort operations.
package inventory

import (
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// MaxSlots is the slot count of a player inventory (4 rows of 10).
	MaxSlots = 40
	// MaxStack is the per-slot item cap.
	MaxStack = 100
)

// Slot holds a single item stack.
type Slot struct {
	Item  string `msgpack:"item"`
	Count int    `msgpack:"count"`
}

// Inventory is an ordered sequence of optional slots. A nil entry is an
// empty slot.
type Inventory struct {
	slots [MaxSlots]*Slot
}

// New returns an empty inventory.
func New() *Inventory {
	return &Inventory{}
}

// Add inserts items, filling existing matching stacks in slot order before
// opening empty slots. Returns the overflow that did not fit.
func (inv *Inventory) Add(item string, count int) int {
	if item == "" || count <= 0 {
		return 0
	}
	remaining := count

	for _, s := range inv.slots {
		if remaining <= 0 {
			break
		}
		if s != nil && s.Item == item && s.Count < MaxStack {
			space := MaxStack - s.Count
			if space > remaining {
				space = remaining
			}
			s.Count += space
			remaining -= space
		}
	}

	for i, s := range inv.slots {
		if remaining <= 0 {
			break
		}
		if s == nil {
			n := remaining
			if n > MaxStack {
				n = MaxStack
			}
			inv.slots[i] = &Slot{Item: item, Count: n}
			remaining -= n
		}
	}

	return remaining
}

// Remove takes up to count items, draining later slots first so earlier
// slots stay stable. Returns the count actually removed.
func (inv *Inventory) Remove(item string, count int) int {
	removed := 0
	for i := MaxSlots - 1; i >= 0 && removed < count; i-- {
		s := inv.slots[i]
		if s == nil || s.Item != item {
			continue
		}
		take := s.Count
		if take > count-removed {
			take = count - removed
		}
		s.Count -= take
		removed += take
		if s.Count <= 0 {
			inv.slots[i] = nil
		}
	}
	return removed
}

// Count returns the total of an item across all slots.
func (inv *Inventory) Count(item string) int {
	total := 0
	for _, s := range inv.slots {
		if s != nil && s.Item == item {
			total += s.Count
		}
	}
	return total
}

// Has reports whether at least count of the item is present.
func (inv *Inventory) Has(item string, count int) bool {
	return inv.Count(item) >= count
}

// CanHold reports whether count items would fit without overflow. Used to
// pre-check crafting output before ingredients are consumed.
func (inv *Inventory) CanHold(item string, count int) bool {
	space := 0
	for _, s := range inv.slots {
		if s == nil {
			space += MaxStack
		} else if s.Item == item {
			space += MaxStack - s.Count
		}
		if space >= count {
			return true
		}
	}
	return space >= count
}

// Swap exchanges two slots unconditionally.
func (inv *Inventory) Swap(i, j int) bool {
	if i < 0 || i >= MaxSlots || j < 0 || j >= MaxSlots {
		return false
	}
	inv.slots[i], inv.slots[j] = inv.slots[j], inv.slots[i]
	return true
}

// Split moves count items from slot src to slot dst. The destination must be
// empty or hold the same item with room; otherwise nothing moves.
func (inv *Inventory) Split(src, dst, count int) bool {
	if src < 0 || src >= MaxSlots || dst < 0 || dst >= MaxSlots || src == dst || count <= 0 {
		return false
	}
	from := inv.slots[src]
	if from == nil || from.Count < count {
		return false
	}
	to := inv.slots[dst]
	if to == nil {
		inv.slots[dst] = &Slot{Item: from.Item, Count: count}
	} else {
		if to.Item != from.Item || to.Count+count > MaxStack {
			return false
		}
		to.Count += count
	}
	from.Count -= count
	if from.Count <= 0 {
		inv.slots[src] = nil
	}
	return true
}

// Sort coalesces stacks by item, orders them by the given rank key, and
// re-chunks into MaxStack stacks followed by empty slots. rank maps an item
// name to its ordering key (category rank, then display name).
func (inv *Inventory) Sort(rank func(item string) (int, string)) {
	totals := make(map[string]int)
	for _, s := range inv.slots {
		if s != nil {
			totals[s.Item] += s.Count
		}
	}

	items := make([]string, 0, len(totals))
	for item := range totals {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		ri, ni := rank(items[i])
		rj, nj := rank(items[j])
		if ri != rj {
			return ri < rj
		}
		if ni != nj {
			return ni < nj
		}
		return items[i] < items[j]
	})

	idx := 0
	for _, item := range items {
		remaining := totals[item]
		for remaining > 0 && idx < MaxSlots {
			n := remaining
			if n > MaxStack {
				n = MaxStack
			}
			inv.slots[idx] = &Slot{Item: item, Count: n}
			remaining -= n
			idx++
		}
	}
	for ; idx < MaxSlots; idx++ {
		inv.slots[idx] = nil
	}
}

// Slot returns the stack at index i, or nil.
func (inv *Inventory) Slot(i int) *Slot {
	if i < 0 || i >= MaxSlots {
		return nil
	}
	return inv.slots[i]
}

// Totals returns every item and its total count.
func (inv *Inventory) Totals() map[string]int {
	totals := make(map[string]int)
	for _, s := range inv.slots {
		if s != nil {
			totals[s.Item] += s.Count
		}
	}
	return totals
}

// wireInventory is the serialized form: a fixed-length slot list where empty
// slots are nil, matching the wire protocol's inventory snapshot.
type wireInventory struct {
	Slots []*Slot `msgpack:"slots"`
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (inv *Inventory) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(wireInventory{Slots: inv.slots[:]})
}

// DecodeMsgpack implements msgpack.CustomDecoder. Extra slots beyond
// MaxSlots are dropped.
func (inv *Inventory) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w wireInventory
	if err := dec.Decode(&w); err != nil {
		return err
	}
	for i := range inv.slots {
		inv.slots[i] = nil
	}
	for i, s := range w.Slots {
		if i >= MaxSlots {
			break
		}
		if s != nil && s.Count > 0 {
			inv.slots[i] = s
		}
	}
	return nil
}
