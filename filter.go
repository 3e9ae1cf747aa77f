package canbutton

import "fmt"

// Filter describes the acceptance criteria for inbound frames. A mask bit
// of 0 means "don't care" for that identifier bit.
type Filter struct {
	ID       uint32
	Mask     uint32
	Extended bool
}

// Matches reports whether the frame passes the filter. Identifier types
// must agree and the mask-selected identifier bits must be equal.
func (fl Filter) Matches(f CANFrame) bool {
	if f.Extended != fl.Extended {
		return false
	}
	return f.Identifier&fl.Mask == fl.ID&fl.Mask
}

func (fl Filter) String() string {
	if fl.Extended {
		return fmt.Sprintf("extended id 0x%08X mask 0x%08X", fl.ID, fl.Mask)
	}
	return fmt.Sprintf("standard id 0x%03X mask 0x%03X", fl.ID, fl.Mask)
}
