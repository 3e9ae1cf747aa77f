package canbutton

import "fmt"

type Stats struct {
	SentFrames     uint64
	ReceivedFrames uint64
	DroppedFrames  uint64
	Errors         uint64
}

func (st Stats) String() string {
	return fmt.Sprintf("sent: %d received: %d dropped: %d errors: %d", st.SentFrames, st.ReceivedFrames, st.DroppedFrames, st.Errors)
}

func (base *BaseController) Stats() Stats {
	return Stats{
		SentFrames:     base.sent.Load(),
		ReceivedFrames: base.received.Load(),
		DroppedFrames:  base.dropped.Load(),
		Errors:         base.errors.Load(),
	}
}
