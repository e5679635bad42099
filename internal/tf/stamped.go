package tf

import "fmt"

// Stamped is one timestamped transform from ChildFrameID into ParentFrameID.
// Frame ids are provenance only and play no part in ordering.
type Stamped struct {
	Stamp         Stamp
	ParentFrameID string
	ChildFrameID  string
	Transform     Transform
}

// Inverse returns the same relation seen from the child frame.
func (s Stamped) Inverse() Stamped {
	return Stamped{
		Stamp:         s.Stamp,
		ParentFrameID: s.ChildFrameID,
		ChildFrameID:  s.ParentFrameID,
		Transform:     s.Transform.Inverse(),
	}
}

func (s Stamped) String() string {
	return fmt.Sprintf("[%s] %s -> %s %s", s.Stamp, s.ParentFrameID, s.ChildFrameID, s.Transform)
}
