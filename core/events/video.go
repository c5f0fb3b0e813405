package events

const (
	// KindVideoFrameSent identifies a compressed frame handed to the send path.
	KindVideoFrameSent Kind = "video.frame_sent"
	// KindVideoFrameDropped identifies a sampler tick that produced no frame.
	KindVideoFrameDropped Kind = "video.frame_dropped"
)

// VideoFrameSent reports the compressed size of a submitted frame.
type VideoFrameSent struct {
	Base
	Size int
}

// NewVideoFrameSent creates a video frame sent event.
func NewVideoFrameSent(size int) VideoFrameSent {
	return VideoFrameSent{Base: NewBase(KindVideoFrameSent), Size: size}
}

// VideoFrameDropped reports why a tick was skipped.
type VideoFrameDropped struct {
	Base
	Reason string
}

// NewVideoFrameDropped creates a video frame dropped event.
func NewVideoFrameDropped(reason string) VideoFrameDropped {
	return VideoFrameDropped{Base: NewBase(KindVideoFrameDropped), Reason: reason}
}
