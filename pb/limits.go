package pb

import "google.golang.org/grpc"

const (
	// MaxFrameSize bounds one inbound frame on every transport. Images travel
	// inline as data URLs.
	MaxFrameSize = 5 << 20

	// MaxEventSize bounds one outbound event. A message event repeats the body
	// and image of the frame that carried it plus length-capped metadata.
	MaxEventSize = MaxFrameSize + 1<<20
)

// DialOptions sizes client calls so every event the server fans out can be
// received.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxEventSize),
			grpc.MaxCallSendMsgSize(MaxFrameSize),
		),
	}
}
