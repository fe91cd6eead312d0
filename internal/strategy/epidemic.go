package strategy

import (
	"time"

	"meshcourier/internal/notification"
	"meshcourier/internal/wire"
)

// Epidemic implements protocol 1: flood the notification to every peer
// encountered until it is delivered.
type Epidemic struct{}

var _ Strategy = Epidemic{}

func (Epidemic) Protocol() wire.Protocol { return wire.ProtocolEpidemic }

func (Epidemic) Create(hashedSource, hashedDest [32]byte, message string, now time.Time) (notification.Notification, error) {
	cb, err := wire.New(wire.ProtocolEpidemic, wire.DCFlood, 0)
	if err != nil {
		return notification.Notification{}, err
	}
	ts := wire.EncodeTimestamp(now.Unix())
	return notification.Notification{
		ControlByte:              cb,
		HashedID:                 notification.NewHashedID(hashedSource, ts, message),
		HashedDestinationAddress: hashedDest,
		HashedSourceAddress:      hashedSource,
		SentTimestamp:            ts,
		Message:                  message,
	}, nil
}

func (Epidemic) Accept(n notification.Notification, _ [32]byte) bool {
	return n.ControlByte.DestinationControl == wire.DCFlood
}

func (Epidemic) TransmitMutate(n notification.Notification) TransmitResult {
	return TransmitResult{ControlByte: n.ControlByte}
}

func (Epidemic) ReceiveAcknowledgement(notification.Notification) (wire.ControlByte, error) {
	return wire.ControlByte{}, ErrAcknowledgementUnsupported
}

func (Epidemic) AcknowledgesOnAccept() bool { return false }
