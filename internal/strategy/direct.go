package strategy

import (
	"time"

	"meshcourier/internal/notification"
	"meshcourier/internal/wire"
)

// Direct implements protocol 0: a notification is only ever accepted by
// its exact destination, and is never forwarded by anyone else.
type Direct struct{}

var _ Strategy = Direct{}

func (Direct) Protocol() wire.Protocol { return wire.ProtocolDirect }

func (Direct) Create(hashedSource, hashedDest [32]byte, message string, now time.Time) (notification.Notification, error) {
	cb, err := wire.New(wire.ProtocolDirect, wire.DCDirect, 0)
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

func (Direct) Accept(n notification.Notification, selfHashed [32]byte) bool {
	return n.ControlByte.DestinationControl == wire.DCDirect && n.HashedDestinationAddress == selfHashed
}

func (Direct) TransmitMutate(n notification.Notification) TransmitResult {
	return TransmitResult{ControlByte: n.ControlByte}
}

func (Direct) ReceiveAcknowledgement(notification.Notification) (wire.ControlByte, error) {
	return wire.ControlByte{}, ErrAcknowledgementUnsupported
}

func (Direct) AcknowledgesOnAccept() bool { return false }
