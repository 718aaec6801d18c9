package protocol

// Message types from the GNUnet daemon ABI. Only the types this client
// exchanges are listed; the daemons define many more.
const (
	MsgTypeHello uint16 = 17

	MsgTypePeerinfoGetAll  uint16 = 331
	MsgTypePeerinfoInfo    uint16 = 332
	MsgTypePeerinfoInfoEnd uint16 = 333

	MsgTypeTransportStart uint16 = 360

	MsgTypeGNSLookup       uint16 = 500
	MsgTypeGNSLookupResult uint16 = 501

	MsgTypeIdentityStart      uint16 = 624
	MsgTypeIdentityResultCode uint16 = 625
	MsgTypeIdentityUpdate     uint16 = 626
	MsgTypeIdentityGetDefault uint16 = 627
	MsgTypeIdentitySetDefault uint16 = 628
)

const (
	// HeaderSize is the size of the frame header: total length (u16) plus
	// message type (u16), both big-endian.
	HeaderSize = 4

	// MaxMessageSize is the largest total frame length. The length field is
	// a u16 and includes the header, so this is its natural ceiling.
	MaxMessageSize = 65535
)
