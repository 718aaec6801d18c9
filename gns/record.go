package gns

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/gnunet-go/gnunet/crypto"
	"github.com/gnunet-go/gnunet/protocol"
)

// RecordType identifies a GNS resource record type. DNS types share the DNS
// numbering; GNS-specific types live above the 16-bit DNS space.
type RecordType uint32

const (
	RecordTypeAny   RecordType = 0
	RecordTypeA     RecordType = 1
	RecordTypeNS    RecordType = 2
	RecordTypeCNAME RecordType = 5
	RecordTypeSOA   RecordType = 6
	RecordTypePTR   RecordType = 12
	RecordTypeMX    RecordType = 15
	RecordTypeTXT   RecordType = 16
	RecordTypeAAAA  RecordType = 28
	RecordTypeTLSA  RecordType = 52

	RecordTypePKEY    RecordType = 65536
	RecordTypeNICK    RecordType = 65537
	RecordTypeLEHO    RecordType = 65538
	RecordTypeVPN     RecordType = 65539
	RecordTypeGNS2DNS RecordType = 65540
	RecordTypeBOX     RecordType = 65541
)

var recordTypeNames = map[RecordType]string{
	RecordTypeAny:     "ANY",
	RecordTypeA:       "A",
	RecordTypeNS:      "NS",
	RecordTypeCNAME:   "CNAME",
	RecordTypeSOA:     "SOA",
	RecordTypePTR:     "PTR",
	RecordTypeMX:      "MX",
	RecordTypeTXT:     "TXT",
	RecordTypeAAAA:    "AAAA",
	RecordTypeTLSA:    "TLSA",
	RecordTypePKEY:    "PKEY",
	RecordTypeNICK:    "NICK",
	RecordTypeLEHO:    "LEHO",
	RecordTypeVPN:     "VPN",
	RecordTypeGNS2DNS: "GNS2DNS",
	RecordTypeBOX:     "BOX",
}

func (t RecordType) String() string {
	if name, ok := recordTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE%d", uint32(t))
}

// ParseRecordType resolves a type name like "A" or "PKEY"; unknown names in
// the "TYPE123" form are accepted as raw numbers.
func ParseRecordType(s string) (RecordType, error) {
	for t, name := range recordTypeNames {
		if name == s {
			return t, nil
		}
	}
	var raw uint32
	if _, err := fmt.Sscanf(s, "TYPE%d", &raw); err == nil {
		return RecordType(raw), nil
	}
	return 0, fmt.Errorf("unknown record type %q", s)
}

// RecordFlags qualify a record.
type RecordFlags uint32

const (
	FlagNone               RecordFlags = 0
	FlagPrivate            RecordFlags = 2
	FlagRelativeExpiration RecordFlags = 8
	FlagShadow             RecordFlags = 16
)

// Record is one GNS resource record. Unknown record types are carried
// opaquely, never rejected.
type Record struct {
	// Expiration is an absolute timestamp in microseconds since the epoch,
	// unless FlagRelativeExpiration is set.
	Expiration uint64
	Type       RecordType
	Flags      RecordFlags
	Data       []byte
}

// Serialized record layout: expiration u64, record type u32, flags u32,
// data length u32, then the opaque data.
const recordHeaderSize = 20

// ExpirationTime converts the absolute expiration to wall-clock time.
func (r Record) ExpirationTime() time.Time {
	return time.UnixMicro(int64(r.Expiration))
}

// Value renders the record data for known types; anything else is hex.
func (r Record) Value() string {
	switch r.Type {
	case RecordTypeA:
		if len(r.Data) == net.IPv4len {
			return net.IP(r.Data).String()
		}
	case RecordTypeAAAA:
		if len(r.Data) == net.IPv6len {
			return net.IP(r.Data).String()
		}
	case RecordTypeTXT, RecordTypeLEHO, RecordTypeNICK, RecordTypeGNS2DNS, RecordTypeCNAME, RecordTypeNS, RecordTypePTR:
		return string(r.Data)
	case RecordTypePKEY:
		if pk, err := crypto.PublicKeyFromBytes(r.Data); err == nil {
			return pk.String()
		}
	}
	return hex.EncodeToString(r.Data)
}

func (r Record) String() string {
	return fmt.Sprintf("%s: %s", r.Type, r.Value())
}

// Marshal appends the record's wire encoding to dst.
func (r Record) Marshal(dst []byte) []byte {
	var header [recordHeaderSize]byte
	binary.BigEndian.PutUint64(header[0:8], r.Expiration)
	binary.BigEndian.PutUint32(header[8:12], uint32(r.Type))
	binary.BigEndian.PutUint32(header[12:16], uint32(r.Flags))
	binary.BigEndian.PutUint32(header[16:20], uint32(len(r.Data)))
	dst = append(dst, header[:]...)
	return append(dst, r.Data...)
}

// parseRecord decodes one record from the front of b and returns the number
// of bytes consumed.
func parseRecord(b []byte) (Record, int, error) {
	if len(b) < recordHeaderSize {
		return Record{}, 0, fmt.Errorf("%w: record header short", protocol.ErrMalformed)
	}

	rec := Record{
		Expiration: binary.BigEndian.Uint64(b[0:8]),
		Type:       RecordType(binary.BigEndian.Uint32(b[8:12])),
		Flags:      RecordFlags(binary.BigEndian.Uint32(b[12:16])),
	}
	// Unsigned comparison: a data size above MaxInt32 must not wrap into a
	// passing length check on 32-bit platforms.
	dataLen := binary.BigEndian.Uint32(b[16:20])
	if uint64(dataLen) > uint64(len(b)-recordHeaderSize) {
		return Record{}, 0, fmt.Errorf("%w: record data short", protocol.ErrMalformed)
	}
	if dataLen > 0 {
		rec.Data = append([]byte(nil), b[recordHeaderSize:recordHeaderSize+int(dataLen)]...)
	}
	return rec, recordHeaderSize + int(dataLen), nil
}
