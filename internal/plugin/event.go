package plugin

import (
	"fmt"
	"net/url"
	"time"

	"go.klb.dev/clipd/internal/tlv"
)

// EventVersion is the envelope version written by this build.
const EventVersion = 1

// FrameSize is the largest payload chunk a transport moves in one piece.
const FrameSize = 1 << 20

// Status is the validity of an event as set by its producer.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusInvalid
	StatusNormal
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusInvalid:
		return "invalid"
	case StatusNormal:
		return "normal"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Event is the envelope under which one clip snapshot is published to the
// distributed layer. The payload travels separately and is addressed by the
// (DeviceID, SeqID) pair.
type Event struct {
	Version  uint8
	FrameNum uint8
	User     int32
	SeqID    uint64
	// Created and Expiration are epoch milliseconds.
	Created    int64
	Expiration int64
	Status     Status
	DeviceID   string
	AccountID  string
}

// Frames returns the number of FrameSize chunks needed for n payload bytes,
// saturated to the width of FrameNum.
func Frames(n int) uint8 {
	f := (n + FrameSize - 1) / FrameSize
	switch {
	case f < 1:
		return 1
	case f > 255:
		return 255
	}
	return uint8(f)
}

// Usable reports whether e may still be adopted at now.
func (e Event) Usable(now time.Time) bool {
	return e.Status == StatusNormal && now.UnixMilli() < e.Expiration
}

// SameOrigin reports whether e and o name the same publication.
func (e Event) SameOrigin(o Event) bool {
	return e.DeviceID == o.DeviceID && e.SeqID == o.SeqID
}

// Key is a stable, filesystem and object-key safe name for the event. Keys of
// one user sort by creation time.
func (e Event) Key() string {
	return fmt.Sprintf("%020d-%s-%020d", e.Created, url.PathEscape(e.DeviceID), e.SeqID)
}

func (e Event) String() string {
	return fmt.Sprintf("event{user=%d device=%s seq=%d status=%s}", e.User, e.DeviceID, e.SeqID, e.Status)
}

const (
	tagVersion tlv.Tag = iota + 0x0600
	tagFrameNum
	tagUser
	tagSeqID
	tagCreated
	tagExpiration
	tagStatus
	tagDeviceID
	tagAccountID
)

func (e *Event) Count() int {
	return 3*tlv.CountUint8() + tlv.CountInt32() + tlv.CountUint64() +
		2*tlv.CountInt64() + tlv.CountString(e.DeviceID) + tlv.CountString(e.AccountID)
}

func (e *Event) MarshalTLV(w *tlv.Writer) bool {
	return w.WriteUint8(tagVersion, e.Version) &&
		w.WriteUint8(tagFrameNum, e.FrameNum) &&
		w.WriteInt32(tagUser, e.User) &&
		w.WriteUint64(tagSeqID, e.SeqID) &&
		w.WriteInt64(tagCreated, e.Created) &&
		w.WriteInt64(tagExpiration, e.Expiration) &&
		w.WriteUint8(tagStatus, uint8(e.Status)) &&
		w.WriteString(tagDeviceID, e.DeviceID) &&
		w.WriteString(tagAccountID, e.AccountID)
}

func (e *Event) UnmarshalTLV(r *tlv.Reader) bool {
	for r.More() {
		h, ok := r.ReadHead()
		if !ok {
			return false
		}
		switch h.Tag {
		case tagVersion:
			e.Version, _ = r.ReadUint8(h)
		case tagFrameNum:
			e.FrameNum, _ = r.ReadUint8(h)
		case tagUser:
			e.User, _ = r.ReadInt32(h)
		case tagSeqID:
			e.SeqID, _ = r.ReadUint64(h)
		case tagCreated:
			e.Created, _ = r.ReadInt64(h)
		case tagExpiration:
			e.Expiration, _ = r.ReadInt64(h)
		case tagStatus:
			if v, ok := r.ReadUint8(h); ok {
				e.Status = Status(v)
			}
		case tagDeviceID:
			e.DeviceID, _ = r.ReadString(h)
		case tagAccountID:
			e.AccountID, _ = r.ReadString(h)
		default:
			r.Skip(h)
		}
	}
	return true
}

// EncodeEvent returns the TLV encoding of e.
func EncodeEvent(e Event) ([]byte, error) { return tlv.Marshal(&e) }

// DecodeEvent decodes an event written by EncodeEvent.
func DecodeEvent(b []byte) (Event, error) {
	var e Event
	if err := tlv.Unmarshal(b, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
