package corerpc

import (
	"sync"

	"github.com/dgrr/corerpc/wireutil"
)

// SettingID identifies one SETTINGS parameter
// (http://httpwg.org/specs/rfc7540.html#SettingsFormat).
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

// Settings is the SETTINGS frame: an unordered list of id/value pairs that
// adjust the peer's view of the connection. An ACK-flagged Settings carries
// no entries.
type Settings struct {
	ack     bool
	entries []settingEntry
}

type settingEntry struct {
	id    SettingID
	value uint32
}

var settingsPool = sync.Pool{
	New: func() interface{} { return &Settings{} },
}

// AcquireSettings returns a Settings from the pool.
func AcquireSettings() *Settings { return settingsPool.Get().(*Settings) }

// ReleaseSettings resets st and returns it to the pool.
func ReleaseSettings(st *Settings) {
	st.Reset()
	settingsPool.Put(st)
}

func (st *Settings) Type() FrameType { return FrameSettings }

func (st *Settings) Reset() {
	st.ack = false
	st.entries = st.entries[:0]
}

// IsAck reports whether this SETTINGS frame acknowledges the peer's
// previous SETTINGS frame.
func (st *Settings) IsAck() bool { return st.ack }

// SetAck marks this frame as a SETTINGS ACK; Set calls on it are ignored
// since an ACK must carry an empty payload.
func (st *Settings) SetAck(ack bool) { st.ack = ack }

// Set adds or replaces the value for id.
func (st *Settings) Set(id SettingID, value uint32) {
	for i := range st.entries {
		if st.entries[i].id == id {
			st.entries[i].value = value
			return
		}
	}
	st.entries = append(st.entries, settingEntry{id, value})
}

// Get returns the value configured for id and whether it was present.
func (st *Settings) Get(id SettingID) (uint32, bool) {
	for _, e := range st.entries {
		if e.id == id {
			return e.value, true
		}
	}
	return 0, false
}

// Range calls fn for every id/value pair carried by the frame.
func (st *Settings) Range(fn func(id SettingID, value uint32)) {
	for _, e := range st.entries {
		fn(e.id, e.value)
	}
}

func (st *Settings) Deserialize(fr *FrameHeader) error {
	if fr.Flags.Has(FlagAck) {
		st.ack = true
		if len(fr.Payload()) != 0 {
			return newTransportError(FrameSizeError, "SETTINGS ack with non-empty payload")
		}
		return nil
	}

	p := fr.Payload()
	if len(p)%6 != 0 {
		return newTransportError(FrameSizeError, "SETTINGS payload not a multiple of 6")
	}
	for len(p) > 0 {
		id := SettingID(uint16(p[0])<<8 | uint16(p[1]))
		value := wireutil.Uint32(p[2:6])
		st.Set(id, value)
		p = p[6:]
	}
	return nil
}

func (st *Settings) Serialize(fr *FrameHeader) {
	if st.ack {
		fr.Flags = fr.Flags.Add(FlagAck)
		fr.SetPayload(nil)
		return
	}

	buf := make([]byte, 0, len(st.entries)*6)
	for _, e := range st.entries {
		buf = append(buf, byte(e.id>>8), byte(e.id))
		buf = wireutil.AppendUint32(buf, e.value)
	}
	fr.SetPayload(buf)
}

// defaultLocalSettings are the settings this runtime advertises in its
// opening SETTINGS frame.
func defaultLocalSettings() *Settings {
	st := &Settings{}
	st.Set(SettingEnablePush, 0)
	st.Set(SettingInitialWindowSize, DefaultWindowSize)
	st.Set(SettingMaxConcurrentStreams, 100)
	st.Set(SettingMaxFrameSize, FrameDefaultMaxLen)
	return st
}
