package messaging

// Tag identifies what a message asks the receiver to do.
type Tag uint8

const (
	// DispatchToPointer runs Callback on the receiving thread. Both queues
	// use it.
	DispatchToPointer Tag = iota
	// DispatchToPointerUnderStructureLock runs Callback on the audio thread
	// while holding the structure mutex.
	DispatchToPointerUnderStructureLock
	// ParamSetValue sets a parameter; the payload carries the address and
	// Value.
	ParamSetValue
	// ScheduleSamplePurge asks the audio thread to confirm that earlier
	// structural edits are complete so unreferenced samples may be freed.
	ScheduleSamplePurge
	NoteOn
	NoteOff
	SustainPedal
	AllSoundOff

	// SamplePurgeReady answers ScheduleSamplePurge.
	SamplePurgeReady
	// Diagnostic reports a condition the audio thread absorbed (clamp,
	// overflow, forced termination) so the control thread can log it.
	Diagnostic
	// VoiceCount reports the number of sounding voices after a block.
	VoiceCount
)

func (t Tag) String() string {
	switch t {
	case DispatchToPointer:
		return "dispatch_to_pointer"
	case DispatchToPointerUnderStructureLock:
		return "dispatch_to_pointer_under_structurelock"
	case ParamSetValue:
		return "param_set_value"
	case ScheduleSamplePurge:
		return "schedule_sample_purge"
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case SustainPedal:
		return "sustain_pedal"
	case AllSoundOff:
		return "all_sound_off"
	case SamplePurgeReady:
		return "sample_purge_ready"
	case Diagnostic:
		return "diagnostic"
	case VoiceCount:
		return "voice_count"
	default:
		return "unknown"
	}
}

// Payload is the plain-data part of a message. Meaning depends on the tag.
type Payload struct {
	A, B, C, D int64
	Value      float32
}

// Message is a fixed-size queue entry. Ownership of Callback transfers with
// the message.
type Message struct {
	Tag      Tag
	Payload  Payload
	Callback func()
}
