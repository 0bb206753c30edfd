package decoders

// Channels decoded by the default table.
const (
	RPM_CHANNEL            = "engine.rpm"
	THROTTLE_CHANNEL       = "engine.throttle"
	GRIP_CHANNEL           = "engine.grip"
	TPS_CHANNEL            = "engine.tps"
	COOLANT_CHANNEL        = "engine.coolant"
	GEAR_CHANNEL           = "engine.gear"
	INJECTION_TIME_CHANNEL = "engine.injection-time"
)

// Known frame ids for the bench telemetry logger.
const (
	rpmID           = 0x0100
	throttleID      = 0x0001
	gripID          = 0x0070
	tpsID           = 0x0076
	coolantID       = 0x0009
	gearID          = 0x0031 // Gear enum in the second byte
	injectionTimeID = 0x0110
)

func precision(p uint8) *uint8 {
	return &p
}

// DefaultFrames is the frame layout the logger firmware ships with.
func DefaultFrames() []FrameSpec {
	return []FrameSpec{
		// RPM = u16be / 4
		{ID: rpmID, Fields: []Field{{Channel: RPM_CHANNEL, Size: 2, Scale: 0.25}}},
		// Throttle: (0..255) -> %
		{ID: throttleID, Fields: []Field{{Channel: THROTTLE_CHANNEL, Size: 1, Scale: 100.0 / 255.0, Precision: precision(1)}}},
		{ID: gripID, Fields: []Field{{Channel: GRIP_CHANNEL, Size: 1, Scale: 100.0 / 255.0, Precision: precision(1)}}},
		// TPS (0..1023) -> %
		{ID: tpsID, Fields: []Field{{Channel: TPS_CHANNEL, Size: 2, Scale: 100.0 / 1023.0, Precision: precision(1)}}},
		// Coolant °C with a -40 offset
		{ID: coolantID, Fields: []Field{{Channel: COOLANT_CHANNEL, Size: 2, Bias: -40}}},
		{ID: gearID, Fields: []Field{{Channel: GEAR_CHANNEL, Offset: 1, Size: 1}}},
		// Injection time in µs -> ms
		{ID: injectionTimeID, Fields: []Field{{Channel: INJECTION_TIME_CHANNEL, Size: 2, Scale: 0.001, Precision: precision(2)}}},
	}
}

// Default returns a table built from DefaultFrames.
func Default() *Table {
	t, err := NewTable(DefaultFrames())
	if err != nil {
		panic(err)
	}
	return t
}
