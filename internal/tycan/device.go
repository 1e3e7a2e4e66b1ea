package tycan

// Dev is the raw CAN socket contract the adaptor drives; it is satisfied by
// the Linux AF_CAN implementation and by a test double.
type Dev interface {
	ReadFrame(fr *RawFrame) error
	WriteFrame(fr RawFrame) error
	Close() error
}

// ifaceController brings a CAN network interface down/up and configures its
// bitrate, used by the reset/recovery path.
type ifaceController interface {
	Down(name string) error
	Up(name string) error
	SetBitrate(name string, bitrate int) error
}
