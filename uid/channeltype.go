package uid

// ChannelTypeKind is the kind of channel type identifiers: a binding id
// followed by the id of the channel type within that binding.
var ChannelTypeKind = Kind{
	Name:        "channel type uid",
	MinSegments: 2,
	MaxSegments: 2,
}

// ChannelTypeUID identifies a channel type.
type ChannelTypeUID struct {
	UID
}

// ParseChannelTypeUID parses a channel type uid of the form
// "<binding>:<id>".
func ParseChannelTypeUID(s string) (ChannelTypeUID, error) {
	u, err := Parse(ChannelTypeKind, s)
	if err != nil {
		return ChannelTypeUID{}, err
	}
	return ChannelTypeUID{UID: u}, nil
}

// NewChannelTypeUID builds a channel type uid from the binding id and the
// local channel type id.
func NewChannelTypeUID(bindingID, id string) (ChannelTypeUID, error) {
	u, err := New(ChannelTypeKind, bindingID, id)
	if err != nil {
		return ChannelTypeUID{}, err
	}
	return ChannelTypeUID{UID: u}, nil
}

// BindingID returns the binding segment.
func (u ChannelTypeUID) BindingID() string {
	return u.Segment(0)
}

// ID returns the id of the channel type within its binding.
func (u ChannelTypeUID) ID() string {
	return u.Segment(1)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *ChannelTypeUID) UnmarshalText(text []byte) error {
	parsed, err := ParseChannelTypeUID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
