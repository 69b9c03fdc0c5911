package model

import "fmt"

// Channel identifies an external booking wrapper service.  The set is closed:
// messages naming an unknown channel are rejected at the decoding boundary.
type Channel string

const (
	ChannelZooking     Channel = "zooking"
	ChannelEarthStayin Channel = "earthstayin"
	ChannelClickAndGo  Channel = "clickandgo"
)

// Channels returns every known booking channel.
func Channels() []Channel {
	return []Channel{ChannelZooking, ChannelEarthStayin, ChannelClickAndGo}
}

// ParseChannel validates a channel identifier received on the wire.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelZooking, ChannelEarthStayin, ChannelClickAndGo:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}
