package rtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/martian56/videoo-call/internal/core"
)

// StaticDevices implements core.Devices with sample-fed local tracks. The
// actual capture pipeline (camera, microphone, screen grabber) writes
// encoded samples into the tracks it obtains here; this package only owns
// track identity and codec parameters.
type StaticDevices struct{}

func NewStaticDevices() *StaticDevices { return &StaticDevices{} }

func (d *StaticDevices) Camera() (webrtc.TrackLocal, error) {
	return newVideoTrack("camera")
}

func (d *StaticDevices) Screen() (webrtc.TrackLocal, error) {
	return newVideoTrack("screen")
}

func (d *StaticDevices) Microphone() (webrtc.TrackLocal, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "videoo-mic",
	)
	if err != nil {
		return nil, fmt.Errorf("rtc: microphone track: %w", err)
	}
	return track, nil
}

func newVideoTrack(id string) (webrtc.TrackLocal, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		id, "videoo-"+id,
	)
	if err != nil {
		return nil, fmt.Errorf("rtc: %s track: %w", id, err)
	}
	return track, nil
}

// SampleWriter narrows a track back to its writable form for the capture
// pipeline.
func SampleWriter(track webrtc.TrackLocal) (interface {
	WriteSample(media.Sample) error
}, error) {
	w, ok := track.(*webrtc.TrackLocalStaticSample)
	if !ok {
		return nil, core.ErrNoLocalMedia
	}
	return w, nil
}
