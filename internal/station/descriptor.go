package station

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"

	"rradio/internal/messages"
)

// descriptorDocument is the TOML shape of a station descriptor: exactly one
// of Container/RandomContainer/FlattenedContainer/CD/USB is present.
type descriptorDocument struct {
	Container          *upnpSection `toml:"container"`
	RandomContainer    *upnpSection `toml:"random_container"`
	FlattenedContainer *upnpSection `toml:"flattened_container"`
	CD                 *deviceSection `toml:"cd"`
	USB                *deviceSection `toml:"usb"`
}

type upnpSection struct {
	Title              string `toml:"title"`
	RootDescriptionURL string `toml:"root_description_url"`
	ContainerPath      string `toml:"container_path"`
	TrackCountCap      int    `toml:"track_count_cap"`
	Sort               string `toml:"sort"` // "none" | "track_number" | "random"
	UPnPClass          string `toml:"upnp_class"`
}

type deviceSection struct {
	Device string `toml:"device"`
}

// resolveDescriptor parses the CD/USB/UPnP descriptor document at path and
// dispatches to the matching resolver.
func resolveDescriptor(ctx context.Context, path, index string) (*messages.Playlist, *messages.StationError) {
	var doc descriptorDocument
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, messages.WrapStationError(messages.StationBadDescriptor, fmt.Sprintf("failed to parse %s", path), err)
	}

	present := 0
	for _, ok := range []bool{doc.Container != nil, doc.RandomContainer != nil, doc.FlattenedContainer != nil, doc.CD != nil, doc.USB != nil} {
		if ok {
			present++
		}
	}
	if present != 1 {
		return nil, messages.NewStationError(messages.StationBadDescriptor, fmt.Sprintf("%s must declare exactly one of [container], [random_container], [flattened_container], [cd], [usb]", path))
	}

	switch {
	case doc.Container != nil:
		return resolveUPnP(ctx, index, messages.UPnPSingle, doc.Container)
	case doc.RandomContainer != nil:
		return resolveUPnP(ctx, index, messages.UPnPRandom, doc.RandomContainer)
	case doc.FlattenedContainer != nil:
		return resolveUPnP(ctx, index, messages.UPnPFlattened, doc.FlattenedContainer)
	case doc.CD != nil:
		return resolveCD(index, doc.CD)
	default:
		return resolveUSB(index, doc.USB)
	}
}
