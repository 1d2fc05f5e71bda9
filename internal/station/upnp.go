package station

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"rradio/internal/messages"
)

// resolveUPnP browses a UPnP ContentDirectory container and turns the result
// into a Playlist, covering the [container]/[random_container]/
// [flattened_container] descriptor kinds. No UPnP/SOAP client library is
// available, so the root-description fetch and Browse SOAP envelope are
// built directly against net/http and encoding/xml — the standard library
// is the only concern-matching tool available.
func resolveUPnP(ctx context.Context, index string, mode messages.UPnPResolutionMode, section *upnpSection) (*messages.Playlist, *messages.StationError) {
	controlURL, err := fetchControlURL(ctx, section.RootDescriptionURL)
	if err != nil {
		return nil, messages.WrapStationError(messages.StationNetworkFailure, fmt.Sprintf("failed to fetch UPnP root description from %s", section.RootDescriptionURL), err)
	}

	var objects []didlObject
	if mode == messages.UPnPRandom {
		objects, err = resolveRandomContainer(ctx, controlURL, section.ContainerPath)
	} else {
		objects, err = browseContainer(ctx, controlURL, section.ContainerPath, mode == messages.UPnPFlattened)
	}
	if err != nil {
		if stationErr, ok := err.(*messages.StationError); ok {
			return nil, stationErr
		}
		return nil, messages.WrapStationError(messages.StationNetworkFailure, fmt.Sprintf("failed to browse UPnP container %s", section.ContainerPath), err)
	}

	if section.UPnPClass != "" {
		filtered := objects[:0]
		for _, o := range objects {
			if strings.HasPrefix(o.class, section.UPnPClass) {
				filtered = append(filtered, o)
			}
		}
		objects = filtered
	}

	applySort(objects, section.Sort)

	if section.TrackCountCap > 0 && len(objects) > section.TrackCountCap {
		objects = objects[:section.TrackCountCap]
	}

	tracks := make([]messages.Track, 0, len(objects))
	for _, o := range objects {
		tracks = append(tracks, messages.NewTrack(o.uri, o.title))
	}

	title := section.Title
	if title == "" {
		title = section.ContainerPath
	}
	return finitePlaylist(index, title, tracks)
}

func applySort(objects []didlObject, mode string) {
	switch mode {
	case "track_number":
		sort.SliceStable(objects, func(i, j int) bool {
			if objects[i].trackNumber != objects[j].trackNumber {
				return objects[i].trackNumber < objects[j].trackNumber
			}
			return objects[i].title < objects[j].title
		})
	case "random":
		rand.Shuffle(len(objects), func(i, j int) {
			objects[i], objects[j] = objects[j], objects[i]
		})
	default:
		// "none" or unrecognized: leave container order untouched.
	}
}

type didlObject struct {
	uri         string
	title       string
	class       string
	trackNumber int
	isContainer bool
	id          string
}

// fetchControlURL retrieves the device description XML and extracts the
// ContentDirectory service's controlURL.
func fetchControlURL(ctx context.Context, rootDescriptionURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rootDescriptionURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, rootDescriptionURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var doc deviceDescription
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", err
	}

	base := baseURL(rootDescriptionURL)
	for _, svc := range doc.Device.ServiceList.Service {
		if strings.Contains(svc.ServiceType, "ContentDirectory") {
			return resolveRelative(base, svc.ControlURL), nil
		}
	}
	return "", fmt.Errorf("no ContentDirectory service advertised in %s", rootDescriptionURL)
}

func baseURL(rootDescriptionURL string) string {
	idx := strings.Index(rootDescriptionURL[8:], "/")
	if idx < 0 {
		return rootDescriptionURL
	}
	return rootDescriptionURL[:8+idx]
}

func resolveRelative(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}

type deviceDescription struct {
	Device struct {
		ServiceList struct {
			Service []struct {
				ServiceType string `xml:"serviceType"`
				ControlURL  string `xml:"controlURL"`
			} `xml:"service"`
		} `xml:"serviceList"`
	} `xml:"device"`
}

// browseContainer issues a ContentDirectory Browse SOAP call and, when
// flatten is true, recurses into any child containers so a "flattened"
// station pulls every leaf track across the whole subtree.
func browseContainer(ctx context.Context, controlURL, objectID string, flatten bool) ([]didlObject, error) {
	objects, err := browseOnce(ctx, controlURL, objectID)
	if err != nil {
		return nil, err
	}

	if !flatten {
		leaves := objects[:0]
		for _, o := range objects {
			if !o.isContainer {
				leaves = append(leaves, o)
			}
		}
		return leaves, nil
	}

	var leaves []didlObject
	for _, o := range objects {
		if o.isContainer {
			children, err := browseContainer(ctx, controlURL, o.id, true)
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, children...)
			continue
		}
		leaves = append(leaves, o)
	}
	return leaves, nil
}

// resolveRandomContainer browses objectID for its direct child containers,
// picks one uniformly at random, and returns that container's direct leaf
// items. The random pick happens once per resolution, among containers, not
// among individual tracks — picking a container's items flattened at random
// would defeat the "play a whole random container" option.
func resolveRandomContainer(ctx context.Context, controlURL, objectID string) ([]didlObject, error) {
	children, err := browseOnce(ctx, controlURL, objectID)
	if err != nil {
		return nil, err
	}

	var containers []didlObject
	for _, c := range children {
		if c.isContainer {
			containers = append(containers, c)
		}
	}
	if len(containers) == 0 {
		return nil, messages.NewStationError(messages.StationEmptyPlaylist, fmt.Sprintf("no child containers under %s", objectID))
	}

	chosen := containers[rand.IntN(len(containers))]
	return browseContainer(ctx, controlURL, chosen.id, false)
}

const browseEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body>
<u:Browse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1">
<ObjectID>%s</ObjectID>
<BrowseFlag>BrowseDirectChildren</BrowseFlag>
<Filter>*</Filter>
<StartingIndex>0</StartingIndex>
<RequestedCount>0</RequestedCount>
<SortCriteria></SortCriteria>
</u:Browse>
</s:Body>
</s:Envelope>`

func browseOnce(ctx context.Context, controlURL, objectID string) ([]didlObject, error) {
	body := fmt.Sprintf(browseEnvelope, xmlEscape(objectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", `"urn:schemas-upnp-org:service:ContentDirectory:1#Browse"`)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d browsing %s", resp.StatusCode, objectID)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var envelope browseResponseEnvelope
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}

	var didl didlLite
	if err := xml.Unmarshal([]byte(envelope.Body.BrowseResponse.Result), &didl); err != nil {
		return nil, err
	}

	objects := make([]didlObject, 0, len(didl.Containers)+len(didl.Items))
	for _, c := range didl.Containers {
		objects = append(objects, didlObject{id: c.ID, title: c.Title, class: c.Class, isContainer: true})
	}
	for _, it := range didl.Items {
		n, _ := strconv.Atoi(it.TrackNumber)
		objects = append(objects, didlObject{
			id:          it.ID,
			uri:         it.Res,
			title:       it.Title,
			class:       it.Class,
			trackNumber: n,
		})
	}
	return objects, nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

type browseResponseEnvelope struct {
	Body struct {
		BrowseResponse struct {
			Result string `xml:"Result"`
		} `xml:"BrowseResponse"`
	} `xml:"Body"`
}

type didlLite struct {
	Containers []struct {
		ID    string `xml:"id,attr"`
		Title string `xml:"title"`
		Class string `xml:"class"`
	} `xml:"container"`
	Items []struct {
		ID          string `xml:"id,attr"`
		Title       string `xml:"title"`
		Class       string `xml:"class"`
		TrackNumber string `xml:"originalTrackNumber"`
		Res         string `xml:"res"`
	} `xml:"item"`
}
