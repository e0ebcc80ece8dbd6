package config

import (
	"fmt"
	"sort"
	"strings"

	"camwatch/internal/model"
)

const (
	cameraPrefix    = "CAM_"
	fieldName       = "Name"
	fieldHiRes      = "HiRes"
	fieldLoRes      = "LoRes"
	fieldHlsPrefix  = "HlsUrl"
	defaultHlsLabel = "Preview"
)

// ParseCameras collects CAM_<channel>_<Field>=value entries into cameras keyed
// by channel number. Recognized fields are Name, HiRes, LoRes and
// HlsUrl<Variant>; anything else is rejected.
func ParseCameras(environ []string) (map[string]model.Camera, error) {
	cameras := make(map[string]model.Camera)
	var errs []string

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, cameraPrefix) {
			continue
		}

		channel, field, ok := strings.Cut(strings.TrimPrefix(key, cameraPrefix), "_")
		if !ok || field == "" {
			errs = append(errs, fmt.Sprintf("%s: expected CAM_<channel>_<Field>", key))
			continue
		}
		if !isDigits(channel) {
			errs = append(errs, fmt.Sprintf("%s: channel %q is not a number", key, channel))
			continue
		}
		channel = model.NormalizeChannel(channel)

		cam := cameras[channel]
		cam.Channel = channel

		switch {
		case field == fieldName:
			cam.Name = value
		case field == fieldHiRes:
			cam.HiRes = value
		case field == fieldLoRes:
			cam.LoRes = value
		case strings.HasPrefix(field, fieldHlsPrefix):
			variant := strings.TrimPrefix(field, fieldHlsPrefix)
			if variant == "" {
				variant = defaultHlsLabel
			}
			if cam.Streams == nil {
				cam.Streams = make(map[string]string)
			}
			cam.Streams[variant] = value
		default:
			errs = append(errs, fmt.Sprintf("%s: unknown camera field %q", key, field))
			continue
		}
		cameras[channel] = cam
	}

	for channel, cam := range cameras {
		var missing []string
		if cam.Name == "" {
			missing = append(missing, fieldName)
		}
		if cam.HiRes == "" {
			missing = append(missing, fieldHiRes)
		}
		if cam.LoRes == "" {
			missing = append(missing, fieldLoRes)
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Sprintf("camera D%s: missing %s", channel, strings.Join(missing, ", ")))
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, fmt.Errorf("invalid camera configuration: %s", strings.Join(errs, "; "))
	}
	return cameras, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
