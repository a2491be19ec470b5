package acquisition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

// updateInfo is the normalized update check answer. Servers were observed to send the
// payload flat or wrapped in "updateInfo", with booleans as strings or 0/1 numbers.
type updateInfo struct {
	IsAvailable      bool
	UpdateAppVersion bool
	DownloadURL      string
	PackageHash      string
	Label            string
	AppVersion       string
	Description      string
	IsMandatory      bool
	PackageSize      int64
}

var fieldAliases = map[string][]string{
	"isAvailable":      {"isavailable", "success"},
	"updateAppVersion": {"updateappversion", "forceupdate"},
	"downloadUrl":      {"downloadurl", "updatedownloadurl"},
	"packageHash":      {"packagehash"},
	"label":            {"label", "bundleversion"},
	"appVersion":       {"appversion"},
	"description":      {"description"},
	"isMandatory":      {"ismandatory"},
	"packageSize":      {"packagesize"},
}

func parseResponse(body []byte) (*updateInfo, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return nil, invalidResponse("%v", err)
	}

	if wrapped, ok := fields["updateinfo"]; ok && !isNull(wrapped) {
		fields, err = decodeObject(wrapped)
		if err != nil {
			return nil, invalidResponse("updateInfo: %v", err)
		}
	}

	info := &updateInfo{}
	if info.IsAvailable, err = boolField(fields, "isAvailable"); err != nil {
		return nil, err
	}
	if info.UpdateAppVersion, err = boolField(fields, "updateAppVersion"); err != nil {
		return nil, err
	}
	if info.IsMandatory, err = boolField(fields, "isMandatory"); err != nil {
		return nil, err
	}
	if info.PackageSize, err = intField(fields, "packageSize"); err != nil {
		return nil, err
	}

	for name, dst := range map[string]*string{
		"downloadUrl": &info.DownloadURL,
		"packageHash": &info.PackageHash,
		"label":       &info.Label,
		"appVersion":  &info.AppVersion,
		"description": &info.Description,
	} {
		if *dst, err = stringField(fields, name); err != nil {
			return nil, err
		}
	}

	return info, nil
}

func invalidResponse(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", codepush.ErrInvalidServerResponse, fmt.Sprintf(format, args...))
}

// decodeObject decodes a JSON object keyed by lower-cased field names
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	fields := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		fields[strings.ToLower(k)] = v
	}
	return fields, nil
}

func lookup(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	for _, alias := range fieldAliases[name] {
		if v, ok := fields[alias]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null"
}

func boolField(fields map[string]json.RawMessage, name string) (bool, error) {
	raw, ok := lookup(fields, name)
	if !ok {
		return false, nil
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, invalidResponse("%s: %v", name, err)
	}

	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		switch t {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1":
			return true, nil
		case "false", "0", "":
			return false, nil
		}
	}
	return false, invalidResponse("%s: unsupported value %s", name, string(raw))
}

func intField(fields map[string]json.RawMessage, name string) (int64, error) {
	raw, ok := lookup(fields, name)
	if !ok {
		return 0, nil
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, invalidResponse("%s: %v", name, err)
	}

	switch t := v.(type) {
	case float64:
		if t < 0 || t != float64(int64(t)) {
			return 0, invalidResponse("%s: not a size %v", name, t)
		}
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil || n < 0 {
			return 0, invalidResponse("%s: not a size %q", name, t)
		}
		return n, nil
	}
	return 0, invalidResponse("%s: unsupported value %s", name, string(raw))
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := lookup(fields, name)
	if !ok {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", invalidResponse("%s: expected a string, got %s", name, string(raw))
	}
	return strings.TrimSpace(s), nil
}
