package discovery

import (
	"fmt"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// GatewayInfo is the TXT record payload of a gateway advertisement.
type GatewayInfo struct {
	GatewayID  string
	APIVersion string
	Endpoint   string
}

// EncodeGatewayTXT creates TXT records for a gateway advertisement.
func EncodeGatewayTXT(info *GatewayInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeyGatewayID] = info.GatewayID
	txt[TXTKeyAPIVersion] = info.APIVersion

	if info.Endpoint != "" {
		txt[TXTKeyEndpoint] = info.Endpoint
	}

	return txt
}

// DecodeGatewayTXT parses TXT records from a gateway advertisement.
func DecodeGatewayTXT(txt TXTRecordMap) (*GatewayInfo, error) {
	info := &GatewayInfo{}

	var ok bool
	info.GatewayID, ok = txt[TXTKeyGatewayID]
	if !ok || info.GatewayID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyGatewayID)
	}

	info.APIVersion, ok = txt[TXTKeyAPIVersion]
	if !ok || info.APIVersion == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyAPIVersion)
	}

	info.Endpoint = txt[TXTKeyEndpoint]

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value"
// strings, the format mDNS libraries use.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a
// TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			txt[parts[0]] = ""
		}
	}
	return txt
}
