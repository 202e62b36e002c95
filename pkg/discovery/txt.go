package discovery

import (
	"fmt"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates TXT records for a CoAP endpoint advertisement.
// Empty attributes are omitted.
func EncodeTXT(info *Info) TXTRecordMap {
	txt := make(TXTRecordMap)
	if info.ResourceType != "" {
		txt[TXTKeyResourceType] = info.ResourceType
	}
	if info.Interface != "" {
		txt[TXTKeyInterface] = info.Interface
	}
	if info.Path != "" {
		txt[TXTKeyPath] = info.Path
	}
	return txt
}

// DecodeTXT extracts the CoRE link attributes from TXT records. All
// attributes are optional; unknown keys are ignored.
func DecodeTXT(txt TXTRecordMap) (resourceType, iface, path string) {
	return txt[TXTKeyResourceType], txt[TXTKeyInterface], txt[TXTKeyPath]
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value"
// strings, the format used by mDNS libraries.
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
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}
