package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeServiceTXT creates TXT records for a board.
func EncodeServiceTXT(info *ServiceInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeyBoard] = info.Board
	txt[TXTKeyApp] = info.App

	if info.Firmware != "" {
		txt[TXTKeyFirmware] = info.Firmware
	}
	if info.Cores > 0 {
		txt[TXTKeyCores] = strconv.Itoa(info.Cores)
	}
	if info.Address != "" {
		txt[TXTKeyAddress] = info.Address
	}

	return txt
}

// DecodeServiceTXT parses TXT records advertised by a board.
func DecodeServiceTXT(txt TXTRecordMap) (*ServiceInfo, error) {
	info := &ServiceInfo{}

	var ok bool
	info.Board, ok = txt[TXTKeyBoard]
	if !ok || info.Board == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyBoard)
	}
	info.App = txt[TXTKeyApp]
	info.Firmware = txt[TXTKeyFirmware]
	info.Address = txt[TXTKeyAddress]

	if s, ok := txt[TXTKeyCores]; ok {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: invalid cores %q", ErrInvalidTXTRecord, s)
		}
		info.Cores = n
	}

	return info, nil
}

// ValidateTXT checks every pair against the DNS-SD size limits.
func ValidateTXT(txt TXTRecordMap) error {
	for k, v := range txt {
		if k == "" || strings.Contains(k, "=") {
			return fmt.Errorf("%w: key %q", ErrInvalidTXTRecord, k)
		}
		if len(k) > MaxTXTKeyLen {
			return fmt.Errorf("%w: %q", ErrTXTKeyTooLong, k)
		}
		if len(k)+1+len(v) > MaxTXTStringLen {
			return fmt.Errorf("%w: %q", ErrTXTStringTooLong, k)
		}
	}
	return nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings,
// sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		if !found {
			// Key without value (boolean flag)
			txt[k] = ""
			continue
		}
		txt[k] = v
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrMissingRequired)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
