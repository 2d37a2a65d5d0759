package discovery

import (
	"strconv"
	"strings"

	"github.com/fieldlink/fieldlink-go/pkg/device"
)

// TXT record keys of the _fieldlink._tcp service.
const (
	TXTKeySerial   = "sn"
	TXTKeyFirmware = "fw"
	TXTKeyMAC      = "mac"
	TXTKeyPower    = "pwr"
	TXTKeyName     = "name"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeDeviceTXT creates the TXT records advertised for info. Empty
// values are left out.
func EncodeDeviceTXT(info *device.Info) TXTRecordMap {
	txt := make(TXTRecordMap)
	set := func(k, v string) {
		if v != "" {
			txt[k] = v
		}
	}
	set(TXTKeySerial, info.SerialNo)
	set(TXTKeyFirmware, info.FirmwareVersion)
	set(TXTKeyMAC, info.MACAddress)
	set(TXTKeyName, info.Name)
	if info.IsPowerOn {
		txt[TXTKeyPower] = "1"
	} else {
		txt[TXTKeyPower] = "0"
	}
	return txt
}

// DecodeDeviceTXT fills the TXT-carried fields of info. Unknown keys are
// ignored and no key is required.
func DecodeDeviceTXT(txt TXTRecordMap, info *device.Info) {
	info.SerialNo = txt[TXTKeySerial]
	info.FirmwareVersion = txt[TXTKeyFirmware]
	info.MACAddress = txt[TXTKeyMAC]
	if name, ok := txt[TXTKeyName]; ok {
		info.Name = name
	}
	if v, ok := txt[TXTKeyPower]; ok {
		on, err := strconv.ParseBool(v)
		info.IsPowerOn = err == nil && on
	}
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	return result
}

// StringsToTXTRecords parses "key=value" strings. A string without "="
// is a key with an empty value.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}
