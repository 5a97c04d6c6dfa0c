package discovery

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeServiceTXT(t *testing.T) {
	info := &ServiceInfo{
		Board:    "esp32-devkit",
		App:      "wifi_basic",
		Firmware: "1.2.0",
		Cores:    2,
		Address:  "192.168.1.40",
	}

	txt := EncodeServiceTXT(info)
	if txt[TXTKeyCores] != "2" {
		t.Errorf("cores = %q, want %q", txt[TXTKeyCores], "2")
	}

	got, err := DecodeServiceTXT(txt)
	if err != nil {
		t.Fatalf("DecodeServiceTXT failed: %v", err)
	}
	if *got != *info {
		t.Errorf("decoded %+v, want %+v", got, info)
	}
}

func TestEncodeServiceTXTOmitsOptional(t *testing.T) {
	txt := EncodeServiceTXT(&ServiceInfo{Board: "host", App: "multi_thread"})

	for _, key := range []string{TXTKeyFirmware, TXTKeyCores, TXTKeyAddress} {
		if _, ok := txt[key]; ok {
			t.Errorf("optional key %q present", key)
		}
	}
	if len(txt) != 2 {
		t.Errorf("len(txt) = %d, want 2", len(txt))
	}
}

func TestDecodeServiceTXTErrors(t *testing.T) {
	tests := []struct {
		name    string
		txt     TXTRecordMap
		wantErr error
	}{
		{"missing board", TXTRecordMap{"app": "x"}, ErrMissingRequired},
		{"empty board", TXTRecordMap{"board": ""}, ErrMissingRequired},
		{"bad cores", TXTRecordMap{"board": "b", "cores": "two"}, ErrInvalidTXTRecord},
		{"negative cores", TXTRecordMap{"board": "b", "cores": "-1"}, ErrInvalidTXTRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeServiceTXT(tt.txt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTXT(t *testing.T) {
	tests := []struct {
		name    string
		txt     TXTRecordMap
		wantErr error
	}{
		{"ok", EncodeServiceTXT(&ServiceInfo{Board: "b", App: "a"}), nil},
		{"key too long", TXTRecordMap{"firmwarever": "1"}, ErrTXTKeyTooLong},
		{"pair too long", TXTRecordMap{"board": strings.Repeat("x", 250)}, ErrTXTStringTooLong},
		{"pair at limit", TXTRecordMap{"board": strings.Repeat("x", 249)}, nil},
		{"empty key", TXTRecordMap{"": "x"}, ErrInvalidTXTRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTXT(tt.txt)
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTXTStrings(t *testing.T) {
	strs := TXTRecordsToStrings(TXTRecordMap{"board": "b", "app": "a", "fw": "1"})
	want := []string{"app=a", "board=b", "fw=1"}
	if strings.Join(strs, " ") != strings.Join(want, " ") {
		t.Errorf("strings = %v, want %v", strs, want)
	}

	txt := StringsToTXTRecords([]string{"board=b=c", "flag", "", "=orphan"})
	if txt["board"] != "b=c" {
		t.Errorf("board = %q, want %q", txt["board"], "b=c")
	}
	if v, ok := txt["flag"]; !ok || v != "" {
		t.Errorf("flag = %q, %v", v, ok)
	}
	if len(txt) != 2 {
		t.Errorf("len(txt) = %d, want 2", len(txt))
	}
}

func TestValidateInstanceName(t *testing.T) {
	if err := ValidateInstanceName("taskboot-1a2b3c4d"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateInstanceName(""); !errors.Is(err, ErrMissingRequired) {
		t.Errorf("empty name: err = %v", err)
	}
	if err := ValidateInstanceName(strings.Repeat("n", 64)); !errors.Is(err, ErrInstanceNameTooLong) {
		t.Errorf("long name: err = %v", err)
	}
}
