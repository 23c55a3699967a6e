package checkin

import (
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		sub     CheckIn
		wantErr error
	}{
		{
			name: "code match",
			task: Task{Modality: ModalityCode, Params: VerifyParams{Secret: "QX7KM2PR"}},
			sub:  CheckIn{Code: "QX7KM2PR"},
		},
		{
			name:    "code mismatch",
			task:    Task{Modality: ModalityCode, Params: VerifyParams{Secret: "QX7KM2PR"}},
			sub:     CheckIn{Code: "AAAAAAAA"},
			wantErr: ErrVerificationFailed,
		},
		{
			name:    "code not yet generated",
			task:    Task{Modality: ModalityCode, Params: VerifyParams{}},
			sub:     CheckIn{Code: ""},
			wantErr: ErrVerificationFailed,
		},
		{
			name: "location within radius",
			task: Task{Modality: ModalityLocation, Params: VerifyParams{Lat: -1.9500, Lng: 30.0600, Radius: 100}},
			sub:  CheckIn{Lat: floatPtr(-1.9505), Lng: floatPtr(30.0600)}, // ~55m away
		},
		{
			name:    "location outside radius",
			task:    Task{Modality: ModalityLocation, Params: VerifyParams{Lat: -1.9500, Lng: 30.0600, Radius: 100}},
			sub:     CheckIn{Lat: floatPtr(-1.9600), Lng: floatPtr(30.0600)},
			wantErr: ErrVerificationFailed,
		},
		{
			name:    "location missing coordinates",
			task:    Task{Modality: ModalityLocation, Params: VerifyParams{Lat: -1.9500, Lng: 30.0600, Radius: 100}},
			sub:     CheckIn{},
			wantErr: ErrVerificationFailed,
		},
		{
			name: "wifi match",
			task: Task{Modality: ModalityWifi, Params: VerifyParams{SSID: "Campus", BSSID: "aa:bb:cc:dd:ee:ff"}},
			sub:  CheckIn{SSID: "Campus", BSSID: "aa:bb:cc:dd:ee:ff"},
		},
		{
			name:    "wifi wrong bssid",
			task:    Task{Modality: ModalityWifi, Params: VerifyParams{SSID: "Campus", BSSID: "aa:bb:cc:dd:ee:ff"}},
			sub:     CheckIn{SSID: "Campus", BSSID: "11:22:33:44:55:66"},
			wantErr: ErrVerificationFailed,
		},
		{
			name:    "wifi task missing params",
			task:    Task{Modality: ModalityWifi, Params: VerifyParams{}},
			sub:     CheckIn{SSID: "", BSSID: ""},
			wantErr: ErrVerificationFailed,
		},
		{
			name: "manual always passes",
			task: Task{Modality: ModalityManual},
			sub:  CheckIn{},
		},
		{
			name:    "unknown modality fails closed",
			task:    Task{Modality: Modality("retina")},
			sub:     CheckIn{},
			wantErr: ErrUnknownModality,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verify(tt.task, tt.sub); err != tt.wantErr {
				t.Errorf("verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
