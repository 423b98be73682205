package validation

import "testing"

func TestValidateRoomID(t *testing.T) {
	cases := []struct {
		name    string
		roomID  string
		wantErr bool
	}{
		{"valid", "room-42_a", false},
		{"empty", "", true},
		{"spaces", "room 42", true},
		{"too long", string(make([]byte, 101)), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRoomID(tc.roomID)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateRoomID(%q) error = %v, wantErr %v", tc.roomID, err, tc.wantErr)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	if err := ValidateDisplayName("Alice"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateDisplayName("   "); err == nil {
		t.Error("expected error for blank display name")
	}
}

func TestValidateUserID(t *testing.T) {
	if err := ValidateUserID("user-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateUserID("no/slashes"); err == nil {
		t.Error("expected error for invalid characters")
	}
}
