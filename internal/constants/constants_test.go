package constants

import (
	"testing"
)

func TestPostGet(t *testing.T) {
	if readOnlyConstants == nil {
		t.Error("Expected readOnlyConstants to be set by init() prior to me")
	}
}

// TestValues tests that at least a few of the constants have been
// initialized. Too tiresome to test them all and obviously of limited
// value.
func TestValues(t *testing.T) {
	consts := Get()
	if len(consts.ProgramName) == 0 {
		t.Error("consts.ProgramName should be set but it's zero length")
	}
	if len(consts.HTTPSPort) == 0 {
		t.Error("consts.HTTPSPort should be set but it's zero length")
	}
	if len(consts.JudgeSeeds) == 0 {
		t.Error("consts.JudgeSeeds should be populated but it's empty")
	}
	if len(consts.SMTPJudgeSeeds) == 0 {
		t.Error("consts.SMTPJudgeSeeds should be populated but it's empty")
	}
	if len(consts.ExternalIPProbes) == 0 {
		t.Error("consts.ExternalIPProbes should be populated but it's empty")
	}
	if consts.MinReqProxy == 0 {
		t.Error("consts.MinReqProxy should be set but it's zero")
	}
}
