package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/uartd/internal/shared/id"
)

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("sess_01HZY3", "session_id", true))
	assert.NoError(t, ValidateID("", "session_id", false))
	assert.Error(t, ValidateID("", "session_id", true))
	assert.Error(t, ValidateID("../etc", "session_id", true))
	assert.Error(t, ValidateID(strings.Repeat("a", MaxIDLength+1), "session_id", true))
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID(id.NewSessionID().String()))
	assert.Error(t, ValidateSessionID(""))
	assert.Error(t, ValidateSessionID("sess_nope"))
	assert.Error(t, ValidateSessionID(id.NewRequestID().String()))
	assert.Error(t, ValidateSessionID(id.Default().GenerateString()))
}

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		label   string
		wantErr bool
	}{
		{label: "console", wantErr: false},
		{label: "init -> logger -> uart", wantErr: false},
		{label: "", wantErr: true},
		{label: "bad\x1blabel", wantErr: true},
		{label: "nul\x00", wantErr: true},
		{label: "\xff\xfe", wantErr: true},
		{label: strings.Repeat("x", MaxLabelLength+1), wantErr: true},
	}

	for _, tt := range tests {
		err := ValidateLabel(tt.label)
		if tt.wantErr {
			assert.Error(t, err, "%q", tt.label)
		} else {
			assert.NoError(t, err, "%q", tt.label)
		}
	}
}

func TestValidateArgs(t *testing.T) {
	assert.NoError(t, ValidateArgs(nil))
	assert.NoError(t, ValidateArgs(map[string]string{"ram_quota": "8K"}))
	assert.Error(t, ValidateArgs(map[string]string{"bad key": "x"}))
	assert.Error(t, ValidateArgs(map[string]string{"big": strings.Repeat("x", MaxArgsSize)}))

	many := make(map[string]string, MaxArgCount+1)
	for i := 0; i <= MaxArgCount; i++ {
		many[strings.Repeat("k", i+1)] = "v"
	}
	assert.Error(t, ValidateArgs(many))
}
