package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo/core"
)

func TestRollbarLogger_prepare(t *testing.T) {
	l := NewRollbarLogger(log.New(new(bytes.Buffer), "", 0), core.NewTestConfig())
	err := errors.New("boom")
	extras := map[string]interface{}{"run_id": "r1"}

	tests := []struct {
		name string
		args []interface{}
		want []interface{}
	}{
		{name: "message only", want: []interface{}{"msg"}},
		{name: "error and extras", args: []interface{}{err, extras}, want: []interface{}{"msg", err, extras}},
		{name: "person dropped", args: []interface{}{core.Person{ID: "7"}, err, core.Person{ID: "8"}}, want: []interface{}{"msg", err}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.prepare("msg", tt.args))
		})
	}
}

func TestRollbarLogger_print(t *testing.T) {
	var buf bytes.Buffer
	l := NewRollbarLogger(log.New(&buf, "MASOMO : ", 0), core.NewTestConfig())

	l.Warn("bulletin: save failed", errors.New("disk full"))
	assert.Equal(t, "MASOMO : bulletin: save failed\nMASOMO : disk full\n", buf.String())
}
