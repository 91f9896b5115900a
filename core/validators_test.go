package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomValidators(t *testing.T) {
	validate, translator := NewValidator()

	type payload struct {
		Name  string `json:"name" validate:"notblank"`
		Start string `json:"start" validate:"hhmm"`
		Day   string `json:"day" validate:"weekday"`
		Code  string `json:"code" validate:"studentcode"`
	}
	valid := payload{Name: "Physics", Start: "16:00", Day: "saturday", Code: "1001"}

	tests := []struct {
		name      string
		mutate    func(p *payload)
		wantField string
		wantMsg   string
	}{
		{name: "valid", mutate: func(p *payload) {}},
		{name: "auto code", mutate: func(p *payload) { p.Code = "" }},
		{name: "blank name", mutate: func(p *payload) { p.Name = "   " }, wantField: "name", wantMsg: "this field cannot be blank"},
		{name: "bad time", mutate: func(p *payload) { p.Start = "4pm" }, wantField: "start", wantMsg: "start must be a time of day formatted as HH:MM"},
		{name: "bad day", mutate: func(p *payload) { p.Day = "funday" }, wantField: "day", wantMsg: "day must be a day of the week, eg. monday"},
		{name: "bad code", mutate: func(p *payload) { p.Code = "10a1" }, wantField: "code", wantMsg: "code must contain digits only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := validate.Struct(p)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.wantField, verrs[0].Field())
			assert.Equal(t, tt.wantMsg, verrs[0].Translate(translator))
		})
	}
}
