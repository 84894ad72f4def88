package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Tipo  string `validate:"required,max=50"`
	Count int    `validate:"gte=0"`
}

func TestValidate(t *testing.T) {
	assert.Nil(t, Validate(sample{Tipo: "Analisis"}))
	assert.Equal(t, map[string]string{"Tipo": "required", "Count": "gte"}, Validate(sample{Count: -1}))
}

func TestVar(t *testing.T) {
	assert.True(t, Var("P001", "required,max=50"))
	assert.False(t, Var("", "required"))
}
