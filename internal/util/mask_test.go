package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                       "",
		"Parent@Example.com":     "p…@e….com",
		"a@b.io":                 "a@b.io",
		"nouser":                 "n…r",
		"ab":                     "***",
		"kid@localhost":          "k…@l…",
		"  mama@correo.com.ar  ": "m…@c….com.ar",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskEmail(in), in)
	}
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "", MaskDSN(""))
	assert.Equal(t, "postgres://kid:xxxxx@db:5432/kidplay?sslmode=disable",
		MaskDSN("postgres://kid:secret@db:5432/kidplay?sslmode=disable"))
	assert.Equal(t, "postgres://db/kidplay", MaskDSN("postgres://db/kidplay"))
	assert.Equal(t, "***", MaskDSN("host=db password=secret"))
}
