package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsErrorPhrase(t *testing.T) {
	phrases := []string{"Intente nuevamente", "Ha ocurrido un error", "servicio no disponible"}

	cases := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{
			name:  "exact phrase",
			text:  "Ha ocurrido un error al procesar su solicitud.",
			want:  "Ha ocurrido un error",
			found: true,
		},
		{
			name:  "case insensitive",
			text:  "EL SERVICIO NO DISPONIBLE POR MANTENIMIENTO",
			want:  "servicio no disponible",
			found: true,
		},
		{
			name:  "phrase inside larger page text",
			text:  "Declaraciones y Pagos\nPor el momento intente nuevamente mas tarde\nSalir",
			want:  "Intente nuevamente",
			found: true,
		},
		{
			name: "clean page",
			text: "Bienvenido. Presentar declaracion provisional.",
		},
		{
			name: "empty text",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := ContainsErrorPhrase(tc.text, phrases)
			assert.Equal(t, tc.found, found)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestContainsErrorPhraseIgnoresEmptyPhrases(t *testing.T) {
	_, found := ContainsErrorPhrase("anything at all", []string{""})
	assert.False(t, found)
}

func TestJSArgEscapes(t *testing.T) {
	assert.Equal(t, `"#periodo"`, jsArg("#periodo"))
	assert.Equal(t, `"a\"b"`, jsArg(`a"b`))
	assert.Equal(t, `"button[title='ENVIAR']"`, jsArg("button[title='ENVIAR']"))
}
