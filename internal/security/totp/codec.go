package totp

import (
	"crypto/rand"
	"errors"
	"strings"
)

// ErrInvalidSecretFormat indica un secreto base32 malformado (símbolo fuera
// del alfabeto o cantidad ilegal de padding). Nunca se decodifica "a medias".
var ErrInvalidSecretFormat = errors.New("invalid secret format")

// alphabet es el alfabeto base32 de RFC 4648 (sin 0/1/8/9 para evitar
// confusión visual al transcribir el secreto).
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// decodeTable mapea byte -> valor de 5 bits; 0xFF marca símbolo inválido.
var decodeTable = buildDecodeTable()

func buildDecodeTable() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = 0xFF
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = byte(i)
		// alias minúscula solo para las letras: desplazar un dígito 32
		// posiciones caería sobre las entradas de R..W
		if i < 26 {
			t[alphabet[i]+('a'-'A')] = byte(i)
		}
	}
	return t
}

// GenerateSecret retorna `length` símbolos base32 (default 32 ≈ 160 bits)
// usando crypto/rand. El string resultante es el secreto compartido tal como
// se muestra en el enrolamiento.
func GenerateSecret(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	b := make([]byte, length)
	for i, r := range raw {
		b[i] = alphabet[int(r)%len(alphabet)]
	}
	return string(b), nil
}

// Decode desempaqueta un secreto base32 en bytes, quinteto por quinteto.
// Rechaza con ErrInvalidSecretFormat:
//   - cantidad de '=' distinta de {0,1,3,4,6}
//   - '=' en posición no final
//   - cualquier símbolo fuera del alfabeto
func Decode(secret string) ([]byte, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, ErrInvalidSecretFormat
	}

	// contar y recortar padding final
	pad := 0
	for pad < len(s) && s[len(s)-1-pad] == '=' {
		pad++
	}
	switch pad {
	case 0, 1, 3, 4, 6:
	default:
		return nil, ErrInvalidSecretFormat
	}
	s = s[:len(s)-pad]
	if strings.ContainsRune(s, '=') {
		return nil, ErrInvalidSecretFormat
	}

	out := make([]byte, 0, len(s)*5/8)
	var buf uint32
	bits := 0
	for i := 0; i < len(s); i++ {
		v := decodeTable[s[i]]
		if v == 0xFF {
			return nil, ErrInvalidSecretFormat
		}
		buf = buf<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>uint(bits)))
		}
	}
	return out, nil
}
