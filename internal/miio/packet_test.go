package miio

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "00112233445566778899aabbccddeeff"

func testCrypter(t *testing.T) *crypter {
	t.Helper()
	token, err := parseToken(testToken)
	require.NoError(t, err)
	return newCrypter(token)
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", testToken, false},
		{"surrounding whitespace", "  " + testToken + "\n", false},
		{"too short", "0011", true},
		{"not hex", "zz112233445566778899aabbccddeeff", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := parseToken(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Len(t, raw, tokenSize)
		})
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	c := testCrypter(t)
	payload := []byte(`{"id":1,"method":"get_prop","params":["power"]}`)

	pkt, err := c.seal(0x01020304, 77, payload)
	require.NoError(t, err)

	assert.Equal(t, packetMagic, binary.BigEndian.Uint16(pkt[0:2]))
	assert.Equal(t, len(pkt), int(binary.BigEndian.Uint16(pkt[2:4])))
	assert.Zero(t, (len(pkt)-headerSize)%16, "payload must be block aligned")

	h, body, err := c.open(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), h.deviceID)
	assert.Equal(t, uint32(77), h.stamp)
	assert.Equal(t, payload, body)
}

func TestOpenRejectsTamperedPacket(t *testing.T) {
	c := testCrypter(t)
	pkt, err := c.seal(1, 1, []byte(`{"id":1}`))
	require.NoError(t, err)

	pkt[len(pkt)-1] ^= 0xff
	_, _, err = c.open(pkt)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestOpenWithWrongTokenFails(t *testing.T) {
	pkt, err := testCrypter(t).seal(1, 1, []byte(`{"id":1}`))
	require.NoError(t, err)

	other, err := parseToken("ffeeddccbbaa99887766554433221100")
	require.NoError(t, err)
	_, _, err = newCrypter(other).open(pkt)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestHelloPacket(t *testing.T) {
	pkt := helloPacket()
	require.Len(t, pkt, headerSize)

	h, err := parseHeader(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint16(headerSize), h.length)
	assert.Equal(t, uint32(0xffffffff), h.deviceID)
	assert.Equal(t, uint32(0xffffffff), h.stamp)

	// Header-only packets carry no body.
	_, body, err := testCrypter(t).open(pkt)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestParseHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		pkt  []byte
	}{
		{"short", make([]byte, 10)},
		{"bad magic", make([]byte, headerSize)},
		{"length beyond datagram", func() []byte {
			p := helloPacket()
			binary.BigEndian.PutUint16(p[2:4], 200)
			return p
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseHeader(tt.pkt)
			assert.True(t, errors.Is(err, ErrInvalidPacket), "got %v", err)
		})
	}
}

func TestPKCS7(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17} {
		data := make([]byte, n)
		padded := pkcs7Pad(data, 16)
		assert.Zero(t, len(padded)%16)
		assert.Greater(t, len(padded), n)

		out, err := pkcs7Unpad(padded)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}

	_, err := pkcs7Unpad([]byte{1, 2, 3, 0})
	assert.ErrorIs(t, err, ErrInvalidPacket)
}
