package miio

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" //nolint:gosec // MD5 is mandated by the miIO wire protocol
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Packet layout constants.
const (
	// headerSize is the fixed miIO header length in bytes.
	headerSize = 32

	// packetMagic opens every packet.
	packetMagic uint16 = 0x2131

	// tokenSize is the decoded token length in bytes.
	tokenSize = 16

	// maxPacketSize bounds the datagram read buffer.
	maxPacketSize = 4096
)

// header is the decoded 32-byte miIO packet header.
type header struct {
	length   uint16
	unknown  uint32
	deviceID uint32
	stamp    uint32
	checksum [md5.Size]byte
}

// crypter seals and opens packets for one device token.
type crypter struct {
	token []byte
	key   []byte
	iv    []byte
}

// parseToken decodes a 32 character hex token.
func parseToken(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if len(token) != tokenSize*2 {
		return nil, ErrInvalidToken
	}
	raw, err := hex.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return raw, nil
}

// newCrypter derives the AES key and IV from the token.
func newCrypter(token []byte) *crypter {
	key := md5.Sum(token) //nolint:gosec // protocol requirement
	ivSrc := append(append([]byte{}, key[:]...), token...)
	iv := md5.Sum(ivSrc) //nolint:gosec // protocol requirement
	return &crypter{
		token: token,
		key:   key[:],
		iv:    iv[:],
	}
}

// encrypt pads and encrypts a payload.
func (c *crypter) encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return out, nil
}

// decrypt decrypts and unpads a payload.
func (c *crypter) decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: payload not block aligned", ErrInvalidPacket)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, data)
	return pkcs7Unpad(out)
}

// seal builds a complete request packet.
func (c *crypter) seal(deviceID, stamp uint32, plain []byte) ([]byte, error) {
	enc, err := c.encrypt(plain)
	if err != nil {
		return nil, err
	}

	pkt := make([]byte, headerSize+len(enc))
	binary.BigEndian.PutUint16(pkt[0:2], packetMagic)
	binary.BigEndian.PutUint16(pkt[2:4], uint16(len(pkt))) //nolint:gosec // bounded by maxPacketSize
	binary.BigEndian.PutUint32(pkt[4:8], 0)
	binary.BigEndian.PutUint32(pkt[8:12], deviceID)
	binary.BigEndian.PutUint32(pkt[12:16], stamp)
	copy(pkt[16:32], c.token)
	copy(pkt[32:], enc)

	sum := md5.Sum(pkt) //nolint:gosec // protocol requirement
	copy(pkt[16:32], sum[:])
	return pkt, nil
}

// open verifies and decrypts a packet. Packets without a payload (hello
// replies) return a nil body.
func (c *crypter) open(pkt []byte) (header, []byte, error) {
	h, err := parseHeader(pkt)
	if err != nil {
		return h, nil, err
	}
	if int(h.length) == headerSize {
		return h, nil, nil
	}

	check := make([]byte, h.length)
	copy(check, pkt[:h.length])
	copy(check[16:32], c.token)
	sum := md5.Sum(check) //nolint:gosec // protocol requirement
	if !bytes.Equal(sum[:], h.checksum[:]) {
		return h, nil, ErrChecksumMismatch
	}

	body, err := c.decrypt(pkt[headerSize:h.length])
	if err != nil {
		return h, nil, err
	}
	return h, body, nil
}

// parseHeader decodes the fixed header and validates the declared length.
func parseHeader(pkt []byte) (header, error) {
	var h header
	if len(pkt) < headerSize {
		return h, fmt.Errorf("%w: %d bytes", ErrInvalidPacket, len(pkt))
	}
	if binary.BigEndian.Uint16(pkt[0:2]) != packetMagic {
		return h, fmt.Errorf("%w: bad magic", ErrInvalidPacket)
	}
	h.length = binary.BigEndian.Uint16(pkt[2:4])
	if int(h.length) < headerSize || int(h.length) > len(pkt) {
		return h, fmt.Errorf("%w: length %d", ErrInvalidPacket, h.length)
	}
	h.unknown = binary.BigEndian.Uint32(pkt[4:8])
	h.deviceID = binary.BigEndian.Uint32(pkt[8:12])
	h.stamp = binary.BigEndian.Uint32(pkt[12:16])
	copy(h.checksum[:], pkt[16:32])
	return h, nil
}

// helloPacket returns the fixed handshake datagram.
func helloPacket() []byte {
	pkt := bytes.Repeat([]byte{0xff}, headerSize)
	binary.BigEndian.PutUint16(pkt[0:2], packetMagic)
	binary.BigEndian.PutUint16(pkt[2:4], headerSize)
	return pkt
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPacket)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidPacket)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrInvalidPacket)
		}
	}
	return data[:len(data)-n], nil
}
